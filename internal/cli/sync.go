package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/apperr"
	"github.com/dukerupert/shoplist/internal/config"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/monitor"
	changes "github.com/dukerupert/shoplist/internal/websocket"
)

type failureView struct {
	Op    string `json:"op" yaml:"op"`
	Error string `json:"error" yaml:"error"`
}

type syncView struct {
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Failures  []failureView `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send queued changes to the server",
		Long: `Replay queued changes in the order they were made. Changes the server
rejects stay queued and are reported; everything else is removed from the
queue and the local cache is refreshed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				if a.offline {
					return NewExitError(ExitFailure, "offline mode is on: run shoplist offline off first")
				}
				summary, err := a.rec.Sync(ctx)
				if err != nil {
					return err
				}

				view := syncView{Succeeded: summary.Succeeded, Failed: summary.Failed}
				for _, f := range summary.Failures {
					view.Failures = append(view.Failures, failureView{Op: f.Op.String(), Error: apperr.Message(f.Err)})
				}
				if err := a.out.emit(view, func(w io.Writer) {
					if view.Succeeded == 0 && view.Failed == 0 {
						fmt.Fprintln(w, "Nothing to sync")
						return
					}
					fmt.Fprintf(w, "%d synced, %d failed\n", view.Succeeded, view.Failed)
				}); err != nil {
					return err
				}
				a.badge(ctx)
				if summary.Failed > 0 {
					return NewExitError(ExitFailure, fmt.Sprintf("%d changes could not be synced", summary.Failed))
				}
				return nil
			})
		},
	}
}

type pendingView struct {
	Op       string    `json:"op" yaml:"op"`
	QueuedAt time.Time `json:"queuedAt" yaml:"queuedAt"`
}

type statusView struct {
	User       *model.User   `json:"user" yaml:"user"`
	Server     string        `json:"server" yaml:"server"`
	Reachable  bool          `json:"reachable" yaml:"reachable"`
	Offline    bool          `json:"offline" yaml:"offline"`
	Pending    int           `json:"pending" yaml:"pending"`
	Operations []pendingView `json:"operations" yaml:"operations"`
}

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show session, connectivity and queued changes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				status, err := a.rec.Status(ctx)
				if err != nil {
					return err
				}
				ops, err := a.rec.Pending(ctx)
				if err != nil {
					return err
				}

				view := statusView{
					User:       status.User,
					Server:     a.cfg.ServerURL,
					Offline:    status.Offline,
					Pending:    status.Pending,
					Operations: make([]pendingView, 0, len(ops)),
				}
				if !a.offline {
					view.Reachable = a.remote.Health(ctx) == nil
				}
				for _, op := range ops {
					view.Operations = append(view.Operations, pendingView{
						Op:       op.String(),
						QueuedAt: time.UnixMilli(op.Timestamp).UTC(),
					})
				}

				return a.out.emit(view, func(w io.Writer) {
					if view.User != nil {
						fmt.Fprintf(w, "Signed in as %s <%s>\n", view.User.Name, view.User.Email)
					} else {
						fmt.Fprintln(w, "Not signed in")
					}
					state := "unreachable"
					switch {
					case view.Offline:
						state = "offline mode"
					case view.Reachable:
						state = "reachable"
					}
					fmt.Fprintf(w, "Server %s (%s)\n", view.Server, state)
					if view.Pending == 0 {
						fmt.Fprintln(w, mutedStyle.Render("All changes synced"))
						return
					}
					a.out.badge(view.Pending)
					for _, p := range view.Operations {
						fmt.Fprintf(w, "  %s  %s\n", p.Op, mutedStyle.Render(a.out.ago(p.QueuedAt)))
					}
				})
			})
		},
	}
}

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and sync automatically",
		Long: `Probe the server, follow its change feed and the offline flag file until
interrupted. Queued changes are synced as soon as the server is reachable,
and the cache is refreshed whenever the server reports a change.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runWatch(ctx, a)
			})
		},
	}
}

func runWatch(ctx context.Context, a *app) error {
	feed, err := monitor.NewFeed(a.cfg.ServerURL, a.store.Token, monitor.DefaultRetryBase, a.cfg.MaxProbeInterval, a.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid server url", err)
	}

	var mu sync.Mutex
	event := func(v map[string]any, line string) {
		mu.Lock()
		defer mu.Unlock()
		if err := a.out.emit(v, func(w io.Writer) { fmt.Fprintln(w, line) }); err != nil {
			a.logger.Warn("write event", "error", err)
		}
	}

	m := monitor.New(a.remote, a.rec, monitor.Config{
		ProbeInterval:    a.cfg.ProbeInterval,
		RetryBase:        monitor.DefaultRetryBase,
		MaxProbeInterval: a.cfg.MaxProbeInterval,
		FlagFile:         a.cfg.OfflineFlag,
		Feed:             feed,
		OnState: func(online bool) {
			if online {
				event(map[string]any{"event": "online"}, infoStyle.Render("online"))
				return
			}
			event(map[string]any{"event": "offline"}, warnStyle.Render("offline"))
		},
		OnRemote: func(msg changes.Message) {
			event(map[string]any{"event": "change", "entity": msg.Entity, "action": msg.Action, "id": msg.ID, "listId": msg.ListID},
				mutedStyle.Render(fmt.Sprintf("server: %s %s %s", msg.Entity, msg.Action, shortID(msg.ID))))
		},
	}, a.logger)

	return m.Run(ctx)
}

func NewOfflineCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "offline [on|off]",
		Short: "Show or switch offline mode",
		Long: `Offline mode tells shoplist the network should not be relied on: reads
come from the cache, and a write is tried once and queued when the server
cannot be reached. Queued changes are not synced until offline mode is off.
It is stored as a flag file, so a running shoplist watch picks the change up
immediately. Use --offline to keep a single command away from the server
entirely.`,
		Args:          cobra.MaximumNArgs(1),
		ValidArgs:     []string{"on", "off"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if len(args) == 1 {
				switch args[0] {
				case "on", "off":
					if err := monitor.SetFlag(cfg.OfflineFlag, args[0] == "on"); err != nil {
						return WrapExitError(ExitCommandError, "failed to switch offline mode", err)
					}
				default:
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid argument %q: use on or off", args[0]))
				}
			}
			on := monitor.FlagPresent(cfg.OfflineFlag)
			out := newPrinter(rootOpts.Format, cmd.OutOrStdout())
			return out.emit(map[string]any{"offline": on, "flagFile": cfg.OfflineFlag}, func(w io.Writer) {
				if on {
					fmt.Fprintln(w, "Offline mode is on")
					return
				}
				fmt.Fprintln(w, "Offline mode is off")
			})
		},
	}
}
