package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/cache"
	"github.com/dukerupert/shoplist/internal/config"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/gateway"
	"github.com/dukerupert/shoplist/internal/logging"
	"github.com/dukerupert/shoplist/internal/monitor"
	"github.com/dukerupert/shoplist/internal/queue"
	"github.com/dukerupert/shoplist/internal/reconcile"
)

var errOfflineMode = errors.New("offline mode is on")

// offlineTransport keeps requests away from the server while offline. With
// --offline nothing is sent and every write is queued. The flag file only
// holds back reads: a write is still tried once and queued if that fails.
// The flag file is checked per request.
type offlineTransport struct {
	forced bool
	flag   string
	next   http.RoundTripper
}

func (t offlineTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.forced || (!mutating(req.Method) && monitor.FlagPresent(t.flag)) {
		return nil, errOfflineMode
	}
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// app is the client stack for one command invocation.
type app struct {
	cfg     config.Client
	db      *sql.DB
	store   *cache.Store
	queue   *queue.Queue
	remote  *gateway.Client
	rec     *reconcile.Reconciler
	logger  *slog.Logger
	out     *printer
	offline bool
}

func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger := logging.New(cmd.ErrOrStderr(), level, cfg.LogFormat)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create data dir", err)
	}
	db, err := database.OpenClient(cfg.DBPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open local database", err)
	}
	logger.Debug("opened local database", "path", cfg.DBPath())

	store := cache.New(db)
	q := queue.New(db, logger)

	offline := opts.Offline || monitor.FlagPresent(cfg.OfflineFlag)
	remote := gateway.New(gateway.Config{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.RequestTimeout,
		Token:   store.Token,
		Transport: offlineTransport{
			forced: opts.Offline,
			flag:   cfg.OfflineFlag,
			next:   opts.Transport,
		},
		Logger: logger,
	})

	errOut := cmd.ErrOrStderr()
	notify := reconcile.NotifierFunc(func(n reconcile.Notice) {
		fmt.Fprintln(errOut, renderNotice(n))
	})
	rec := reconcile.New(remote, store, q, notify, logger)
	if offline {
		rec.OnOffline()
	}

	return &app{
		cfg:     cfg,
		db:      db,
		store:   store,
		queue:   q,
		remote:  remote,
		rec:     rec,
		logger:  logger,
		out:     newPrinter(opts.Format, cmd.OutOrStdout()),
		offline: offline,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// withApp opens the client stack, runs fn and closes the stack again.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

// badge prints the pending-sync indicator.
func (a *app) badge(ctx context.Context) {
	n, err := a.queue.Size(ctx)
	if err != nil {
		a.logger.Warn("read queue size", "error", err)
		return
	}
	a.out.badge(n)
}

// requireSession fails early when nobody is signed in.
func (a *app) requireSession(ctx context.Context) error {
	token, err := a.store.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return NewExitError(ExitFailure, "not signed in: run shoplist login")
	}
	return nil
}

// matchList expands a list id prefix against the cached lists. An id that
// matches nothing is passed through unchanged.
func (a *app) matchList(ctx context.Context, ref string) (string, error) {
	lists, err := a.store.GetAll(ctx)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(lists))
	for i, l := range lists {
		ids[i] = l.ID
	}
	return match("list", ref, ids)
}

func (a *app) matchItem(ctx context.Context, listID, ref string) (string, error) {
	list, err := a.store.Get(ctx, listID)
	if err != nil {
		return "", err
	}
	if list == nil {
		return match("item", ref, nil)
	}
	ids := make([]string, len(list.Items))
	for i, it := range list.Items {
		ids[i] = it.ID
	}
	return match("item", ref, ids)
}

func match(kind, ref string, ids []string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", NewExitError(ExitCommandError, kind+" id is required")
	}
	var found []string
	for _, id := range ids {
		if id == ref {
			return id, nil
		}
		if strings.HasPrefix(id, ref) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return ref, nil
	case 1:
		return found[0], nil
	}
	return "", NewExitError(ExitCommandError, fmt.Sprintf("%s id %q is ambiguous (%d matches)", kind, ref, len(found)))
}
