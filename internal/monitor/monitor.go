// Package monitor decides whether the client is online and tells the
// reconciler when that changes.
//
// Three signals feed it. A health probe against the server, retried with
// capped exponential backoff while it fails. An offline flag file: while it
// exists the client is offline no matter what the probe says. And the
// server's change feed, which only prompts refreshes.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	changes "github.com/dukerupert/shoplist/internal/websocket"
)

const (
	DefaultProbeInterval    = 15 * time.Second
	DefaultMaxProbeInterval = 2 * time.Minute
	DefaultRetryBase        = time.Second
)

// Prober checks that the server answers. *gateway.Client implements it.
type Prober interface {
	Health(ctx context.Context) error
}

// Handler receives connectivity transitions. *reconcile.Reconciler
// implements it.
type Handler interface {
	OnOnline(ctx context.Context) error
	OnOffline()
	OnRemoteChange(ctx context.Context) error
}

type Config struct {
	// ProbeInterval is the wait between probes while the server answers.
	ProbeInterval time.Duration
	// RetryBase is the first wait after a failed probe; it doubles up to
	// MaxProbeInterval.
	RetryBase        time.Duration
	MaxProbeInterval time.Duration
	// FlagFile, when set, forces the client offline while the file exists.
	FlagFile string
	// Feed, when set, is subscribed to for server-side changes.
	Feed *Feed
	// OnState, when set, observes every transition.
	OnState func(online bool)
	// OnRemote, when set, observes every change feed event.
	OnRemote func(changes.Message)
}

type Monitor struct {
	prober  Prober
	handler Handler
	cfg     Config
	logger  *slog.Logger

	mu        sync.Mutex
	probed    bool
	reachable bool
	flagged   bool
	online    bool
	known     bool
}

func New(prober Prober, handler Handler, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.MaxProbeInterval < cfg.RetryBase {
		cfg.MaxProbeInterval = max(DefaultMaxProbeInterval, cfg.RetryBase)
	}
	return &Monitor{prober: prober, handler: handler, cfg: cfg, logger: logger}
}

// Online reports the last decided state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Run watches every configured signal until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if m.cfg.FlagFile != "" {
		m.setFlagged(ctx, FlagPresent(m.cfg.FlagFile))
		g.Go(func() error { return m.watchFlag(ctx) })
	}
	g.Go(func() error { return m.probeLoop(ctx) })
	if m.cfg.Feed != nil {
		g.Go(func() error { return m.cfg.Feed.Run(ctx, m.remoteChange) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// probeLoop probes every ProbeInterval while the server answers. After a
// failure it retries with capped exponential backoff until the server is
// back.
func (m *Monitor) probeLoop(ctx context.Context) error {
	for {
		b := retry.WithCappedDuration(m.cfg.MaxProbeInterval, retry.NewExponential(m.cfg.RetryBase))
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			if err := m.prober.Health(ctx); err != nil {
				m.logger.Debug("health probe failed", "error", err)
				m.setReachable(ctx, false)
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			return ctx.Err()
		}
		m.setReachable(ctx, true)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.ProbeInterval):
		}
	}
}

func (m *Monitor) setReachable(ctx context.Context, v bool) {
	m.update(ctx, func() {
		m.probed = true
		m.reachable = v
	})
}

func (m *Monitor) setFlagged(ctx context.Context, v bool) {
	m.update(ctx, func() { m.flagged = v })
}

// update applies change and calls the handler only when the combined state
// flips. Nothing is reported until the first probe unless the flag file
// already says offline. The lock is held across the callback so transitions
// are delivered in order.
func (m *Monitor) update(ctx context.Context, change func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	change()
	var online bool
	switch {
	case m.flagged:
		online = false
	case !m.probed:
		return
	default:
		online = m.reachable
	}
	if m.known && online == m.online {
		return
	}
	m.known = true
	m.online = online

	m.logger.Info("connectivity changed", "online", online, "flag", m.flagged)
	if m.cfg.OnState != nil {
		m.cfg.OnState(online)
	}
	if online {
		if err := m.handler.OnOnline(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("reconcile after reconnect", "error", err)
		}
	} else {
		m.handler.OnOffline()
	}
}

func (m *Monitor) remoteChange(ctx context.Context, msg changes.Message) {
	m.logger.Debug("remote change", "type", msg.Type, "id", msg.ID)
	if m.cfg.OnRemote != nil {
		m.cfg.OnRemote(msg)
	}
	if !m.Online() {
		return
	}
	if err := m.handler.OnRemoteChange(ctx); err != nil && ctx.Err() == nil {
		m.logger.Warn("refresh after remote change", "error", err)
	}
}

// FlagPresent reports whether the offline flag file exists.
func FlagPresent(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
