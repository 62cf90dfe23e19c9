package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sethvargo/go-retry"

	changes "github.com/dukerupert/shoplist/internal/websocket"
)

var errNoToken = errors.New("not logged in")

// Feed subscribes to the server's change feed and reconnects with capped
// exponential backoff when the connection drops.
type Feed struct {
	url     string
	token   func(ctx context.Context) (string, error)
	base    time.Duration
	maxWait time.Duration
	logger  *slog.Logger
}

// NewFeed builds a feed for the server at serverURL (http or https).
func NewFeed(serverURL string, token func(ctx context.Context) (string, error), base, maxWait time.Duration, logger *slog.Logger) (*Feed, error) {
	u, err := feedURL(serverURL)
	if err != nil {
		return nil, err
	}
	if base <= 0 {
		base = DefaultRetryBase
	}
	if maxWait < base {
		maxWait = max(DefaultMaxProbeInterval, base)
	}
	return &Feed{url: u, token: token, base: base, maxWait: maxWait, logger: logger}, nil
}

func feedURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Run delivers every event to onChange until ctx is cancelled.
func (f *Feed) Run(ctx context.Context, onChange func(context.Context, changes.Message)) error {
	backoff := f.backoff()
	for {
		connected, err := f.session(ctx, onChange)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = f.backoff()
		}
		wait, _ := backoff.Next()
		f.logger.Debug("change feed disconnected", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (f *Feed) backoff() retry.Backoff {
	return retry.WithCappedDuration(f.maxWait, retry.NewExponential(f.base))
}

// session holds one connection open. connected reports whether the dial
// succeeded.
func (f *Feed) session(ctx context.Context, onChange func(context.Context, changes.Message)) (connected bool, err error) {
	token, err := f.token(ctx)
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, errNoToken
	}

	conn, _, err := websocket.Dial(ctx, f.url+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		return false, err
	}
	defer conn.CloseNow()
	f.logger.Debug("change feed connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}
		var msg changes.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Warn("bad change feed message", "error", err)
			continue
		}
		onChange(ctx, msg)
	}
}
