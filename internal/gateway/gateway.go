// Package gateway is the client side of the shoplist HTTP API. Every call
// either returns the parsed result or an *apperr.Error: Network when the
// server could not be reached within the timeout, otherwise a kind derived
// from the response status.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/shoplist/internal/apperr"
)

const DefaultTimeout = 10 * time.Second

// TokenSource returns the current session credential, or "" for none.
type TokenSource func(ctx context.Context) (string, error)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Token   TokenSource
	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	token      TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Token == nil {
		cfg.Token = func(context.Context) (string, error) { return "", nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		logger: cfg.Logger,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// do sends one request. body is JSON-encoded when non-nil; out is decoded
// from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return apperr.Network(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperr.Network(fmt.Errorf("read response: %w", err))
	}
	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.KindServer, "unexpected response from server", err)
	}
	return nil
}

// classify maps a non-2xx response to an error kind, carrying the server's
// message when the body has one.
func classify(status int, body []byte) error {
	var eb errorBody
	msg := ""
	if json.Unmarshal(body, &eb) == nil {
		msg = strings.TrimSpace(eb.Error)
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed (status %d)", status)
	}

	kind := apperr.KindServer
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		kind = apperr.KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = apperr.KindAuth
	case http.StatusNotFound:
		kind = apperr.KindNotFound
	}
	return apperr.New(kind, status, msg)
}

func pathID(id string) string {
	return url.PathEscape(id)
}
