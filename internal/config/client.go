package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Client captures the offline-first client's settings.
type Client struct {
	ServerURL        string
	DataDir          string
	RequestTimeout   time.Duration
	ProbeInterval    time.Duration
	MaxProbeInterval time.Duration
	OfflineFlag      string
	LogLevel         string
	LogFormat        string
}

const (
	DefaultConfigPath = "~/.config/shoplist/config.toml"

	defaultServerURL        = "http://127.0.0.1:8080"
	defaultDataDir          = "~/.local/share/shoplist"
	defaultRequestTimeout   = 10 * time.Second
	defaultProbeInterval    = 15 * time.Second
	defaultMaxProbeInterval = 2 * time.Minute
)

// DBPath is the local cache and queue database.
func (c Client) DBPath() string {
	return filepath.Join(c.DataDir, "shoplist.db")
}

// Load locates and parses the client config, falling back to defaults when missing.
func Load(path string) (Client, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Client{}, err
	}

	cfg := Client{
		ServerURL:        defaultServerURL,
		DataDir:          mustExpand(defaultDataDir),
		RequestTimeout:   defaultRequestTimeout,
		ProbeInterval:    defaultProbeInterval,
		MaxProbeInterval: defaultMaxProbeInterval,
		LogLevel:         "warn",
		LogFormat:        "text",
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.OfflineFlag = filepath.Join(cfg.DataDir, "offline")
			return cfg, nil
		}
		return Client{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Client{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		ServerURL        string `toml:"server_url"`
		DataDir          string `toml:"data_dir"`
		RequestTimeout   string `toml:"request_timeout"`
		ProbeInterval    string `toml:"probe_interval"`
		MaxProbeInterval string `toml:"max_probe_interval"`
		OfflineFlag      string `toml:"offline_flag"`
		LogLevel         string `toml:"log_level"`
		LogFormat        string `toml:"log_format"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Client{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimRight(strings.TrimSpace(raw.ServerURL), "/"); v != "" {
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Client{}, fmt.Errorf("parse config: server_url %q must be an http(s) URL", raw.ServerURL)
		}
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"request_timeout", raw.RequestTimeout, &cfg.RequestTimeout},
		{"probe_interval", raw.ProbeInterval, &cfg.ProbeInterval},
		{"max_probe_interval", raw.MaxProbeInterval, &cfg.MaxProbeInterval},
	}
	for _, d := range durations {
		v := strings.TrimSpace(d.raw)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return Client{}, fmt.Errorf("parse config: %s %q is not a positive duration", d.name, d.raw)
		}
		*d.dst = parsed
	}
	if cfg.MaxProbeInterval < cfg.ProbeInterval {
		cfg.MaxProbeInterval = cfg.ProbeInterval
	}

	if v := strings.TrimSpace(raw.OfflineFlag); v != "" {
		cfg.OfflineFlag = mustExpand(v)
	} else {
		cfg.OfflineFlag = filepath.Join(cfg.DataDir, "offline")
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(raw.LogFormat); v != "" {
		cfg.LogFormat = v
	}

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(DefaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
