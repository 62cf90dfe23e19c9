package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultPort     = "8080"
	defaultDBPath   = "shoplist.db"
	defaultTokenTTL = 7 * 24 * time.Hour

	// devJWTSecret is only accepted when SHOPLIST_DEV=true.
	devJWTSecret = "shoplist-dev-secret-do-not-use-in-production"
)

// Server holds the API server settings, read from the environment.
type Server struct {
	Port      string
	DBPath    string
	JWTSecret string
	TokenTTL  time.Duration
	LogLevel  string
	LogFormat string
	Dev       bool
}

// ServerFromEnv reads SHOPLIST_* variables through getenv (os.Getenv in
// production, a map lookup in tests).
func ServerFromEnv(getenv func(string) string) (Server, error) {
	cfg := Server{
		Port:      envOr(getenv, "SHOPLIST_PORT", defaultPort),
		DBPath:    envOr(getenv, "SHOPLIST_DB_PATH", defaultDBPath),
		JWTSecret: strings.TrimSpace(getenv("SHOPLIST_JWT_SECRET")),
		TokenTTL:  defaultTokenTTL,
		LogLevel:  envOr(getenv, "SHOPLIST_LOG_LEVEL", "info"),
		LogFormat: envOr(getenv, "SHOPLIST_LOG_FORMAT", "text"),
		Dev:       strings.EqualFold(strings.TrimSpace(getenv("SHOPLIST_DEV")), "true"),
	}

	if raw := strings.TrimSpace(getenv("SHOPLIST_TOKEN_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Server{}, fmt.Errorf("parse SHOPLIST_TOKEN_TTL: %w", err)
		}
		if ttl <= 0 {
			return Server{}, errors.New("SHOPLIST_TOKEN_TTL must be positive")
		}
		cfg.TokenTTL = ttl
	}

	if cfg.JWTSecret == "" {
		if !cfg.Dev {
			return Server{}, errors.New("SHOPLIST_JWT_SECRET is required (set SHOPLIST_DEV=true for a development secret)")
		}
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return ":" + s.Port
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}
