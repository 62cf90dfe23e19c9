package cache

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dukerupert/shoplist/internal/apperr"
	"github.com/dukerupert/shoplist/internal/model"
)

const (
	sessionToken = "token"
	sessionUser  = "user"
)

// Token returns the stored bearer token, or "" when logged out.
func (s *Store) Token(ctx context.Context) (string, error) {
	v, err := s.sessionGet(ctx, sessionToken)
	if err != nil {
		return "", apperr.Storage("read session", err)
	}
	return v, nil
}

// User returns the signed-in user as last reported by the server.
func (s *Store) User(ctx context.Context) (*model.User, error) {
	v, err := s.sessionGet(ctx, sessionUser)
	if err != nil {
		return nil, apperr.Storage("read session", err)
	}
	if v == "" {
		return nil, nil
	}
	var u model.User
	if err := json.Unmarshal([]byte(v), &u); err != nil {
		return nil, apperr.Storage("read session", err)
	}
	return &u, nil
}

// SetSession stores the credential and user together.
func (s *Store) SetSession(ctx context.Context, token string, user model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return apperr.Storage("save session", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("save session", err)
	}
	defer tx.Rollback()

	for k, v := range map[string]string{sessionToken: token, sessionUser: string(data)} {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, v,
		)
		if err != nil {
			return apperr.Storage("save session", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("save session", err)
	}
	return nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return apperr.Storage("clear session", err)
	}
	return nil
}

func (s *Store) sessionGet(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
