// Package cache is the client's durable Local Store: a SQLite-backed copy of
// the user's lists, a separate namespace of publicly shared lists annotated
// with when they were fetched, and the session credential.
//
// The cache is never the source of truth. A successful remote read replaces
// the affected scope wholesale (SaveAll for the personal namespace, Save for
// a single list). Every storage fault is returned as an apperr Storage error
// so callers can tell "cache unavailable" apart from "not cached".
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/shoplist/internal/apperr"
	"github.com/dukerupert/shoplist/internal/model"
)

// sortableTime is fixed-width so updated_at orders lexically.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SharedList is a publicly fetched list and when it was cached.
type SharedList struct {
	List     model.List `json:"list" yaml:"list"`
	CachedAt time.Time  `json:"cachedAt" yaml:"cachedAt"`
}

// SaveAll replaces the whole personal namespace in one transaction, so a
// concurrent reader sees either the old set or the new one.
func (s *Store) SaveAll(ctx context.Context, lists []model.List) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("save lists", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_lists`); err != nil {
		return apperr.Storage("save lists", err)
	}
	for _, l := range lists {
		if err := upsertList(ctx, tx, l); err != nil {
			return apperr.Storage("save lists", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("save lists", err)
	}
	return nil
}

// Save upserts a single list.
func (s *Store) Save(ctx context.Context, list model.List) error {
	if err := upsertList(ctx, s.db, list); err != nil {
		return apperr.Storage("save list", err)
	}
	return nil
}

// Get returns the cached list, or nil when it is not cached.
func (s *Store) Get(ctx context.Context, id string) (*model.List, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM cached_lists WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("read list", err)
	}

	list, err := decodeList(data)
	if err != nil {
		return nil, apperr.Storage("read list", err)
	}
	return list, nil
}

// GetAll returns every cached list, most recently updated first with id as
// the tie-break, so repeated calls without writes return the same order.
func (s *Store) GetAll(ctx context.Context) ([]model.List, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM cached_lists ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, apperr.Storage("read lists", err)
	}
	defer rows.Close()

	lists := []model.List{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, apperr.Storage("read lists", err)
		}
		list, err := decodeList(data)
		if err != nil {
			return nil, apperr.Storage("read lists", err)
		}
		lists = append(lists, *list)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("read lists", err)
	}
	return lists, nil
}

// Delete removes a list. Deleting an uncached id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cached_lists WHERE id = ?`, id); err != nil {
		return apperr.Storage("delete list", err)
	}
	return nil
}

// Rekey replaces the entry stored under oldID with list (stored under its
// own id) in one transaction, so no reader observes both or neither.
func (s *Store) Rekey(ctx context.Context, oldID string, list model.List) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("rekey list", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_lists WHERE id = ?`, oldID); err != nil {
		return apperr.Storage("rekey list", err)
	}
	if err := upsertList(ctx, tx, list); err != nil {
		return apperr.Storage("rekey list", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("rekey list", err)
	}
	return nil
}

// --- Shared namespace ---

func (s *Store) SaveShared(ctx context.Context, list model.List) error {
	data, err := json.Marshal(list)
	if err != nil {
		return apperr.Storage("save shared list", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shared_lists (id, cached_at, data) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET cached_at = excluded.cached_at, data = excluded.data`,
		list.ID, s.now().UTC(), string(data),
	)
	if err != nil {
		return apperr.Storage("save shared list", err)
	}
	return nil
}

// GetShared returns the cached shared list, or nil when it is not cached.
func (s *Store) GetShared(ctx context.Context, id string) (*SharedList, error) {
	var data string
	var cachedAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT data, cached_at FROM shared_lists WHERE id = ?`, id).Scan(&data, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("read shared list", err)
	}

	list, err := decodeList(data)
	if err != nil {
		return nil, apperr.Storage("read shared list", err)
	}
	return &SharedList{List: *list, CachedAt: cachedAt}, nil
}

// Clear empties both list namespaces. The session is left alone.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("clear cache", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM cached_lists`, `DELETE FROM shared_lists`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return apperr.Storage("clear cache", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("clear cache", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertList(ctx context.Context, db execer, list model.List) error {
	if list.Items == nil {
		list.Items = []model.Item{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode list %s: %w", list.ID, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO cached_lists (id, owner_id, updated_at, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id, updated_at = excluded.updated_at, data = excluded.data`,
		list.ID, list.OwnerID, list.UpdatedAt.UTC().Format(sortableTime), string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert list %s: %w", list.ID, err)
	}
	return nil
}

func decodeList(data string) (*model.List, error) {
	var list model.List
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if list.Items == nil {
		list.Items = []model.Item{}
	}
	return &list, nil
}
