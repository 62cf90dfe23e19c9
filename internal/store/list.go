package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/shoplist/internal/model"
)

// ListStore persists grocery lists and their items. Every item mutation
// bumps the parent list's updated_at so list ordering follows activity.
type ListStore struct {
	db *sql.DB
}

func NewListStore(db *sql.DB) *ListStore {
	return &ListStore{db: db}
}

// --- List methods ---

func scanList(scanner interface{ Scan(...any) error }) (*model.List, error) {
	var l model.List
	var desc sql.NullString
	err := scanner.Scan(&l.ID, &l.Name, &desc, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		l.Description = &desc.String
	}
	l.Items = []model.Item{}
	return &l, nil
}

const listCols = `id, name, description, owner_id, created_at, updated_at`

// ListByOwner returns the owner's lists, most recently updated first, with items.
func (s *ListStore) ListByOwner(ownerID string) ([]model.List, error) {
	rows, err := s.db.Query(
		`SELECT `+listCols+` FROM grocery_lists WHERE owner_id = ? ORDER BY updated_at DESC, rowid DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}

	lists := []model.List{}
	index := map[string]int{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan list: %w", err)
		}
		index[l.ID] = len(lists)
		lists = append(lists, *l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list lists: %w", err)
	}
	rows.Close()

	items, err := s.db.Query(
		`SELECT `+itemCols+` FROM grocery_items
		 WHERE list_id IN (SELECT id FROM grocery_lists WHERE owner_id = ?)
		 ORDER BY created_at ASC, rowid ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer items.Close()

	for items.Next() {
		item, err := scanItem(items)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if i, ok := index[item.ListID]; ok {
			lists[i].Items = append(lists[i].Items, *item)
		}
	}
	return lists, items.Err()
}

// GetByID returns the list with its items, or nil if it does not exist.
// Ownership is checked by the caller.
func (s *ListStore) GetByID(id string) (*model.List, error) {
	row := s.db.QueryRow(`SELECT `+listCols+` FROM grocery_lists WHERE id = ?`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}

	items, err := s.ListItems(id)
	if err != nil {
		return nil, err
	}
	l.Items = items
	return l, nil
}

// Create inserts the list and any initial items in one transaction.
func (s *ListStore) Create(ownerID, name string, description *string, items []model.CreateItemInput) (*model.List, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO grocery_lists (id, name, description, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, nullString(description), ownerID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}

	for _, in := range items {
		if _, err := insertItem(tx, id, in, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(id)
}

// Update applies the non-nil fields. An empty description clears it.
func (s *ListStore) Update(id string, name, description *string) (*model.List, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *name)
	}
	if description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(description))
	}
	args = append(args, id)

	_, err := s.db.Exec(`UPDATE grocery_lists SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update list: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the list; items go with it through the foreign key cascade.
func (s *ListStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM grocery_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// --- Item methods ---

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var category sql.NullString
	var completed int

	err := scanner.Scan(
		&item.ID, &item.ListID, &item.Name, &item.Quantity, &item.Unit,
		&category, &completed, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Completed = completed != 0
	if category.Valid {
		item.Category = &category.String
	}
	return &item, nil
}

const itemCols = `id, list_id, name, quantity, unit, category, completed, created_at, updated_at`

func (s *ListStore) ListItems(listID string) ([]model.Item, error) {
	rows, err := s.db.Query(
		`SELECT `+itemCols+` FROM grocery_items WHERE list_id = ? ORDER BY created_at ASC, rowid ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetItem returns the item only if it belongs to listID.
func (s *ListStore) GetItem(listID, itemID string) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM grocery_items WHERE id = ? AND list_id = ?`, itemID, listID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *ListStore) AddItem(listID string, in model.CreateItemInput) (*model.Item, error) {
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id, err := insertItem(tx, listID, in, now)
	if err != nil {
		return nil, err
	}
	if err := touchList(tx, listID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetItem(listID, id)
}

// UpdateItem applies the non-nil fields. An empty category clears it.
func (s *ListStore) UpdateItem(listID, itemID string, in model.UpdateItemInput) (*model.Item, error) {
	now := time.Now().UTC()
	sets := []string{"updated_at = ?"}
	args := []any{now}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	if in.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *in.Quantity)
	}
	if in.Unit != nil {
		sets = append(sets, "unit = ?")
		args = append(args, *in.Unit)
	}
	if in.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, nullString(in.Category))
	}
	if in.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolInt(*in.Completed))
	}
	args = append(args, itemID, listID)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE grocery_items SET `+strings.Join(sets, ", ")+` WHERE id = ? AND list_id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if err := touchList(tx, listID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetItem(listID, itemID)
}

func (s *ListStore) DeleteItem(listID, itemID string) error {
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM grocery_items WHERE id = ? AND list_id = ?`, itemID, listID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if err := touchList(tx, listID, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ToggleItem flips completed in a single statement so concurrent toggles
// each observe the value the other left behind. Returns nil if absent.
func (s *ListStore) ToggleItem(listID, itemID string) (*model.Item, error) {
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE grocery_items SET completed = 1 - completed, updated_at = ? WHERE id = ? AND list_id = ?`,
		now, itemID, listID,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	if err := touchList(tx, listID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetItem(listID, itemID)
}

func insertItem(tx *sql.Tx, listID string, in model.CreateItemInput, now time.Time) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}
	completed := in.Completed != nil && *in.Completed
	_, err = tx.Exec(
		`INSERT INTO grocery_items (id, list_id, name, quantity, unit, category, completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, listID, in.Name, in.QuantityOrDefault(), in.UnitOrDefault(), nullString(in.Category), boolInt(completed), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}
	return id, nil
}

func touchList(tx *sql.Tx, listID string, now time.Time) error {
	if _, err := tx.Exec(`UPDATE grocery_lists SET updated_at = ? WHERE id = ?`, now, listID); err != nil {
		return fmt.Errorf("touch list: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
