package queue

import (
	"context"
	"database/sql"

	"github.com/dukerupert/shoplist/internal/apperr"
)

// SetAlias records that tempID was acknowledged by the server as serverID.
// Operations retained for a later drain keep their temporary ids and are
// resolved through this table when replayed.
func (q *Queue) SetAlias(ctx context.Context, tempID, serverID string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO id_aliases (temp_id, server_id) VALUES (?, ?)
		 ON CONFLICT(temp_id) DO UPDATE SET server_id = excluded.server_id`,
		tempID, serverID,
	)
	if err != nil {
		return apperr.Storage("save id alias", err)
	}
	return nil
}

// Resolve returns the server id for id, or id itself when no alias exists.
func (q *Queue) Resolve(ctx context.Context, id string) (string, error) {
	var serverID string
	err := q.db.QueryRowContext(ctx, `SELECT server_id FROM id_aliases WHERE temp_id = ?`, id).Scan(&serverID)
	if err == sql.ErrNoRows {
		return id, nil
	}
	if err != nil {
		return "", apperr.Storage("read id alias", err)
	}
	return serverID, nil
}

// Aliases returns every recorded temporary to server id mapping.
func (q *Queue) Aliases(ctx context.Context) (map[string]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT temp_id, server_id FROM id_aliases`)
	if err != nil {
		return nil, apperr.Storage("read id aliases", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var tempID, serverID string
		if err := rows.Scan(&tempID, &serverID); err != nil {
			return nil, apperr.Storage("read id aliases", err)
		}
		out[tempID] = serverID
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("read id aliases", err)
	}
	return out, nil
}
