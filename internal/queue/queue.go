// Package queue is the durable log of mutations made while the server was
// unreachable. Every Enqueue commits before returning, so an operation
// survives a crash right after the call. Drain replays a snapshot of the log
// in timestamp order and removes exactly the operations that succeeded.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/shoplist/internal/apperr"
)

// ErrDrainInProgress is returned when Drain is called while another drain on
// the same queue has not finished.
var ErrDrainInProgress = errors.New("drain already in progress")

type Queue struct {
	db       *sql.DB
	logger   *slog.Logger
	now      func() time.Time
	draining sync.Mutex
}

func New(db *sql.DB, logger *slog.Logger) *Queue {
	return &Queue{db: db, logger: logger, now: time.Now}
}

// Failure pairs a retained operation with the reason it failed.
type Failure struct {
	Op  Operation
	Err error
}

type Summary struct {
	Succeeded int
	Failed    int
	Failures  []Failure
}

// ReplayFunc applies one operation remotely. A nil return removes the
// operation from the queue.
type ReplayFunc func(ctx context.Context, op Operation) error

// Enqueue validates and persists op. A zero Timestamp is set to now. The
// returned copy carries the assigned Seq.
func (q *Queue) Enqueue(ctx context.Context, op Operation) (Operation, error) {
	if err := op.Validate(); err != nil {
		return op, err
	}
	if op.Timestamp == 0 {
		op.Timestamp = q.now().UnixMilli()
	}

	payload, err := json.Marshal(op)
	if err != nil {
		return op, apperr.Storage("queue operation", err)
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO pending_operations (op_type, timestamp, payload) VALUES (?, ?, ?)`,
		string(op.Type), op.Timestamp, string(payload),
	)
	if err != nil {
		return op, apperr.Storage("queue operation", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return op, apperr.Storage("queue operation", err)
	}
	op.Seq = seq

	q.logger.Debug("operation queued", "seq", seq, "op", op.String())
	return op, nil
}

// PeekAll returns the pending operations in replay order: timestamp
// ascending, then insertion sequence.
func (q *Queue) PeekAll(ctx context.Context) ([]Operation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT seq, payload FROM pending_operations ORDER BY timestamp ASC, seq ASC`)
	if err != nil {
		return nil, apperr.Storage("read queue", err)
	}
	defer rows.Close()

	ops := []Operation{}
	for rows.Next() {
		var seq int64
		var payload string
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, apperr.Storage("read queue", err)
		}
		var op Operation
		if err := json.Unmarshal([]byte(payload), &op); err != nil {
			return nil, apperr.Storage("read queue", fmt.Errorf("decode operation %d: %w", seq, err))
		}
		op.Seq = seq
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("read queue", err)
	}
	return ops, nil
}

func (q *Queue) Size(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_operations`).Scan(&n); err != nil {
		return 0, apperr.Storage("read queue", err)
	}
	return n, nil
}

func (q *Queue) IsEmpty(ctx context.Context) (bool, error) {
	n, err := q.Size(ctx)
	return n == 0, err
}

// Drain replays a snapshot of the queue through replay, one operation at a
// time in replay order. Operations for which replay returns nil are deleted
// in a single transaction once the pass is over; failures stay verbatim.
// Operations enqueued while the pass runs are not part of the snapshot and
// wait for the next drain. When the queue ends up empty the temporary id
// aliases are cleared too.
func (q *Queue) Drain(ctx context.Context, replay ReplayFunc) (Summary, error) {
	if !q.draining.TryLock() {
		return Summary{}, ErrDrainInProgress
	}
	defer q.draining.Unlock()

	ops, err := q.PeekAll(ctx)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	done := make([]int64, 0, len(ops))
	for _, op := range ops {
		if err := replay(ctx, op); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Op: op, Err: err})
			q.logger.Debug("replay failed", "seq", op.Seq, "op", op.String(), "error", err)
			continue
		}
		summary.Succeeded++
		done = append(done, op.Seq)
	}

	if err := q.remove(ctx, done); err != nil {
		return summary, err
	}
	return summary, nil
}

func (q *Queue) remove(ctx context.Context, seqs []int64) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("update queue", err)
	}
	defer tx.Rollback()

	if len(seqs) > 0 {
		args := make([]any, len(seqs))
		for i, s := range seqs {
			args[i] = s
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seqs)), ",")
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pending_operations WHERE seq IN (`+placeholders+`)`, args...); err != nil {
			return apperr.Storage("update queue", err)
		}
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_operations`).Scan(&remaining); err != nil {
		return apperr.Storage("update queue", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM id_aliases`); err != nil {
			return apperr.Storage("update queue", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Storage("update queue", err)
	}
	return nil
}

// Clear empties the queue and the alias table unconditionally.
func (q *Queue) Clear(ctx context.Context) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("clear queue", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM pending_operations`, `DELETE FROM id_aliases`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return apperr.Storage("clear queue", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("clear queue", err)
	}
	return nil
}
