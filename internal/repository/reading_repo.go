package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smart_ventilation/internal/models"

	"github.com/google/uuid"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite { return &ReadingSQLite{db: db} }

var _ ReadingRepo = (*ReadingSQLite)(nil)

const (
	insertReadingSQL = `
		INSERT INTO fan_readings (fan_id, gas_level, motor_state, created_at)
		VALUES (?, ?, ?, ?)
	`

	selectRecentReadingsSQL = `
		SELECT id, fan_id, gas_level, motor_state, created_at
		FROM fan_readings WHERE fan_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`
)

// Append inserts one accepted telemetry sample. Rows are never updated.
func (r *ReadingSQLite) Append(ctx context.Context, q Querier, rd models.Reading) error {
	ts := rd.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}
	if _, err := q.ExecContext(ctx, insertReadingSQL,
		rd.FanID, rd.GasLevel, rd.MotorState, ts,
	); err != nil {
		return fmt.Errorf("insert reading for fan %d: %w", rd.FanID, err)
	}
	return nil
}

// ListRecent returns the newest readings for a fan, newest first.
func (r *ReadingSQLite) ListRecent(ctx context.Context, fanID int64, limit int) ([]models.Reading, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, selectRecentReadingsSQL, fanID, limit)
	if err != nil {
		return nil, fmt.Errorf("select readings for fan %d: %w", fanID, err)
	}
	defer rows.Close()

	out := make([]models.Reading, 0, limit)
	for rows.Next() {
		var rd models.Reading
		if err := rows.Scan(&rd.ID, &rd.FanID, &rd.GasLevel, &rd.MotorState, &rd.CreatedAt); err != nil {
			return nil, err
		}
		rd.CreatedAt = rd.CreatedAt.UTC()
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type RuntimeLogSQLite struct {
	db *sql.DB
}

func NewRuntimeLogSQLite(db *sql.DB) *RuntimeLogSQLite { return &RuntimeLogSQLite{db: db} }

var _ RuntimeLogRepo = (*RuntimeLogSQLite)(nil)

const (
	insertRuntimeLogSQL = `
		INSERT INTO fan_runtime_log (id, fan_id, gas_level, motor_state, credited_minutes, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	selectRuntimeLogSQL = `
		SELECT id, fan_id, gas_level, motor_state, credited_minutes, occurred_at
		FROM fan_runtime_log
		WHERE fan_id = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at ASC
	`
)

// Append inserts one accrual decision. If EntryID or OccurredAt are empty,
// they're set.
func (r *RuntimeLogSQLite) Append(ctx context.Context, q Querier, e models.RuntimeLogEntry) error {
	if e.EntryID == "" {
		e.EntryID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	if _, err := q.ExecContext(ctx, insertRuntimeLogSQL,
		e.EntryID, e.FanID, e.GasLevel, e.MotorState, e.CreditedMinutes, e.OccurredAt,
	); err != nil {
		return fmt.Errorf("insert runtime log for fan %d: %w", e.FanID, err)
	}
	return nil
}

// List returns accrual entries for a fan in [from, to], oldest first.
func (r *RuntimeLogSQLite) List(ctx context.Context, fanID int64, from, to time.Time) ([]models.RuntimeLogEntry, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	rows, err := r.db.QueryContext(ctx, selectRuntimeLogSQL, fanID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("select runtime log for fan %d: %w", fanID, err)
	}
	defer rows.Close()

	out := make([]models.RuntimeLogEntry, 0, 64)
	for rows.Next() {
		var e models.RuntimeLogEntry
		if err := rows.Scan(&e.EntryID, &e.FanID, &e.GasLevel, &e.MotorState, &e.CreditedMinutes, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.OccurredAt = e.OccurredAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
