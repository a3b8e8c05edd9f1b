package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"smart_ventilation/internal/models"
)

type FanSQLite struct {
	db *sql.DB
}

func NewFanSQLite(db *sql.DB) *FanSQLite { return &FanSQLite{db: db} }

var _ FanRepo = (*FanSQLite)(nil)

const (
	insertFanSQL = `
		INSERT INTO fans (user_id, name, location, device_id, thing_id, status,
			runtime_total, runtime_today, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	fanColumns = `id, user_id, name, location, device_id, thing_id, status,
		last_on_at, runtime_total, runtime_today, last_gas_level, created_at, last_updated`

	selectFanByDeviceSQL = `SELECT ` + fanColumns + ` FROM fans WHERE device_id = ?`
	selectFanByIDSQL     = `SELECT ` + fanColumns + ` FROM fans WHERE id = ? AND user_id = ?`
	selectFanByRowSQL    = `SELECT ` + fanColumns + ` FROM fans WHERE id = ?`
	selectFansByUserSQL  = `SELECT ` + fanColumns + ` FROM fans WHERE user_id = ? ORDER BY created_at DESC`

	applyTransitionSQL = `
		UPDATE fans SET
			status = ?,
			last_on_at = ?,
			runtime_total = ?,
			runtime_today = ?,
			last_gas_level = ?,
			last_updated = ?
		WHERE id = ?
	`
)

// Create inserts a new fan registered to a user and returns its ID.
func (r *FanSQLite) Create(ctx context.Context, f models.Fan) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, insertFanSQL,
		f.UserID,
		f.Name,
		f.Location,
		f.DeviceID,
		nullString(f.ThingID),
		models.StatusOff,
		0.0,
		0.0,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert fan %q: %w", f.Name, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert fan %q: %w", f.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id for fan %q: %w", f.Name, err)
	}
	return id, nil
}

// ListByUser returns all fans registered to a user, newest first.
func (r *FanSQLite) ListByUser(ctx context.Context, userID int64) ([]models.Fan, error) {
	rows, err := r.db.QueryContext(ctx, selectFansByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("select fans for user %d: %w", userID, err)
	}
	defer rows.Close()

	out := make([]models.Fan, 0, 8)
	for rows.Next() {
		f, err := scanFan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns one fan owned by the given user, or ErrNotFound.
func (r *FanSQLite) GetByID(ctx context.Context, userID, fanID int64) (*models.Fan, error) {
	row := r.db.QueryRowContext(ctx, selectFanByIDSQL, fanID, userID)
	f, err := scanFanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select fan %d: %w", fanID, err)
	}
	return &f, nil
}

// LookupByDevice maps a device identifier to its fan, or ErrNotFound.
// When q is the ingest transaction the returned snapshot stays exclusive
// until that transaction ends.
func (r *FanSQLite) LookupByDevice(ctx context.Context, q Querier, deviceID string) (*models.Fan, error) {
	row := q.QueryRowContext(ctx, selectFanByDeviceSQL, deviceID)
	f, err := scanFanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select fan by device %q: %w", deviceID, err)
	}
	return &f, nil
}

// LookupByID loads a fan by primary key, or ErrNotFound. Used for events
// whose producer already resolved the fan, where a device-id lookup could
// land on another owner's row.
func (r *FanSQLite) LookupByID(ctx context.Context, q Querier, fanID int64) (*models.Fan, error) {
	row := q.QueryRowContext(ctx, selectFanByRowSQL, fanID)
	f, err := scanFanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select fan %d: %w", fanID, err)
	}
	return &f, nil
}

// ApplyTransition persists an accrual engine decision as one write:
// status, last_on_at, both runtime counters and the telemetry fields.
func (r *FanSQLite) ApplyTransition(ctx context.Context, q Querier, f models.Fan) error {
	var lastOn any
	if f.LastOnAt != nil {
		lastOn = f.LastOnAt.UTC()
	}
	var lastGas any
	if f.LastGasLevel != nil {
		lastGas = *f.LastGasLevel
	}

	res, err := q.ExecContext(ctx, applyTransitionSQL,
		f.Status,
		lastOn,
		f.RuntimeTotal,
		f.RuntimeToday,
		lastGas,
		f.LastUpdated.UTC(),
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("apply transition for fan %d: %w", f.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("apply transition for fan %d: %w", f.ID, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFanRow(row *sql.Row) (models.Fan, error) { return scanFan(row) }

func scanFan(s rowScanner) (models.Fan, error) {
	var (
		f       models.Fan
		thingID sql.NullString
		lastOn  sql.NullTime
		lastGas sql.NullFloat64
		created time.Time
		updated time.Time
	)
	if err := s.Scan(
		&f.ID,
		&f.UserID,
		&f.Name,
		&f.Location,
		&f.DeviceID,
		&thingID,
		&f.Status,
		&lastOn,
		&f.RuntimeTotal,
		&f.RuntimeToday,
		&lastGas,
		&created,
		&updated,
	); err != nil {
		return models.Fan{}, err
	}
	if thingID.Valid {
		f.ThingID = thingID.String
	}
	if lastOn.Valid {
		t := lastOn.Time.UTC()
		f.LastOnAt = &t
	}
	if lastGas.Valid {
		v := lastGas.Float64
		f.LastGasLevel = &v
	}
	f.CreatedAt = created.UTC()
	f.LastUpdated = updated.UTC()
	return f, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation matches the SQLite message for a UNIQUE constraint
// breach. The driver's error type keeps its code unexported, so the
// message text is the stable surface to check.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
