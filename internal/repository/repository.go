package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smart_ventilation/internal/models"
	"smart_ventilation/internal/repository/db"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by inserts that hit a UNIQUE constraint.
var ErrDuplicate = errors.New("duplicate row")

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repo methods that must run inside the ingest transaction take one
// explicitly instead of reaching for an ambient connection.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Authorization interface {
	Create(ctx context.Context, name, email, passwordHash string) (int64, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// FanRepo is the fan state store. The Lookup and ApplyTransition methods
// take a Querier so the coordinator can scope them to one transaction.
// LookupByDevice serves telemetry producers; device ids are only unique
// per owner, so pre-resolved events (manual control) go through LookupByID.
type FanRepo interface {
	Create(ctx context.Context, f models.Fan) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Fan, error)
	GetByID(ctx context.Context, userID, fanID int64) (*models.Fan, error)
	LookupByDevice(ctx context.Context, q Querier, deviceID string) (*models.Fan, error)
	LookupByID(ctx context.Context, q Querier, fanID int64) (*models.Fan, error)
	ApplyTransition(ctx context.Context, q Querier, f models.Fan) error
}

// ReadingRepo appends and reads the immutable telemetry history.
type ReadingRepo interface {
	Append(ctx context.Context, q Querier, r models.Reading) error
	ListRecent(ctx context.Context, fanID int64, limit int) ([]models.Reading, error)
}

// RuntimeLogRepo appends and reads the accrual audit trail.
type RuntimeLogRepo interface {
	Append(ctx context.Context, q Querier, e models.RuntimeLogEntry) error
	List(ctx context.Context, fanID int64, from, to time.Time) ([]models.RuntimeLogEntry, error)
}

// TxRunner runs a function inside one storage transaction. Any error (or
// panic) rolls the whole unit back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Repository struct {
	Fans       FanRepo
	Readings   ReadingRepo
	RuntimeLog RuntimeLogRepo
	Auth       Authorization
	Tx         TxRunner
}

func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{
		Fans:       NewFanSQLite(sqlDB),
		Readings:   NewReadingSQLite(sqlDB),
		RuntimeLog: NewRuntimeLogSQLite(sqlDB),
		Auth:       NewUserRepository(sqlDB),
		Tx:         NewSQLTxRunner(sqlDB),
	}
}

// InitDB re-exports the db package bootstrap so main only imports repository.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}

// SQLTxRunner implements TxRunner on *sql.DB.
type SQLTxRunner struct {
	db *sql.DB
}

func NewSQLTxRunner(db *sql.DB) *SQLTxRunner { return &SQLTxRunner{db: db} }

func (r *SQLTxRunner) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		// no-op after Commit; guarantees release on error and panic paths
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
