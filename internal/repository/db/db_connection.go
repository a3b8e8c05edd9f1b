package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// A single writer connection: SQLite serializes write transactions
	// anyway, and this keeps every ingest's read-modify-write of a fan
	// row exclusive for the life of its transaction.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Pragmas to improve reliability
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA journal_mode=WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA foreign_keys=ON: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA busy_timeout=5000: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const schemaFans = `
CREATE TABLE IF NOT EXISTS fans (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    location TEXT NOT NULL,
    device_id TEXT NOT NULL,
    thing_id TEXT,
    status TEXT NOT NULL DEFAULT 'OFF' CHECK (status IN ('ON','OFF')),
    last_on_at TIMESTAMP,
    runtime_total REAL NOT NULL DEFAULT 0,
    runtime_today REAL NOT NULL DEFAULT 0,
    last_gas_level REAL,
    created_at TIMESTAMP NOT NULL,
    last_updated TIMESTAMP NOT NULL,
    UNIQUE (user_id, device_id)
);
`

const schemaFanReadings = `
CREATE TABLE IF NOT EXISTS fan_readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    fan_id INTEGER NOT NULL REFERENCES fans(id) ON DELETE CASCADE,
    gas_level REAL NOT NULL,
    motor_state BOOLEAN NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

const schemaFanRuntimeLog = `
CREATE TABLE IF NOT EXISTS fan_runtime_log (
    id TEXT PRIMARY KEY,
    fan_id INTEGER NOT NULL REFERENCES fans(id) ON DELETE CASCADE,
    gas_level REAL NOT NULL,
    motor_state BOOLEAN NOT NULL,
    credited_minutes INTEGER NOT NULL,
    occurred_at TIMESTAMP NOT NULL
);
`

const indexReadingsByFan = `
CREATE INDEX IF NOT EXISTS idx_fan_readings_fan_time ON fan_readings (fan_id, created_at);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaUsers,
		schemaFans,
		schemaFanReadings,
		schemaFanRuntimeLog,
		indexReadingsByFan,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
