package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteTxKey contextKey = "sqlite_tx"

// SQLiteTimeLayout keeps timestamps fixed-width so text ordering matches time
// ordering.
const SQLiteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS healthcare_manager (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS hospital (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS hospital_staff (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    department TEXT NOT NULL,
    available INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_hospital_staff_department ON hospital_staff(department);

CREATE TABLE IF NOT EXISTS resource_pool (
    department TEXT PRIMARY KEY,
    bed_count INTEGER NOT NULL DEFAULT 0 CHECK (bed_count >= 0),
    equipment TEXT NOT NULL DEFAULT '[]',
    total_staff INTEGER NOT NULL DEFAULT 0,
    available_staff INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS resource_allocation (
    id TEXT PRIMARY KEY,
    manager_id TEXT NOT NULL,
    hospital_id TEXT NOT NULL,
    department TEXT NOT NULL,
    staff_ids TEXT NOT NULL DEFAULT '[]',
    bed_count INTEGER NOT NULL DEFAULT 0 CHECK (bed_count >= 0),
    equipment TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resource_allocation_department ON resource_allocation(department);

CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    actor_id TEXT NOT NULL,
    action TEXT NOT NULL,
    target TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL
);
`

// SQLExecutor is the subset of database/sql shared by *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// OpenSQLite opens (or creates) a SQLite database and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = "hospitalops.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases shared across calls.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := sqlDB.ExecContext(ctx, sqliteSchema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return sqlDB, nil
}

// SQLiteProbe builds a health Probe for a SQLite database.
func SQLiteProbe(sqlDB *sql.DB) Probe {
	return Probe{Driver: "sqlite", Ping: sqlDB.PingContext}
}

func sqlTxFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(sqliteTxKey).(*sql.Tx)
	return tx
}

// SQLConn returns the SQLite transaction bound to ctx, falling back to db.
func SQLConn(ctx context.Context, sqlDB *sql.DB) SQLExecutor {
	if tx := sqlTxFromContext(ctx); tx != nil {
		return tx
	}
	return sqlDB
}

// SQLTxRunner is the database/sql counterpart of TxRunner.
type SQLTxRunner struct {
	db *sql.DB
}

func NewSQLTxRunner(sqlDB *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{db: sqlDB}
}

func (r *SQLTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if sqlTxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, sqliteTxKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FormatSQLiteTime renders t in UTC using SQLiteTimeLayout.
func FormatSQLiteTime(t time.Time) string {
	return t.UTC().Format(SQLiteTimeLayout)
}

// ParseSQLiteTime parses a timestamp written by FormatSQLiteTime.
func ParseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(SQLiteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
