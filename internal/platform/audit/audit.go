// Package audit records who changed capacity and why. Sinks exist for
// Postgres, SQLite and the structured log.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hospitalops/hospitalops/internal/platform/db"
)

const (
	ActionResourceAllocated   = "RESOURCE_ALLOCATED"
	ActionResourceReallocated = "RESOURCE_REALLOCATED"
	ActionShortageDetected    = "SHORTAGE_DETECTED"

	// TargetResourceAllocation is the target of entries that concern the
	// allocation subsystem as a whole rather than one record.
	TargetResourceAllocation = "RESOURCE_ALLOCATION"
)

// Entry is one row of the audit log.
type Entry struct {
	ID        string                 `json:"id"`
	ActorID   string                 `json:"actor_id"`
	Action    string                 `json:"action"`
	Target    string                 `json:"target"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func newEntry(actorID, action, target string, details map[string]interface{}) (*Entry, []byte, error) {
	if details == nil {
		details = map[string]interface{}{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, nil, fmt.Errorf("audit: encode details: %w", err)
	}
	return &Entry{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Target:    target,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}, raw, nil
}

// PGLogger writes entries to the audit_log table. It joins the caller's
// transaction when one is bound to ctx.
type PGLogger struct {
	pool *pgxpool.Pool
}

func NewPGLogger(pool *pgxpool.Pool) *PGLogger {
	return &PGLogger{pool: pool}
}

func (a *PGLogger) Append(ctx context.Context, actorID, action, target string, details map[string]interface{}) error {
	e, raw, err := newEntry(actorID, action, target, details)
	if err != nil {
		return err
	}
	_, err = db.Conn(ctx, a.pool).Exec(ctx,
		`INSERT INTO audit_log (id, actor_id, action, target, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.ActorID, e.Action, e.Target, string(raw), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: insert %s: %w", action, err)
	}
	return nil
}

// SQLiteLogger writes entries to the SQLite audit_log table.
type SQLiteLogger struct {
	db *sql.DB
}

func NewSQLiteLogger(sqlDB *sql.DB) *SQLiteLogger {
	return &SQLiteLogger{db: sqlDB}
}

func (a *SQLiteLogger) Append(ctx context.Context, actorID, action, target string, details map[string]interface{}) error {
	e, raw, err := newEntry(actorID, action, target, details)
	if err != nil {
		return err
	}
	_, err = db.SQLConn(ctx, a.db).ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, action, target, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActorID, e.Action, e.Target, string(raw), db.FormatSQLiteTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("audit: insert %s: %w", action, err)
	}
	return nil
}

// Recent returns the newest entries first.
func (a *SQLiteLogger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := db.SQLConn(ctx, a.db).QueryContext(ctx,
		`SELECT id, actor_id, action, target, details, created_at
		 FROM audit_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var raw, created string
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Target, &raw, &created); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Details); err != nil {
			return nil, fmt.Errorf("audit: decode details: %w", err)
		}
		if e.CreatedAt, err = db.ParseSQLiteTime(created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LogSink writes entries to the structured log only.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (a *LogSink) Append(_ context.Context, actorID, action, target string, details map[string]interface{}) error {
	a.logger.Info().
		Str("actor_id", actorID).
		Str("action", action).
		Str("target", target).
		Fields(map[string]interface{}{"details": details}).
		Msg("audit")
	return nil
}
