// Package archive keeps a durable SQLite copy of the alert and action logs.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"aegisnet/internal/models"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// ErrClosed is returned after Close
var ErrClosed = errors.New("archive: closed")

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS alerts (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    agent_id    TEXT NOT NULL DEFAULT '',
    payload     TEXT NOT NULL,
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_agent ON alerts(agent_id);

CREATE TABLE IF NOT EXISTS actions (
    id          TEXT PRIMARY KEY,
    action      TEXT NOT NULL,
    target      TEXT NOT NULL DEFAULT '',
    alert_id    TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions(created_at DESC);
`,
	},
}

// Archive is an append-only SQLite journal
type Archive struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database at path and applies migrations.
// Pass ":memory:" for a throwaway archive.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	_, err := a.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := a.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := a.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := a.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// ArchiveAlert stores alert; re-archiving the same ID is a no-op
func (a *Archive) ArchiveAlert(ctx context.Context, alert models.Alert) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alerts(id, type, agent_id, payload, created_at) VALUES(?, ?, ?, ?, ?)`,
		alert.ID, string(alert.Type), alert.AgentID, string(payload), formatTime(alert.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ArchiveAction stores action; re-archiving the same ID is a no-op
func (a *Archive) ArchiveAction(ctx context.Context, action models.Action) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO actions(id, action, target, alert_id, status, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		action.ID, action.Action, action.Target, action.AlertID, action.Status, formatTime(action.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first
func (a *Archive) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT payload FROM alerts ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	out := []models.Alert{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var alert models.Alert
		if err := json.Unmarshal([]byte(payload), &alert); err != nil {
			return nil, fmt.Errorf("decode alert: %w", err)
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

// RecentActions returns up to limit actions, newest first
func (a *Archive) RecentActions(ctx context.Context, limit int) ([]models.Action, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, action, target, alert_id, status, created_at FROM actions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	out := []models.Action{}
	for rows.Next() {
		var act models.Action
		var created string
		if err := rows.Scan(&act.ID, &act.Action, &act.Target, &act.AlertID, &act.Status, &created); err != nil {
			return nil, err
		}
		if act.Timestamp, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, act)
	}
	return out, rows.Err()
}

// Close releases the database; later calls return ErrClosed
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse time %q", s)
	}
	return t, nil
}
