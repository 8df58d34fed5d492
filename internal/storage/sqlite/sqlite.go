// Package sqlite persists help requests, knowledge and call sessions in a
// single SQLite file using the pure-Go modernc.org/sqlite driver.
//
// Every read-modify-write runs in a transaction started with BEGIN
// IMMEDIATE, so the status check and the write of a help request transition
// happen under one write lock.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/storage"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS help_requests (
	id                  TEXT PRIMARY KEY,
	question            TEXT NOT NULL,
	caller_id           TEXT NOT NULL,
	session_id          TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL,
	confidence          REAL NOT NULL,
	supervisor_response TEXT NOT NULL DEFAULT '',
	created_at          INTEGER NOT NULL,
	resolved_at         INTEGER,
	deadline            INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_help_requests_status_deadline ON help_requests(status, deadline);
CREATE INDEX IF NOT EXISTS idx_help_requests_created ON help_requests(created_at);

CREATE TABLE IF NOT EXISTS knowledge_items (
	id         TEXT PRIMARY KEY,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_knowledge_active ON knowledge_items(active);

CREATE TABLE IF NOT EXISTS call_sessions (
	id               TEXT PRIMARY KEY,
	caller_id        TEXT NOT NULL,
	status           TEXT NOT NULL,
	started_at       INTEGER NOT NULL,
	ended_at         INTEGER,
	transcript       TEXT NOT NULL DEFAULT '[]',
	help_request_ids TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_call_sessions_started ON call_sessions(started_at);

CREATE TABLE IF NOT EXISTS callers (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	last_call_at INTEGER NOT NULL,
	total_calls  INTEGER NOT NULL DEFAULT 0
);
`

// DB is an open frontdesk database.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and bootstraps the
// schema.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storage.Wrap("open sqlite", err)
	}
	// A single connection serializes writers inside the process and keeps
	// BEGIN IMMEDIATE from ever contending with itself.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, storage.Wrap("create schema", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return storage.Wrap("ping sqlite", d.db.PingContext(ctx))
}

// HelpRequests returns the help request store.
func (d *DB) HelpRequests() *HelpRequestStore { return &HelpRequestStore{db: d.db} }

// Knowledge returns the knowledge store.
func (d *DB) Knowledge() *KnowledgeStore { return &KnowledgeStore{db: d.db} }

// Sessions returns the call session store.
func (d *DB) Sessions() *SessionStore { return &SessionStore{db: d.db} }

type scanner interface {
	Scan(dest ...any) error
}

// withTx runs fn in a transaction. Errors from fn are returned unchanged;
// driver errors are wrapped as persistence failures.
func withTx(ctx context.Context, db *sql.DB, op string, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Wrap(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storage.Wrap(op, err)
	}
	return nil
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
