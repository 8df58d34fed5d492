package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/fyrsmithlabs/frontdesk/internal/storage"
)

const sessionColumns = `id, caller_id, status, started_at, ended_at, transcript, help_request_ids`

// SessionStore implements callsession.Store. Transcript and help request
// ids are stored as JSON arrays on the session row.
type SessionStore struct {
	db *sql.DB
}

var _ callsession.Store = (*SessionStore)(nil)

func (s *SessionStore) Create(ctx context.Context, sess *callsession.Session) error {
	transcript, ids, err := encodeSessionLists(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO call_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CallerID, string(sess.Status), toNanos(sess.StartedAt), nullNanos(sess.EndedAt),
		transcript, ids)
	return storage.Wrap("insert call session", err)
}

func (s *SessionStore) Get(ctx context.Context, id string) (*callsession.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM call_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, callsession.ErrNotFound
	}
	if err != nil {
		return nil, storage.Wrap("get call session", err)
	}
	return sess, nil
}

func (s *SessionStore) List(ctx context.Context, limit int) ([]*callsession.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM call_sessions ORDER BY started_at DESC, id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap("list call sessions", err)
	}
	defer rows.Close()

	var out []*callsession.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storage.Wrap("list call sessions", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("list call sessions", err)
	}
	return out, nil
}

func (s *SessionStore) Update(ctx context.Context, id string, fn func(*callsession.Session) error) (*callsession.Session, error) {
	var out *callsession.Session
	err := withTx(ctx, s.db, "update call session", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM call_sessions WHERE id = ?`, id)
		sess, err := scanSession(row)
		if errors.Is(err, sql.ErrNoRows) {
			return callsession.ErrNotFound
		}
		if err != nil {
			return storage.Wrap("read call session", err)
		}
		if err := fn(sess); err != nil {
			return err
		}

		transcript, ids, err := encodeSessionLists(sess)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE call_sessions SET
			caller_id = ?, status = ?, started_at = ?, ended_at = ?, transcript = ?, help_request_ids = ?
			WHERE id = ?`,
			sess.CallerID, string(sess.Status), toNanos(sess.StartedAt), nullNanos(sess.EndedAt),
			transcript, ids, id); err != nil {
			return storage.Wrap("write call session", err)
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionStore) UpsertCaller(ctx context.Context, id string, fn func(*callsession.Caller)) (*callsession.Caller, error) {
	var out *callsession.Caller
	err := withTx(ctx, s.db, "upsert caller", func(tx *sql.Tx) error {
		c, err := scanCaller(tx.QueryRowContext(ctx,
			`SELECT id, name, last_call_at, total_calls FROM callers WHERE id = ?`, id))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c = &callsession.Caller{ID: id}
		case err != nil:
			return storage.Wrap("read caller", err)
		}

		fn(c)
		if _, err := tx.ExecContext(ctx, `INSERT INTO callers (id, name, last_call_at, total_calls)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				last_call_at = excluded.last_call_at,
				total_calls = excluded.total_calls`,
			id, c.Name, toNanos(c.LastCallAt), c.TotalCalls); err != nil {
			return storage.Wrap("write caller", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionStore) GetCaller(ctx context.Context, id string) (*callsession.Caller, error) {
	c, err := scanCaller(s.db.QueryRowContext(ctx,
		`SELECT id, name, last_call_at, total_calls FROM callers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, callsession.ErrNotFound
	}
	if err != nil {
		return nil, storage.Wrap("get caller", err)
	}
	return c, nil
}

func encodeSessionLists(sess *callsession.Session) (string, string, error) {
	transcript := sess.Transcript
	if transcript == nil {
		transcript = []callsession.Entry{}
	}
	ids := sess.HelpRequestIDs
	if ids == nil {
		ids = []string{}
	}
	t, err := json.Marshal(transcript)
	if err != nil {
		return "", "", fmt.Errorf("encode transcript: %w", err)
	}
	h, err := json.Marshal(ids)
	if err != nil {
		return "", "", fmt.Errorf("encode help request ids: %w", err)
	}
	return string(t), string(h), nil
}

func scanSession(sc scanner) (*callsession.Session, error) {
	var (
		sess               callsession.Session
		status             string
		startedAt          int64
		endedAt            sql.NullInt64
		transcript, reqIDs string
	)
	if err := sc.Scan(&sess.ID, &sess.CallerID, &status, &startedAt, &endedAt, &transcript, &reqIDs); err != nil {
		return nil, err
	}
	sess.Status = callsession.Status(status)
	sess.StartedAt = fromNanos(startedAt)
	sess.EndedAt = fromNullNanos(endedAt)
	if err := json.Unmarshal([]byte(transcript), &sess.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(reqIDs), &sess.HelpRequestIDs); err != nil {
		return nil, fmt.Errorf("decode help request ids: %w", err)
	}
	return &sess, nil
}

func scanCaller(sc scanner) (*callsession.Caller, error) {
	var (
		c          callsession.Caller
		lastCallAt int64
	)
	if err := sc.Scan(&c.ID, &c.Name, &lastCallAt, &c.TotalCalls); err != nil {
		return nil, err
	}
	c.LastCallAt = fromNanos(lastCallAt)
	return &c, nil
}
