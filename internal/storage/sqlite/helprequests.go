package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/fyrsmithlabs/frontdesk/internal/storage"
)

const helpRequestColumns = `id, question, caller_id, session_id, status, confidence,
	supervisor_response, created_at, resolved_at, deadline`

// HelpRequestStore implements helprequest.Store.
type HelpRequestStore struct {
	db *sql.DB
}

var _ helprequest.Store = (*HelpRequestStore)(nil)

func (s *HelpRequestStore) Create(ctx context.Context, r *helprequest.HelpRequest) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO help_requests (`+helpRequestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Question, r.CallerID, r.SessionID, string(r.Status), r.Confidence,
		r.SupervisorResponse, toNanos(r.CreatedAt), nullNanos(r.ResolvedAt), toNanos(r.Deadline))
	return storage.Wrap("insert help request", err)
}

func (s *HelpRequestStore) Get(ctx context.Context, id string) (*helprequest.HelpRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+helpRequestColumns+` FROM help_requests WHERE id = ?`, id)
	r, err := scanHelpRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helprequest.ErrNotFound
	}
	if err != nil {
		return nil, storage.Wrap("get help request", err)
	}
	return r, nil
}

func (s *HelpRequestStore) List(ctx context.Context, f helprequest.Filter) ([]*helprequest.HelpRequest, error) {
	query := `SELECT ` + helpRequestColumns + ` FROM help_requests`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC, id ASC`
	return s.query(ctx, "list help requests", query, args...)
}

func (s *HelpRequestStore) ListExpired(ctx context.Context, now time.Time) ([]*helprequest.HelpRequest, error) {
	return s.query(ctx, "list expired help requests",
		`SELECT `+helpRequestColumns+` FROM help_requests
		WHERE status = ? AND deadline < ? ORDER BY deadline ASC`,
		string(helprequest.StatusPending), toNanos(now))
}

// Update runs fn inside an immediate transaction. The status column is
// re-checked in the UPDATE so a write can only land on the version fn saw.
func (s *HelpRequestStore) Update(ctx context.Context, id string, fn func(*helprequest.HelpRequest) error) (*helprequest.HelpRequest, error) {
	var out *helprequest.HelpRequest
	err := withTx(ctx, s.db, "update help request", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+helpRequestColumns+` FROM help_requests WHERE id = ?`, id)
		r, err := scanHelpRequest(row)
		if errors.Is(err, sql.ErrNoRows) {
			return helprequest.ErrNotFound
		}
		if err != nil {
			return storage.Wrap("read help request", err)
		}

		prev := r.Status
		if err := fn(r); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `UPDATE help_requests SET
			question = ?, caller_id = ?, session_id = ?, status = ?, confidence = ?,
			supervisor_response = ?, resolved_at = ?, deadline = ?
			WHERE id = ? AND status = ?`,
			r.Question, r.CallerID, r.SessionID, string(r.Status), r.Confidence,
			r.SupervisorResponse, nullNanos(r.ResolvedAt), toNanos(r.Deadline),
			id, string(prev))
		if err != nil {
			return storage.Wrap("write help request", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return helprequest.ErrAlreadyResolved
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HelpRequestStore) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM help_requests WHERE status = ?`,
		string(helprequest.StatusPending)).Scan(&n)
	if err != nil {
		return 0, storage.Wrap("count pending help requests", err)
	}
	return n, nil
}

func (s *HelpRequestStore) query(ctx context.Context, op, query string, args ...any) ([]*helprequest.HelpRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer rows.Close()

	var out []*helprequest.HelpRequest
	for rows.Next() {
		r, err := scanHelpRequest(rows)
		if err != nil {
			return nil, storage.Wrap(op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, err)
	}
	return out, nil
}

func scanHelpRequest(sc scanner) (*helprequest.HelpRequest, error) {
	var (
		r                   helprequest.HelpRequest
		status              string
		createdAt, deadline int64
		resolvedAt          sql.NullInt64
	)
	if err := sc.Scan(&r.ID, &r.Question, &r.CallerID, &r.SessionID, &status, &r.Confidence,
		&r.SupervisorResponse, &createdAt, &resolvedAt, &deadline); err != nil {
		return nil, err
	}
	r.Status = helprequest.Status(status)
	r.CreatedAt = fromNanos(createdAt)
	r.ResolvedAt = fromNullNanos(resolvedAt)
	r.Deadline = fromNanos(deadline)
	return &r, nil
}
