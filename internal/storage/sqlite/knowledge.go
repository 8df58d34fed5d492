package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/storage"
)

const knowledgeColumns = `id, question, answer, category, confidence, active, created_at, updated_at`

// KnowledgeStore implements knowledge.Store. Search loads candidate rows and
// ranks them with knowledge.Rank so ordering matches the in-memory store.
type KnowledgeStore struct {
	db *sql.DB
}

var _ knowledge.Store = (*KnowledgeStore)(nil)

func (s *KnowledgeStore) Search(ctx context.Context, q knowledge.Query) ([]knowledge.Item, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_items`
	if q.ActiveOnly {
		query += ` WHERE active = 1`
	}
	items, err := s.query(ctx, "search knowledge", query)
	if err != nil {
		return nil, err
	}
	return knowledge.Rank(items, q), nil
}

func (s *KnowledgeStore) Get(ctx context.Context, id string) (*knowledge.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, knowledge.ErrNotFound
	}
	if err != nil {
		return nil, storage.Wrap("get knowledge item", err)
	}
	return it, nil
}

func (s *KnowledgeStore) List(ctx context.Context) ([]knowledge.Item, error) {
	return s.query(ctx, "list knowledge",
		`SELECT `+knowledgeColumns+` FROM knowledge_items WHERE active = 1 ORDER BY updated_at DESC, id ASC`)
}

func (s *KnowledgeStore) Create(ctx context.Context, it *knowledge.Item) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO knowledge_items (`+knowledgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Question, it.Answer, it.Category, it.Confidence, boolInt(it.Active),
		toNanos(it.CreatedAt), toNanos(it.UpdatedAt))
	return storage.Wrap("insert knowledge item", err)
}

func (s *KnowledgeStore) Update(ctx context.Context, id string, fn func(*knowledge.Item) error) (*knowledge.Item, error) {
	var out *knowledge.Item
	err := withTx(ctx, s.db, "update knowledge item", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_items WHERE id = ?`, id)
		it, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return knowledge.ErrNotFound
		}
		if err != nil {
			return storage.Wrap("read knowledge item", err)
		}
		if err := fn(it); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE knowledge_items SET
			question = ?, answer = ?, category = ?, confidence = ?, active = ?, updated_at = ?
			WHERE id = ?`,
			it.Question, it.Answer, it.Category, it.Confidence, boolInt(it.Active),
			toNanos(it.UpdatedAt), id); err != nil {
			return storage.Wrap("write knowledge item", err)
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *KnowledgeStore) SoftDelete(ctx context.Context, id string) (bool, error) {
	var changed bool
	err := withTx(ctx, s.db, "soft delete knowledge item", func(tx *sql.Tx) error {
		var active int
		err := tx.QueryRowContext(ctx, `SELECT active FROM knowledge_items WHERE id = ?`, id).Scan(&active)
		if errors.Is(err, sql.ErrNoRows) {
			return knowledge.ErrNotFound
		}
		if err != nil {
			return storage.Wrap("read knowledge item", err)
		}
		if active == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE knowledge_items SET active = 0 WHERE id = ?`, id); err != nil {
			return storage.Wrap("deactivate knowledge item", err)
		}
		changed = true
		return nil
	})
	return changed, err
}

func (s *KnowledgeStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_items`).Scan(&n); err != nil {
		return 0, storage.Wrap("count knowledge", err)
	}
	return n, nil
}

func (s *KnowledgeStore) query(ctx context.Context, op, query string, args ...any) ([]knowledge.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer rows.Close()

	var out []knowledge.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storage.Wrap(op, err)
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, err)
	}
	return out, nil
}

func scanItem(sc scanner) (*knowledge.Item, error) {
	var (
		it                   knowledge.Item
		active               int
		createdAt, updatedAt int64
	)
	if err := sc.Scan(&it.ID, &it.Question, &it.Answer, &it.Category, &it.Confidence,
		&active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	it.Active = active != 0
	it.CreatedAt = fromNanos(createdAt)
	it.UpdatedAt = fromNanos(updatedAt)
	return &it, nil
}
