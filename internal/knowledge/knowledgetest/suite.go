// Package knowledgetest holds a behavioral suite every knowledge.Store
// backend must pass.
package knowledgetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreSuite exercises a fresh store from newStore in each subtest.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) knowledge.Store) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	item := func(id, q, a string, conf float64, age time.Duration) *knowledge.Item {
		return &knowledge.Item{
			ID: id, Question: q, Answer: a, Confidence: conf, Active: true,
			CreatedAt: base, UpdatedAt: base.Add(-age),
		}
	}

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := item("k1", "What are your hours?", "9 to 5", 0.9, 0)
		in.Category = "Hours"
		require.NoError(t, s.Create(ctx, in))

		got, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "What are your hours?", got.Question)
		assert.Equal(t, "Hours", got.Category)
		assert.Equal(t, 0.9, got.Confidence)
		assert.True(t, got.Active)
		assert.True(t, base.Equal(got.CreatedAt))

		_, err = s.Get(ctx, "missing")
		assert.True(t, errors.Is(err, knowledge.ErrNotFound))
	})

	t.Run("search ranks by relevance then confidence", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, item("a", "Do you do keratin treatments?", "Yes", 0.95, 0)))
		require.NoError(t, s.Create(ctx, item("b", "How long do keratin treatments last?", "3-4 months", 0.7, 0)))
		require.NoError(t, s.Create(ctx, item("c", "Is parking available?", "Keratin clients park free", 0.99, 0)))

		got, err := s.Search(ctx, knowledge.Query{Text: "keratin treatments", ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)

		got, err = s.Search(ctx, knowledge.Query{Text: "keratin", ActiveOnly: true, IncludeAnswers: true})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "c", got[2].ID, "answer hits rank below question hits")

		got, err = s.Search(ctx, knowledge.Query{Text: "keratin", ActiveOnly: true, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].ID)
	})

	t.Run("search skips inactive when asked", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, item("a", "Do you sell gift cards?", "Yes", 0.8, 0)))
		deleted, err := s.SoftDelete(ctx, "a")
		require.NoError(t, err)
		assert.True(t, deleted)

		got, err := s.Search(ctx, knowledge.Query{Text: "gift cards", ActiveOnly: true})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.Search(ctx, knowledge.Query{Text: "gift cards"})
		require.NoError(t, err)
		assert.Len(t, got, 1)

		deleted, err = s.SoftDelete(ctx, "a")
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = s.SoftDelete(ctx, "missing")
		assert.True(t, errors.Is(err, knowledge.ErrNotFound))
	})

	t.Run("list returns active items newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, item("old", "Old question here", "a", 0.8, time.Hour)))
		require.NoError(t, s.Create(ctx, item("new", "New question here", "a", 0.8, 0)))
		require.NoError(t, s.Create(ctx, item("gone", "Gone question here", "a", 0.8, 0)))
		_, err := s.SoftDelete(ctx, "gone")
		require.NoError(t, err)

		got, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "new", got[0].ID)
		assert.Equal(t, "old", got[1].ID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("update is read-modify-write", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, item("a", "Do you take walk-ins?", "Sometimes", 0.5, 0)))

		got, err := s.Update(ctx, "a", func(it *knowledge.Item) error {
			it.Answer = "Yes"
			it.Confidence += 0.1
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Yes", got.Answer)
		assert.InDelta(t, 0.6, got.Confidence, 1e-9)

		boom := errors.New("boom")
		_, err = s.Update(ctx, "a", func(it *knowledge.Item) error {
			it.Answer = "discarded"
			return boom
		})
		assert.ErrorIs(t, err, boom)

		stored, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Yes", stored.Answer)

		_, err = s.Update(ctx, "missing", func(*knowledge.Item) error { return nil })
		assert.True(t, errors.Is(err, knowledge.ErrNotFound))
	})
}
