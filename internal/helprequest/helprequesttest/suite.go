// Package helprequesttest holds a behavioral suite every helprequest.Store
// backend must pass.
package helprequesttest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreSuite exercises a fresh store from newStore in each subtest.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) helprequest.Store) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	pending := func(id string, created time.Time) *helprequest.HelpRequest {
		return &helprequest.HelpRequest{
			ID: id, Question: "Do you offer a free yacht?", CallerID: "+15550001",
			Status: helprequest.StatusPending, Confidence: 0.2,
			CreatedAt: created, Deadline: created.Add(10 * time.Minute),
		}
	}

	t.Run("create and get round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := pending("r1", base)
		in.SessionID = "s1"
		require.NoError(t, s.Create(ctx, in))

		got, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "Do you offer a free yacht?", got.Question)
		assert.Equal(t, "+15550001", got.CallerID)
		assert.Equal(t, "s1", got.SessionID)
		assert.Equal(t, helprequest.StatusPending, got.Status)
		assert.Equal(t, 0.2, got.Confidence)
		assert.True(t, base.Equal(got.CreatedAt))
		assert.True(t, base.Add(10*time.Minute).Equal(got.Deadline))
		assert.Nil(t, got.ResolvedAt)

		_, err = s.Get(ctx, "missing")
		assert.True(t, errors.Is(err, helprequest.ErrNotFound))
	})

	t.Run("list filters and orders newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, pending("old", base)))
		require.NoError(t, s.Create(ctx, pending("new", base.Add(time.Minute))))
		done := pending("done", base.Add(2*time.Minute))
		done.Status = helprequest.StatusUnresolved
		require.NoError(t, s.Create(ctx, done))

		all, err := s.List(ctx, helprequest.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"done", "new", "old"}, ids(all))

		onlyPending, err := s.List(ctx, helprequest.Filter{Status: helprequest.StatusPending})
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "old"}, ids(onlyPending))

		n, err := s.CountPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("list expired returns overdue pending only", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, pending("overdue", base)))
		require.NoError(t, s.Create(ctx, pending("fresh", base.Add(30*time.Minute))))
		closed := pending("closed", base)
		closed.Status = helprequest.StatusUnresolved
		require.NoError(t, s.Create(ctx, closed))

		expired, err := s.ListExpired(ctx, base.Add(15*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, []string{"overdue"}, ids(expired))

		expired, err = s.ListExpired(ctx, base.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Empty(t, expired, "deadline equal to now is not yet expired")
	})

	t.Run("update applies and persists", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, pending("r1", base)))

		at := base.Add(time.Minute)
		got, err := s.Update(ctx, "r1", func(r *helprequest.HelpRequest) error {
			r.Status = helprequest.StatusResolved
			r.SupervisorResponse = "Yes"
			r.ResolvedAt = &at
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, helprequest.StatusResolved, got.Status)

		stored, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "Yes", stored.SupervisorResponse)
		require.NotNil(t, stored.ResolvedAt)
		assert.True(t, at.Equal(*stored.ResolvedAt))

		_, err = s.Update(ctx, "missing", func(*helprequest.HelpRequest) error { return nil })
		assert.True(t, errors.Is(err, helprequest.ErrNotFound))
	})

	t.Run("update error aborts write", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, pending("r1", base)))

		_, err := s.Update(ctx, "r1", func(r *helprequest.HelpRequest) error {
			r.Status = helprequest.StatusUnresolved
			return helprequest.ErrAlreadyResolved
		})
		assert.ErrorIs(t, err, helprequest.ErrAlreadyResolved)

		stored, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, helprequest.StatusPending, stored.Status)
	})

	t.Run("concurrent check-and-set has one winner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, pending("r1", base)))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Update(ctx, "r1", func(r *helprequest.HelpRequest) error {
					if r.Status != helprequest.StatusPending {
						return helprequest.ErrAlreadyResolved
					}
					r.Status = helprequest.StatusUnresolved
					return nil
				})
				if err == nil {
					wins.Add(1)
				} else {
					assert.ErrorIs(t, err, helprequest.ErrAlreadyResolved)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func ids(rs []*helprequest.HelpRequest) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
