// Package callsessiontest holds a behavioral suite every callsession.Store
// backend must pass.
package callsessiontest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreSuite exercises a fresh store from newStore in each subtest.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) callsession.Store) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	session := func(id string, started time.Time) *callsession.Session {
		return &callsession.Session{
			ID: id, CallerID: "+15550001", Status: callsession.StatusActive,
			StartedAt: started, Transcript: []callsession.Entry{}, HelpRequestIDs: []string{},
		}
	}

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, session("s1", base)))

		got, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "+15550001", got.CallerID)
		assert.Equal(t, callsession.StatusActive, got.Status)
		assert.True(t, base.Equal(got.StartedAt))
		assert.Nil(t, got.EndedAt)
		assert.Empty(t, got.Transcript)

		_, err = s.Get(ctx, "missing")
		assert.True(t, errors.Is(err, callsession.ErrNotFound))
	})

	t.Run("update persists transcript and requests", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, session("s1", base)))

		ended := base.Add(time.Minute)
		_, err := s.Update(ctx, "s1", func(sess *callsession.Session) error {
			sess.Transcript = append(sess.Transcript,
				callsession.Entry{Speaker: callsession.SpeakerCaller, Message: "hi", Timestamp: base.Add(time.Second)},
				callsession.Entry{Speaker: callsession.SpeakerAI, Message: "hello", Timestamp: base.Add(2 * time.Second)},
			)
			sess.HelpRequestIDs = append(sess.HelpRequestIDs, "r1")
			sess.Status = callsession.StatusEnded
			sess.EndedAt = &ended
			return nil
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got.Transcript, 2)
		assert.Equal(t, callsession.SpeakerCaller, got.Transcript[0].Speaker)
		assert.Equal(t, "hello", got.Transcript[1].Message)
		assert.Equal(t, []string{"r1"}, got.HelpRequestIDs)
		assert.Equal(t, callsession.StatusEnded, got.Status)
		require.NotNil(t, got.EndedAt)
		assert.True(t, ended.Equal(*got.EndedAt))
	})

	t.Run("update error aborts write", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, session("s1", base)))

		_, err := s.Update(ctx, "s1", func(sess *callsession.Session) error {
			sess.Status = callsession.StatusEnded
			return callsession.ErrSessionEnded
		})
		assert.ErrorIs(t, err, callsession.ErrSessionEnded)

		got, err := s.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, callsession.StatusActive, got.Status)

		_, err = s.Update(ctx, "missing", func(*callsession.Session) error { return nil })
		assert.ErrorIs(t, err, callsession.ErrNotFound)
	})

	t.Run("list newest first with limit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Create(ctx, session(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Minute))))
		}

		got, err := s.List(ctx, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "s4", got[0].ID)
		assert.Equal(t, "s2", got[2].ID)
	})

	t.Run("upsert caller", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetCaller(ctx, "+1555")
		assert.ErrorIs(t, err, callsession.ErrNotFound)

		c, err := s.UpsertCaller(ctx, "+1555", func(c *callsession.Caller) {
			c.Name = "Ana"
			c.LastCallAt = base
			c.TotalCalls++
		})
		require.NoError(t, err)
		assert.Equal(t, 1, c.TotalCalls)

		_, err = s.UpsertCaller(ctx, "+1555", func(c *callsession.Caller) {
			c.LastCallAt = base.Add(time.Hour)
			c.TotalCalls++
		})
		require.NoError(t, err)

		got, err := s.GetCaller(ctx, "+1555")
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Name)
		assert.Equal(t, 2, got.TotalCalls)
		assert.True(t, base.Add(time.Hour).Equal(got.LastCallAt))
	})
}
