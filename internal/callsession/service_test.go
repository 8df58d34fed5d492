package callsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(now *time.Time) *Service {
	return NewService(NewMemoryStore(), nil, WithClock(func() time.Time { return *now }))
}

func TestService_StartEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "+15551234", "Ana")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, sess.Status)
	assert.Equal(t, now, sess.StartedAt)

	now = now.Add(time.Hour)
	_, err = svc.Start(ctx, "+15551234", "")
	require.NoError(t, err)

	caller, err := svc.Caller(ctx, "+15551234")
	require.NoError(t, err)
	assert.Equal(t, "Ana", caller.Name)
	assert.Equal(t, 2, caller.TotalCalls)
	assert.Equal(t, now, caller.LastCallAt)

	ended, err := svc.End(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)

	_, err = svc.End(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionEnded)

	_, err = svc.Start(ctx, " ", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.End(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_AppendTranscript(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "+15551234", "")
	require.NoError(t, err)

	// Clock does not move: entries must still be strictly ordered.
	_, err = svc.AppendTranscript(ctx, sess.ID, SpeakerCaller, "What are your hours?")
	require.NoError(t, err)
	got, err := svc.AppendTranscript(ctx, sess.ID, SpeakerAI, "9 to 5")
	require.NoError(t, err)

	require.Len(t, got.Transcript, 2)
	assert.True(t, got.Transcript[1].Timestamp.After(got.Transcript[0].Timestamp))

	now = now.Add(-time.Minute)
	got, err = svc.AppendTranscript(ctx, sess.ID, SpeakerCaller, "Thanks")
	require.NoError(t, err)
	assert.True(t, got.Transcript[2].Timestamp.After(got.Transcript[1].Timestamp), "clock skew must not reorder")

	_, err = svc.AppendTranscript(ctx, sess.ID, "robot", "beep")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.AppendTranscript(ctx, sess.ID, SpeakerAI, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.End(ctx, sess.ID)
	require.NoError(t, err)
	_, err = svc.AppendTranscript(ctx, sess.ID, SpeakerCaller, "hello?")
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestService_AttachHelpRequest(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "+15551234", "")
	require.NoError(t, err)

	require.NoError(t, svc.AttachHelpRequest(ctx, sess.ID, "r1"))
	require.NoError(t, svc.AttachHelpRequest(ctx, sess.ID, "r1"))
	require.NoError(t, svc.AttachHelpRequest(ctx, sess.ID, "r2"))

	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, got.HelpRequestIDs)

	assert.ErrorIs(t, svc.AttachHelpRequest(ctx, "missing", "r3"), ErrNotFound)
}

func TestService_ListDefaultLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := context.Background()

	for i := 0; i < DefaultListLimit+5; i++ {
		now = now.Add(time.Second)
		_, err := svc.Start(ctx, "+15551234", "")
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, DefaultListLimit)
	assert.Equal(t, now, all[0].StartedAt)

	few, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, few, 2)
}
