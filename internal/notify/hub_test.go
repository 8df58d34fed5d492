package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func receive(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func assertNoEvent(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FanOutByChannel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	hub := NewHub()
	defer hub.Close()
	ctx := context.Background()

	sup1, cancel1, err := hub.Subscribe(ctx, Supervisors)
	require.NoError(t, err)
	defer cancel1()
	sup2, cancel2, err := hub.Subscribe(ctx, Supervisors)
	require.NoError(t, err)
	defer cancel2()
	alice, cancel3, err := hub.Subscribe(ctx, CallerChannel("+15550001"))
	require.NoError(t, err)
	defer cancel3()
	bob, cancel4, err := hub.Subscribe(ctx, CallerChannel("+15550002"))
	require.NoError(t, err)
	defer cancel4()

	require.NoError(t, hub.Publish(ctx, Supervisors, EventNewHelpRequest, map[string]string{"id": "r1"}))
	require.NoError(t, hub.Publish(ctx, CallerChannel("+15550001"), EventSupervisorResponse,
		SupervisorResponse{CallerID: "+15550001", Text: "Yes", RequestID: "r1"}))

	for _, ch := range []<-chan Event{sup1, sup2} {
		ev := receive(t, ch)
		assert.Equal(t, EventNewHelpRequest, ev.Type)
		assert.JSONEq(t, `{"id":"r1"}`, string(ev.Data))
	}

	ev := receive(t, alice)
	assert.Equal(t, EventSupervisorResponse, ev.Type)
	var payload SupervisorResponse
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, "Yes", payload.Text)

	assertNoEvent(t, bob)
	assertNoEvent(t, sup1)
}

func TestHub_NoReplay(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	hub := NewHub()
	defer hub.Close()
	ctx := context.Background()

	require.NoError(t, hub.Publish(ctx, Supervisors, EventRequestUpdated, "early"))

	events, cancel, err := hub.Subscribe(ctx, Supervisors)
	require.NoError(t, err)
	defer cancel()
	assertNoEvent(t, events)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	hub := NewHub()
	defer hub.Close()
	ctx := context.Background()

	events, cancel, err := hub.Subscribe(ctx, Supervisors)
	require.NoError(t, err)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			_ = hub.Publish(ctx, Supervisors, EventRequestUpdated, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestHub_CancelAndContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	hub := NewHub()
	defer hub.Close()

	events, cancel, err := hub.Subscribe(context.Background(), Supervisors)
	require.NoError(t, err)
	cancel()
	cancel()
	_, ok := <-events
	assert.False(t, ok)

	ctx, stop := context.WithCancel(context.Background())
	events, _, err = hub.Subscribe(ctx, Supervisors)
	require.NoError(t, err)
	stop()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed on context cancel")
	}
}

func TestHub_Close(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	hub := NewHub()
	events, _, err := hub.Subscribe(context.Background(), Supervisors)
	require.NoError(t, err)

	require.NoError(t, hub.Close())
	_, ok := <-events
	assert.False(t, ok)

	assert.ErrorIs(t, hub.Publish(context.Background(), Supervisors, EventRequestUpdated, nil), ErrClosed)
	_, _, err = hub.Subscribe(context.Background(), Supervisors)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCallerChannel(t *testing.T) {
	id, ok := CallerChannel("+1555.*>").CallerID()
	assert.True(t, ok)
	assert.Equal(t, "+1555.*>", id)

	_, ok = Supervisors.CallerID()
	assert.False(t, ok)
}
