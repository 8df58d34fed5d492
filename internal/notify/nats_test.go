package notify

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNATSBus(t *testing.T) *NATSBus {
	t.Helper()

	ns, err := StartEmbedded("127.0.0.1", -1)
	require.NoError(t, err)
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	return NewNATSBus(nc, "fdtest", nil)
}

func TestNATSBus_RoundTrip(t *testing.T) {
	bus := newTestNATSBus(t)
	ctx := context.Background()

	sup, cancelSup, err := bus.Subscribe(ctx, Supervisors)
	require.NoError(t, err)
	defer cancelSup()

	caller, cancelCaller, err := bus.Subscribe(ctx, CallerChannel("+1555.0001"))
	require.NoError(t, err)
	defer cancelCaller()

	other, cancelOther, err := bus.Subscribe(ctx, CallerChannel("+1555"))
	require.NoError(t, err)
	defer cancelOther()

	require.NoError(t, bus.Publish(ctx, Supervisors, EventRequestUpdated, map[string]string{"status": "resolved"}))
	require.NoError(t, bus.Publish(ctx, CallerChannel("+1555.0001"), EventSupervisorResponse,
		SupervisorResponse{CallerID: "+1555.0001", Text: "Yes", RequestID: "r1"}))

	ev := receive(t, sup)
	assert.Equal(t, EventRequestUpdated, ev.Type)
	assert.JSONEq(t, `{"status":"resolved"}`, string(ev.Data))

	ev = receive(t, caller)
	assert.Equal(t, EventSupervisorResponse, ev.Type)
	assert.JSONEq(t, `{"callerId":"+1555.0001","text":"Yes","requestId":"r1"}`, string(ev.Data))

	assertNoEvent(t, other)
}

func TestNATSBus_Subjects(t *testing.T) {
	b := NewNATSBus(nil, "fd", nil)
	assert.Equal(t, "fd.supervisors.new-help-request", b.subject(Supervisors, string(EventNewHelpRequest)))
	assert.Equal(t, "fd.callers.KzE1NTU.supervisor-response", b.subject(CallerChannel("+1555"), string(EventSupervisorResponse)))
}

func TestNATSBus_CancelClosesEvents(t *testing.T) {
	bus := newTestNATSBus(t)

	events, cancel, err := bus.Subscribe(context.Background(), Supervisors)
	require.NoError(t, err)
	cancel()

	for range events {
	}

	require.NoError(t, bus.Close())
	_, _, err = bus.Subscribe(context.Background(), Supervisors)
	assert.ErrorIs(t, err, ErrClosed)
}
