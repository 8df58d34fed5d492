package desk

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/notify"
	"github.com/fyrsmithlabs/frontdesk/internal/router"
	"github.com/fyrsmithlabs/frontdesk/internal/sweeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	desk     *Service
	kb       *knowledge.MemoryStore
	requests *helprequest.MemoryStore
	hub      *notify.Hub
	registry *helprequest.Registry
	sessions *callsession.Service
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		kb:       knowledge.NewMemoryStore(),
		requests: helprequest.NewMemoryStore(),
		hub:      notify.NewHub(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	t.Cleanup(func() { _ = h.hub.Close() })
	clock := func() time.Time { return h.now }

	_, err := knowledge.Seed(context.Background(), h.kb, h.now)
	require.NoError(t, err)

	merger := knowledge.NewMerger(h.kb, knowledge.DefaultMergerConfig(), nil, knowledge.WithClock(clock))
	h.registry, err = helprequest.NewRegistry(h.requests, merger, h.hub, nil, helprequest.WithClock(clock))
	require.NoError(t, err)
	h.sessions = callsession.NewService(callsession.NewMemoryStore(), nil, callsession.WithClock(clock))

	r, err := router.New(h.kb, nil, router.DefaultConfig(), nil)
	require.NoError(t, err)
	h.desk, err = New(r, h.registry, knowledge.NewService(h.kb, merger), h.sessions, nil)
	require.NoError(t, err)
	return h
}

func (h *harness) subscribe(t *testing.T, ch notify.Channel) <-chan notify.Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	events, stop, err := h.hub.Subscribe(ctx, ch)
	require.NoError(t, err)
	t.Cleanup(func() {
		stop()
		cancel()
	})
	return events
}

func next(t *testing.T, ch <-chan notify.Event) notify.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return notify.Event{}
	}
}

func TestScenarioA_DirectAnswer(t *testing.T) {
	h := newHarness(t)

	res, err := h.desk.RouteQuestion(context.Background(), AskParams{
		Question: "What are your hours?",
		CallerID: "+15551234",
	})
	require.NoError(t, err)
	assert.Equal(t, AnswerDirect, res.Type)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Contains(t, res.Answer, "Monday through Friday")
	assert.Empty(t, res.RequestID)

	n, err := h.desk.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScenarioB_Escalation(t *testing.T) {
	h := newHarness(t)
	supervisors := h.subscribe(t, notify.Supervisors)

	res, err := h.desk.RouteQuestion(context.Background(), AskParams{
		Question: "Do you offer a free yacht?",
		CallerID: "+15551234",
	})
	require.NoError(t, err)
	assert.Equal(t, AnswerEscalated, res.Type)
	assert.Equal(t, EscalationMessage, res.Message)
	assert.Less(t, res.Confidence, 0.5)
	require.NotEmpty(t, res.RequestID)

	req, err := h.desk.GetRequest(context.Background(), res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, helprequest.StatusPending, req.Status)
	assert.Equal(t, h.now.Add(10*time.Minute), req.Deadline)

	e := next(t, supervisors)
	assert.Equal(t, notify.EventNewHelpRequest, e.Type)
}

func TestScenarioC_SupervisorAnswerTeaches(t *testing.T) {
	h := newHarness(t)
	caller := h.subscribe(t, notify.CallerChannel("+15551234"))

	res, err := h.desk.RouteQuestion(context.Background(), AskParams{
		Question: "Do you offer a free yacht?",
		CallerID: "+15551234",
	})
	require.NoError(t, err)

	resolved, err := h.desk.RespondToRequest(context.Background(), res.RequestID, "Yes, free yacht included")
	require.NoError(t, err)
	assert.Equal(t, helprequest.StatusResolved, resolved.Status)

	e := next(t, caller)
	assert.Equal(t, notify.EventSupervisorResponse, e.Type)
	var payload notify.SupervisorResponse
	require.NoError(t, json.Unmarshal(e.Data, &payload))
	assert.Equal(t, "Yes, free yacht included", payload.Text)
	assert.Equal(t, "+15551234", payload.CallerID)

	items, err := h.desk.ListKnowledge(context.Background(), "yacht")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0.8, items[0].Confidence)

	// The next caller is answered directly.
	again, err := h.desk.RouteQuestion(context.Background(), AskParams{
		Question: "Do you offer a free yacht?",
		CallerID: "+15559999",
	})
	require.NoError(t, err)
	assert.Equal(t, AnswerDirect, again.Type)
	assert.Equal(t, "Yes, free yacht included", again.Answer)

	_, err = h.desk.RespondToRequest(context.Background(), res.RequestID, "Changed my mind")
	assert.ErrorIs(t, err, helprequest.ErrAlreadyResolved)
}

func TestScenarioD_SweepExpires(t *testing.T) {
	h := newHarness(t)
	supervisors := h.subscribe(t, notify.Supervisors)

	res, err := h.desk.RouteQuestion(context.Background(), AskParams{
		Question: "Do you offer a free yacht?",
		CallerID: "+15551234",
	})
	require.NoError(t, err)
	next(t, supervisors)

	h.now = h.now.Add(11 * time.Minute)
	sw, err := sweeper.New(h.registry, nil, sweeper.WithClock(func() time.Time { return h.now }))
	require.NoError(t, err)
	stats, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Expired)

	e := next(t, supervisors)
	assert.Equal(t, notify.EventRequestUpdated, e.Type)

	req, err := h.desk.GetRequest(context.Background(), res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, helprequest.StatusUnresolved, req.Status)

	_, err = h.desk.RespondToRequest(context.Background(), res.RequestID, "Too late")
	assert.ErrorIs(t, err, helprequest.ErrAlreadyResolved)
}

func TestRouteQuestion_Session(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess, err := h.sessions.Start(ctx, "+15551234", "Ana")
	require.NoError(t, err)

	_, err = h.desk.RouteQuestion(ctx, AskParams{Question: "What are your hours?", CallerID: "+15551234", SessionID: sess.ID})
	require.NoError(t, err)
	res, err := h.desk.RouteQuestion(ctx, AskParams{Question: "Do you offer a free yacht?", CallerID: "+15551234", SessionID: sess.ID})
	require.NoError(t, err)

	got, err := h.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Transcript, 4)
	assert.Equal(t, callsession.SpeakerCaller, got.Transcript[0].Speaker)
	assert.Equal(t, callsession.SpeakerAI, got.Transcript[1].Speaker)
	assert.Equal(t, EscalationMessage, got.Transcript[3].Message)
	assert.Equal(t, []string{res.RequestID}, got.HelpRequestIDs)

	req, err := h.desk.GetRequest(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, req.SessionID)
}

func TestRouteQuestion_UnknownSessionStillAnswers(t *testing.T) {
	h := newHarness(t)
	res, err := h.desk.RouteQuestion(context.Background(), AskParams{
		Question:  "What are your hours?",
		CallerID:  "+15551234",
		SessionID: "no-such-session",
	})
	require.NoError(t, err)
	assert.Equal(t, AnswerDirect, res.Type)
}

func TestRouteQuestion_Validation(t *testing.T) {
	h := newHarness(t)
	_, err := h.desk.RouteQuestion(context.Background(), AskParams{Question: " ", CallerID: "c"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.desk.RouteQuestion(context.Background(), AskParams{Question: "q"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type brokenStore struct{ *helprequest.MemoryStore }

func (brokenStore) Create(context.Context, *helprequest.HelpRequest) error {
	return errors.New("disk full")
}

func TestRouteQuestion_PersistenceFailureKeepsPoliteMessage(t *testing.T) {
	kb := knowledge.NewMemoryStore()
	merger := knowledge.NewMerger(kb, knowledge.DefaultMergerConfig(), nil)
	reg, err := helprequest.NewRegistry(brokenStore{helprequest.NewMemoryStore()}, merger, nil, nil)
	require.NoError(t, err)
	r, err := router.New(kb, nil, router.DefaultConfig(), nil)
	require.NoError(t, err)
	d, err := New(r, reg, knowledge.NewService(kb, merger), nil, nil)
	require.NoError(t, err)

	res, err := d.RouteQuestion(context.Background(), AskParams{Question: "Do you offer a free yacht?", CallerID: "c"})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, EscalationMessage, res.Message)
	assert.Empty(t, res.RequestID)
}

func TestKnowledgeAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item, err := h.desk.AddKnowledge(ctx, "Do you sell gift cards?", "Yes, in store.", "Retail")
	require.NoError(t, err)

	conf := 3.0
	updated, err := h.desk.UpdateKnowledge(ctx, item.ID, knowledge.Patch{Confidence: &conf})
	require.NoError(t, err)
	assert.Equal(t, 1.0, updated.Confidence)

	deleted, err := h.desk.DeleteKnowledge(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	all, err := h.desk.ListKnowledge(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2, "only seeded items remain active")
}
