//go:build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/config"
	"github.com/fyrsmithlabs/frontdesk/internal/desk"
	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	httpserver "github.com/fyrsmithlabs/frontdesk/internal/http"
	"github.com/fyrsmithlabs/frontdesk/internal/logging"
	"github.com/fyrsmithlabs/frontdesk/internal/notify"
	"github.com/fyrsmithlabs/frontdesk/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source shared by every service.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stack struct {
	reg   services.Registry
	url   string
	clock *clock
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "frontdesk.db")

	clk := &clock{now: time.Now().UTC()}
	reg, err := services.Build(context.Background(), cfg, logging.NewNop(), services.WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	srv, err := httpserver.NewServer(reg.Desk(), reg.Bus(), logging.NewNop(), &httpserver.Config{Heartbeat: time.Second})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &stack{reg: reg, url: ts.URL, clock: clk}
}

func (s *stack) post(t *testing.T, path string, body, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(s.url+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// events opens an SSE stream and returns parsed events.
func (s *stack) events(t *testing.T, ctx context.Context, path string) <-chan notify.Event {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan(), "stream should open with a comment")

	out := make(chan notify.Event, 16)
	go func() {
		defer resp.Body.Close()
		defer close(out)
		var e notify.Event
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				e.Type = notify.EventType(strings.TrimPrefix(line, "event: "))
			case strings.HasPrefix(line, "data: "):
				e.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
			case line == "" && e.Type != "":
				out <- e
				e = notify.Event{}
			}
		}
	}()
	return out
}

func next(t *testing.T, ch <-chan notify.Event) notify.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "event stream closed")
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return notify.Event{}
	}
}

func TestHelpRequestLifecycle_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const caller = "+15551234"
	supervisors := s.events(t, ctx, "/api/v1/events/supervisors")
	callerEvents := s.events(t, ctx, "/api/v1/events/callers/"+caller)

	var asked desk.AskResult
	require.Equal(t, http.StatusOK, s.post(t, "/api/v1/questions",
		map[string]string{"question": "Do you offer a free yacht?", "callerId": caller}, &asked))
	require.Equal(t, desk.AnswerEscalated, asked.Type)
	assert.Equal(t, notify.EventNewHelpRequest, next(t, supervisors).Type)

	var resolved helprequest.HelpRequest
	require.Equal(t, http.StatusOK, s.post(t, "/api/v1/help-requests/"+asked.RequestID+"/respond",
		map[string]string{"response": "No yachts, sorry."}, &resolved))
	assert.Equal(t, helprequest.StatusResolved, resolved.Status)

	assert.Equal(t, notify.EventRequestUpdated, next(t, supervisors).Type)
	reply := next(t, callerEvents)
	require.Equal(t, notify.EventSupervisorResponse, reply.Type)
	var payload notify.SupervisorResponse
	require.NoError(t, json.Unmarshal(reply.Data, &payload))
	assert.Equal(t, "No yachts, sorry.", payload.Text)

	// The supervisor's answer is now learned and served directly.
	var again desk.AskResult
	require.Equal(t, http.StatusOK, s.post(t, "/api/v1/questions",
		map[string]string{"question": "Do you offer a free yacht?", "callerId": "+15550000"}, &again))
	assert.Equal(t, desk.AnswerDirect, again.Type)
	assert.Equal(t, "No yachts, sorry.", again.Answer)
}

func TestHelpRequestTimeout_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := newStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	supervisors := s.events(t, ctx, "/api/v1/events/supervisors")

	var asked desk.AskResult
	require.Equal(t, http.StatusOK, s.post(t, "/api/v1/questions",
		map[string]string{"question": "Can I bring my parrot?", "callerId": "+15559999"}, &asked))
	require.Equal(t, desk.AnswerEscalated, asked.Type)
	next(t, supervisors)

	s.clock.Advance(10*time.Minute + time.Second)
	stats, err := s.reg.Sweeper().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Expired)

	e := next(t, supervisors)
	assert.Equal(t, notify.EventRequestUpdated, e.Type)
	var req helprequest.HelpRequest
	require.NoError(t, json.Unmarshal(e.Data, &req))
	assert.Equal(t, helprequest.StatusUnresolved, req.Status)

	status := s.post(t, "/api/v1/help-requests/"+asked.RequestID+"/respond",
		map[string]string{"response": "too late"}, nil)
	assert.Equal(t, http.StatusConflict, status)
}
