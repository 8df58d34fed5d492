package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/config"
	"github.com/fyrsmithlabs/frontdesk/internal/desk"
	"github.com/fyrsmithlabs/frontdesk/internal/llm"
	"github.com/fyrsmithlabs/frontdesk/internal/logging"
	"github.com/fyrsmithlabs/frontdesk/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Memory(t *testing.T) {
	ctx := context.Background()
	hub := notify.NewHub()
	t.Cleanup(func() { _ = hub.Close() })

	reg, err := Build(ctx, config.Default(), logging.NewNop(), WithBus(hub))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, reg.Close()) })

	assert.NotNil(t, reg.Desk())
	assert.NotNil(t, reg.HelpRequests())
	assert.NotNil(t, reg.Sessions())
	assert.NotNil(t, reg.Sweeper())
	assert.Same(t, hub, reg.Bus())

	items, err := reg.Knowledge().List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, items, "knowledge base should be seeded")

	res, err := reg.Desk().RouteQuestion(ctx, desk.AskParams{Question: "What are your hours?", CallerID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, desk.AnswerDirect, res.Type)
}

func TestBuild_UsesSuppliedModel(t *testing.T) {
	ctx := context.Background()
	model := llm.ClientFunc(func(context.Context, string, string) (string, error) {
		return `{"answer":"We are closed on holidays.","confidence":0.95}`, nil
	})

	reg, err := Build(ctx, config.Default(), nil, WithBus(notify.NewHub()), WithModel(model))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	res, err := reg.Desk().RouteQuestion(ctx, desk.AskParams{Question: "Are you open on holidays?", CallerID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, desk.AnswerDirect, res.Type)
	assert.Equal(t, "We are closed on holidays.", res.Answer)
}

func TestBuild_SQLiteAndEmbeddedNATS(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "frontdesk.db")

	reg, err := Build(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, reg.Close()) })

	subCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	events, stop, err := reg.Bus().Subscribe(subCtx, notify.Supervisors)
	require.NoError(t, err)
	defer stop()

	res, err := reg.Desk().RouteQuestion(ctx, desk.AskParams{Question: "Do you offer a free yacht?", CallerID: "c1"})
	require.NoError(t, err)
	require.Equal(t, desk.AnswerEscalated, res.Type)

	select {
	case e := <-events:
		assert.Equal(t, notify.EventNewHelpRequest, e.Type)
	case <-subCtx.Done():
		t.Fatal("no event delivered over nats")
	}

	n, err := reg.Desk().PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(context.Background(), nil, nil)
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Storage.Driver = "mongo"
	_, err = Build(context.Background(), cfg, nil, WithBus(notify.NewHub()))
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestRegistry_CloseOrder(t *testing.T) {
	var order []string
	closer := func(name string, err error) closerFunc {
		return func() error {
			order = append(order, name)
			return err
		}
	}

	reg := NewRegistry(Options{Closers: []io.Closer{
		closer("storage", nil),
		closer("nats", errors.New("drain failed")),
		closer("bus", nil),
	}})

	err := reg.Close()
	assert.ErrorContains(t, err, "drain failed")
	assert.Equal(t, []string{"bus", "nats", "storage"}, order)

	require.NoError(t, reg.Close())
}
