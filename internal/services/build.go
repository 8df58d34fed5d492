package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/fyrsmithlabs/frontdesk/internal/config"
	"github.com/fyrsmithlabs/frontdesk/internal/desk"
	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/llm"
	"github.com/fyrsmithlabs/frontdesk/internal/logging"
	"github.com/fyrsmithlabs/frontdesk/internal/notify"
	"github.com/fyrsmithlabs/frontdesk/internal/router"
	"github.com/fyrsmithlabs/frontdesk/internal/storage/sqlite"
	"github.com/fyrsmithlabs/frontdesk/internal/sweeper"
	"go.uber.org/zap"
)

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	bus   notify.Bus
	model llm.Client
	now   func() time.Time
}

// WithBus uses bus instead of the NATS transport from config. The registry
// does not close a supplied bus.
func WithBus(bus notify.Bus) BuildOption {
	return func(o *buildOptions) { o.bus = bus }
}

// WithModel uses model instead of the LLM client from config.
func WithModel(model llm.Client) BuildOption {
	return func(o *buildOptions) { o.model = model }
}

// WithClock overrides time.Now for every time-dependent service.
func WithClock(now func() time.Time) BuildOption {
	return func(o *buildOptions) { o.now = now }
}

type stores struct {
	helpRequests helprequest.Store
	knowledge    knowledge.Store
	sessions     callsession.Store
}

// Build wires every service described by cfg. On error, resources opened
// so far are released.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts ...BuildOption) (reg Registry, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := buildOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	zl := logger.Underlying()

	var closers []io.Closer
	defer func() {
		if err != nil {
			_ = NewRegistry(Options{Closers: closers}).Close()
		}
	}()

	st, closer, err := openStores(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	logger.Info(ctx, "storage ready", zap.String("driver", cfg.Storage.Driver))

	if cfg.Knowledge.Seed {
		n, err := knowledge.Seed(ctx, st.knowledge, o.now())
		if err != nil {
			return nil, fmt.Errorf("seed knowledge: %w", err)
		}
		if n > 0 {
			logger.Info(ctx, "seeded knowledge base", zap.Int("items", n))
		}
	}

	bus := o.bus
	if bus == nil {
		var busClosers []io.Closer
		bus, busClosers, err = openBus(ctx, cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		closers = append(closers, busClosers...)
	}

	model := o.model
	if model == nil {
		model, err = llm.New(cfg.LLM, zl)
		if err != nil {
			return nil, fmt.Errorf("create llm client: %w", err)
		}
	}
	if model == nil {
		logger.Warn(ctx, "no language model configured, unmatched questions escalate")
	}

	merger := knowledge.NewMerger(st.knowledge, knowledge.MergerConfig{
		DefaultConfidence: cfg.Knowledge.DefaultConfidence,
		ReinforcementStep: cfg.Knowledge.ReinforcementStep,
	}, zl, knowledge.WithClock(o.now))

	requests, err := helprequest.NewRegistry(st.helpRequests, merger, bus, zl,
		helprequest.WithClock(o.now),
		helprequest.WithTimeoutWindow(cfg.Escalation.TimeoutWindow))
	if err != nil {
		return nil, fmt.Errorf("create help request registry: %w", err)
	}

	kb := knowledge.NewService(st.knowledge, merger)
	sessions := callsession.NewService(st.sessions, zl, callsession.WithClock(o.now))
	r, err := router.New(st.knowledge, model, router.ConfigFrom(cfg), zl)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	d, err := desk.New(r, requests, kb, sessions, zl)
	if err != nil {
		return nil, fmt.Errorf("create desk: %w", err)
	}

	sw, err := sweeper.New(requests, zl,
		sweeper.WithInterval(cfg.Escalation.SweepInterval),
		sweeper.WithClock(o.now))
	if err != nil {
		return nil, fmt.Errorf("create sweeper: %w", err)
	}

	return NewRegistry(Options{
		Desk:         d,
		HelpRequests: requests,
		Knowledge:    kb,
		Sessions:     sessions,
		Bus:          bus,
		Sweeper:      sw,
		Closers:      closers,
	}), nil
}

func openStores(cfg config.StorageConfig) (stores, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return stores{}, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return stores{
			helpRequests: db.HelpRequests(),
			knowledge:    db.Knowledge(),
			sessions:     db.Sessions(),
		}, db, nil
	case config.DriverMemory, "":
		return stores{
			helpRequests: helprequest.NewMemoryStore(),
			knowledge:    knowledge.NewMemoryStore(),
			sessions:     callsession.NewMemoryStore(),
		}, nil, nil
	}
	return stores{}, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// openBus starts the embedded NATS server when configured and connects to
// it. The returned closers drain the connection before stopping the server.
func openBus(ctx context.Context, cfg config.NATSConfig, logger *logging.Logger) (notify.Bus, []io.Closer, error) {
	var closers []io.Closer
	url := cfg.URL
	if cfg.Embedded {
		ns, err := notify.StartEmbedded("127.0.0.1", cfg.EmbeddedPort)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closerFunc(func() error {
			ns.Shutdown()
			ns.WaitForShutdown()
			return nil
		}))
		url = ns.ClientURL()
		logger.Info(ctx, "embedded nats started", zap.String("url", url))
	}

	bus, err := notify.DialNATS(url, cfg.SubjectPrefix, logger.Underlying())
	if err != nil {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, nil, err
	}
	logger.Info(ctx, "connected to nats", zap.String("url", url))
	return bus, append(closers, bus), nil
}
