// Package sweeper expires pending help requests whose deadline has passed.
//
// A Sweeper runs on a fixed interval under a robfig/cron scheduler. Each
// sweep marks every overdue pending request unresolved through the same
// registry transition supervisors use, so a sweep racing a supervisor
// response yields exactly one terminal state.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/frontdesk/internal/sweeper"

// DefaultInterval is the time between sweeps.
const DefaultInterval = 60 * time.Second

// Registry is the part of helprequest.Registry the sweeper drives.
type Registry interface {
	ListExpired(ctx context.Context, now time.Time) ([]*helprequest.HelpRequest, error)
	MarkUnresolved(ctx context.Context, id string) (*helprequest.HelpRequest, error)
}

// Stats summarizes one sweep.
type Stats struct {
	Expired int
	Raced   int
	Failed  int
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithInterval sets the time between sweeps.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

// WithClock overrides time.Now when selecting expired requests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// Sweeper periodically expires overdue help requests.
type Sweeper struct {
	registry Registry
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool

	tracer   trace.Tracer
	sweeps   metric.Int64Counter
	expired  metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a Sweeper. It does not start until Start is called.
func New(registry Registry, logger *zap.Logger, opts ...Option) (*Sweeper, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		registry: registry,
		logger:   logger,
		interval: DefaultInterval,
		now:      time.Now,
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval < time.Second {
		return nil, fmt.Errorf("sweep interval must be at least 1s, got %s", s.interval)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if s.sweeps, err = meter.Int64Counter("frontdesk.sweeper.runs_total",
		metric.WithDescription("Sweeps by outcome"),
		metric.WithUnit("{sweep}")); err != nil {
		logger.Warn("failed to create sweep counter", zap.Error(err))
	}
	if s.expired, err = meter.Int64Counter("frontdesk.sweeper.expired_total",
		metric.WithDescription("Help requests marked unresolved by the sweeper"),
		metric.WithUnit("{request}")); err != nil {
		logger.Warn("failed to create expired counter", zap.Error(err))
	}
	if s.duration, err = meter.Float64Histogram("frontdesk.sweeper.duration",
		metric.WithDescription("Sweep duration"),
		metric.WithUnit("s")); err != nil {
		logger.Warn("failed to create sweep duration histogram", zap.Error(err))
	}
	return s, nil
}

// Start schedules sweeps every interval. ctx bounds every sweep; Stop also
// cancels in-flight work.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("sweeper is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	cl := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		_, _ = s.Sweep(ctx)
	}))
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish. Stopping
// a stopped sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// Sweep marks every overdue pending request unresolved. A request that was
// resolved concurrently is counted as raced and otherwise ignored; other
// per-request failures are logged and the sweep continues. The error is
// non-nil only when the overdue requests could not be listed at all.
func (s *Sweeper) Sweep(ctx context.Context) (Stats, error) {
	ctx, span := s.tracer.Start(ctx, "sweeper.sweep")
	defer span.End()
	start := time.Now()

	var stats Stats
	due, err := s.registry.ListExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("sweep failed, retrying next interval", zap.Error(err))
		span.RecordError(err)
		s.recordRun(ctx, "error", start)
		return stats, fmt.Errorf("list expired: %w", err)
	}

	for _, req := range due {
		if ctx.Err() != nil {
			break
		}
		_, err := s.registry.MarkUnresolved(ctx, req.ID)
		switch {
		case err == nil:
			stats.Expired++
			s.logger.Info("help request expired",
				zap.String("help_request_id", req.ID),
				zap.Time("deadline", req.Deadline))
		case errors.Is(err, helprequest.ErrAlreadyResolved), errors.Is(err, helprequest.ErrNotFound):
			stats.Raced++
		default:
			stats.Failed++
			s.logger.Warn("failed to expire help request",
				zap.String("help_request_id", req.ID),
				zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Int("sweeper.expired", stats.Expired),
		attribute.Int("sweeper.raced", stats.Raced),
		attribute.Int("sweeper.failed", stats.Failed))
	if s.expired != nil && stats.Expired > 0 {
		s.expired.Add(ctx, int64(stats.Expired))
	}
	s.recordRun(ctx, "ok", start)
	if len(due) > 0 {
		s.logger.Debug("sweep complete",
			zap.Int("due", len(due)),
			zap.Int("expired", stats.Expired),
			zap.Int("raced", stats.Raced),
			zap.Int("failed", stats.Failed))
	}
	return stats, nil
}

func (s *Sweeper) recordRun(ctx context.Context, outcome string, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if s.sweeps != nil {
		s.sweeps.Add(ctx, 1, attrs)
	}
	if s.duration != nil {
		s.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
