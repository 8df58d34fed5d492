package helprequest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/notify"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/frontdesk/internal/helprequest"

// DefaultTimeoutWindow is how long a request stays pending before the
// sweeper may expire it.
const DefaultTimeoutWindow = 10 * time.Minute

// FeedbackMerger folds a supervisor's answer into the knowledge base.
type FeedbackMerger interface {
	Merge(ctx context.Context, question, answer, category string) (*knowledge.Item, error)
}

// CreateParams describes a new escalation.
type CreateParams struct {
	Question   string
	CallerID   string
	SessionID  string
	Confidence float64
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithTimeoutWindow sets the deadline offset for new requests.
func WithTimeoutWindow(d time.Duration) Option {
	return func(r *Registry) { r.window = d }
}

// Registry drives help requests through their lifecycle and emits
// notifications after each committed transition.
type Registry struct {
	store     Store
	merger    FeedbackMerger
	publisher notify.Publisher
	logger    *zap.Logger
	now       func() time.Time
	window    time.Duration

	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// NewRegistry creates a Registry. A nil publisher drops notifications.
func NewRegistry(store Store, merger FeedbackMerger, publisher notify.Publisher, logger *zap.Logger, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("help request store is required")
	}
	if merger == nil {
		return nil, errors.New("feedback merger is required")
	}
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		store:     store,
		merger:    merger,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		window:    DefaultTimeoutWindow,
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.window <= 0 {
		return nil, fmt.Errorf("timeout window must be positive, got %s", r.window)
	}

	var err error
	r.transitions, err = otel.Meter(instrumentationName).Int64Counter(
		"frontdesk.help_requests.transitions_total",
		metric.WithDescription("Help request lifecycle transitions by target status"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		logger.Warn("failed to create transition counter", zap.Error(err))
	}
	return r, nil
}

// Create records a new pending request with deadline now+window and tells
// supervisors about it.
func (r *Registry) Create(ctx context.Context, p CreateParams) (*HelpRequest, error) {
	ctx, span := r.tracer.Start(ctx, "helprequest.create")
	defer span.End()

	question := strings.TrimSpace(p.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	callerID := strings.TrimSpace(p.CallerID)
	if callerID == "" {
		return nil, fmt.Errorf("%w: caller id is required", ErrInvalidInput)
	}

	now := r.now().UTC()
	req := &HelpRequest{
		ID:         uuid.NewString(),
		Question:   question,
		CallerID:   callerID,
		SessionID:  p.SessionID,
		Status:     StatusPending,
		Confidence: clamp(p.Confidence),
		CreatedAt:  now,
		Deadline:   now.Add(r.window),
	}
	if err := r.store.Create(ctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create help request: %w", err)
	}

	span.SetAttributes(attribute.String("help_request.id", req.ID))
	r.record(ctx, StatusPending)
	r.logger.Info("help request created",
		zap.String("help_request_id", req.ID),
		zap.String("caller_id", req.CallerID),
		zap.Time("deadline", req.Deadline))

	r.publish(ctx, notify.Supervisors, notify.EventNewHelpRequest, req)
	return req, nil
}

// Resolve records a supervisor's answer. Only pending requests can be
// resolved; anything else fails with ErrAlreadyResolved.
//
// After the transition commits, the answer is merged into the knowledge
// base, supervisors get request-updated and the caller gets
// supervisor-response. A merge failure is logged but does not undo the
// resolution.
func (r *Registry) Resolve(ctx context.Context, id, response string) (*HelpRequest, error) {
	ctx, span := r.tracer.Start(ctx, "helprequest.resolve", trace.WithAttributes(attribute.String("help_request.id", id)))
	defer span.End()

	response = strings.TrimSpace(response)
	if response == "" {
		return nil, fmt.Errorf("%w: response is required", ErrInvalidInput)
	}

	req, err := r.store.Update(ctx, id, func(hr *HelpRequest) error {
		if hr.Status != StatusPending {
			return ErrAlreadyResolved
		}
		resolvedAt := r.now().UTC()
		hr.Status = StatusResolved
		hr.SupervisorResponse = response
		hr.ResolvedAt = &resolvedAt
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, r.transitionError("resolve", id, err)
	}
	r.record(ctx, StatusResolved)
	r.logger.Info("help request resolved", zap.String("help_request_id", id))

	if _, err := r.merger.Merge(ctx, req.Question, response, ""); err != nil {
		r.logger.Error("failed to merge supervisor answer into knowledge",
			zap.String("help_request_id", id), zap.Error(err))
	}

	r.publish(ctx, notify.Supervisors, notify.EventRequestUpdated, req)
	r.publish(ctx, notify.CallerChannel(req.CallerID), notify.EventSupervisorResponse, notify.SupervisorResponse{
		CallerID:  req.CallerID,
		Text:      response,
		RequestID: req.ID,
	})
	return req, nil
}

// MarkUnresolved closes a pending request without an answer.
func (r *Registry) MarkUnresolved(ctx context.Context, id string) (*HelpRequest, error) {
	ctx, span := r.tracer.Start(ctx, "helprequest.mark_unresolved", trace.WithAttributes(attribute.String("help_request.id", id)))
	defer span.End()

	req, err := r.store.Update(ctx, id, func(hr *HelpRequest) error {
		if hr.Status != StatusPending {
			return ErrAlreadyResolved
		}
		hr.Status = StatusUnresolved
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyResolved) {
			span.RecordError(err)
		}
		return nil, r.transitionError("mark unresolved", id, err)
	}
	r.record(ctx, StatusUnresolved)
	r.logger.Info("help request marked unresolved", zap.String("help_request_id", id))

	r.publish(ctx, notify.Supervisors, notify.EventRequestUpdated, req)
	return req, nil
}

// Get returns one request.
func (r *Registry) Get(ctx context.Context, id string) (*HelpRequest, error) {
	req, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, r.transitionError("get", id, err)
	}
	return req, nil
}

// List returns requests matching f, newest first.
func (r *Registry) List(ctx context.Context, f Filter) ([]*HelpRequest, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	reqs, err := r.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list help requests: %w", err)
	}
	return reqs, nil
}

// ListExpired returns pending requests whose deadline is before now.
func (r *Registry) ListExpired(ctx context.Context, now time.Time) ([]*HelpRequest, error) {
	reqs, err := r.store.ListExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list expired help requests: %w", err)
	}
	return reqs, nil
}

// CountPending returns the number of pending requests.
func (r *Registry) CountPending(ctx context.Context) (int, error) {
	return r.store.CountPending(ctx)
}

func (r *Registry) transitionError(op, id string, err error) error {
	return fmt.Errorf("%s help request %s: %w", op, id, err)
}

func (r *Registry) publish(ctx context.Context, ch notify.Channel, typ notify.EventType, payload any) {
	if err := r.publisher.Publish(ctx, ch, typ, payload); err != nil {
		r.logger.Warn("notification dropped",
			zap.String("channel", string(ch)),
			zap.String("event", string(typ)),
			zap.Error(err))
	}
}

func (r *Registry) record(ctx context.Context, to Status) {
	if r.transitions != nil {
		r.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
	}
}

func clamp(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
