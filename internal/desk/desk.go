// Package desk is the front desk application service: it ties routing,
// escalation, knowledge administration and call sessions together behind
// the operations the HTTP layer and CLI expose.
package desk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/frontdesk/internal/callsession"
	"github.com/fyrsmithlabs/frontdesk/internal/helprequest"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/logging"
	"github.com/fyrsmithlabs/frontdesk/internal/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/frontdesk/internal/desk"

// EscalationMessage is what a caller hears when their question goes to a
// supervisor.
const EscalationMessage = "Let me check with my supervisor and get back to you shortly."

// ErrInvalidInput is returned for empty questions or caller ids.
var ErrInvalidInput = errors.New("invalid input")

// AnswerType tells the caller whether they got an answer now.
type AnswerType string

const (
	AnswerDirect    AnswerType = "direct"
	AnswerEscalated AnswerType = "escalated"
)

// AskParams is one caller question.
type AskParams struct {
	Question  string `json:"question"`
	CallerID  string `json:"callerId"`
	SessionID string `json:"sessionId,omitempty"`
}

// AskResult is returned to the caller.
type AskResult struct {
	Type           AnswerType `json:"type"`
	Answer         string     `json:"answer,omitempty"`
	Confidence     float64    `json:"confidence"`
	ShouldEscalate bool       `json:"shouldEscalate"`
	RequestID      string     `json:"requestId,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// Router is the routing step.
type Router interface {
	Route(ctx context.Context, question string) router.Result
}

// Service is the front desk.
type Service struct {
	router    Router
	registry  *helprequest.Registry
	knowledge *knowledge.Service
	sessions  *callsession.Service
	logger    *zap.Logger

	tracer      trace.Tracer
	escalations metric.Int64Counter
}

// New creates a Service. sessions may be nil when call tracking is off.
func New(r Router, registry *helprequest.Registry, kb *knowledge.Service, sessions *callsession.Service, logger *zap.Logger) (*Service, error) {
	if r == nil || registry == nil || kb == nil {
		return nil, errors.New("router, registry and knowledge service are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		router:    r,
		registry:  registry,
		knowledge: kb,
		sessions:  sessions,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
	}

	var err error
	s.escalations, err = otel.Meter(instrumentationName).Int64Counter(
		"frontdesk.desk.escalations_total",
		metric.WithDescription("Questions escalated to a supervisor"),
		metric.WithUnit("{question}"),
	)
	if err != nil {
		logger.Warn("failed to create escalation counter", zap.Error(err))
	}
	return s, nil
}

// RouteQuestion answers a caller question or escalates it.
//
// On escalation a pending help request is created and the caller gets
// EscalationMessage. If the request cannot be persisted the caller still
// gets EscalationMessage and the persistence error is returned alongside.
func (s *Service) RouteQuestion(ctx context.Context, p AskParams) (*AskResult, error) {
	p.Question = strings.TrimSpace(p.Question)
	p.CallerID = strings.TrimSpace(p.CallerID)
	if p.Question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if p.CallerID == "" {
		return nil, fmt.Errorf("%w: caller id is required", ErrInvalidInput)
	}

	ctx = logging.WithCallerID(ctx, p.CallerID)
	if p.SessionID != "" {
		ctx = logging.WithSessionID(ctx, p.SessionID)
	}
	ctx, span := s.tracer.Start(ctx, "desk.route_question")
	defer span.End()

	s.appendTranscript(ctx, p.SessionID, callsession.SpeakerCaller, p.Question)

	res := s.router.Route(ctx, p.Question)
	span.SetAttributes(
		attribute.String("router.path", string(res.Path)),
		attribute.Bool("router.escalate", res.ShouldEscalate))

	if !res.ShouldEscalate {
		s.appendTranscript(ctx, p.SessionID, callsession.SpeakerAI, res.Answer)
		return &AskResult{
			Type:       AnswerDirect,
			Answer:     res.Answer,
			Confidence: res.Confidence,
		}, nil
	}

	out := &AskResult{
		Type:           AnswerEscalated,
		Confidence:     res.Confidence,
		ShouldEscalate: true,
		Message:        EscalationMessage,
	}
	s.appendTranscript(ctx, p.SessionID, callsession.SpeakerAI, EscalationMessage)

	req, err := s.registry.Create(ctx, helprequest.CreateParams{
		Question:   p.Question,
		CallerID:   p.CallerID,
		SessionID:  p.SessionID,
		Confidence: res.Confidence,
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to record escalation", zap.String("caller_id", p.CallerID), zap.Error(err))
		return out, err
	}
	out.RequestID = req.ID
	if s.escalations != nil {
		s.escalations.Add(ctx, 1)
	}

	if p.SessionID != "" && s.sessions != nil {
		if err := s.sessions.AttachHelpRequest(ctx, p.SessionID, req.ID); err != nil {
			s.logger.Warn("failed to attach help request to session",
				zap.String("session_id", p.SessionID),
				zap.String("help_request_id", req.ID),
				zap.Error(err))
		}
	}
	return out, nil
}

// appendTranscript records a line when the question belongs to a session.
// Transcript failures never affect the answer.
func (s *Service) appendTranscript(ctx context.Context, sessionID string, speaker callsession.Speaker, msg string) {
	if sessionID == "" || s.sessions == nil {
		return
	}
	if _, err := s.sessions.AppendTranscript(ctx, sessionID, speaker, msg); err != nil {
		s.logger.Warn("failed to append transcript",
			zap.String("session_id", sessionID),
			zap.String("speaker", string(speaker)),
			zap.Error(err))
	}
}

// RespondToRequest resolves a pending request with a supervisor answer.
func (s *Service) RespondToRequest(ctx context.Context, id, response string) (*helprequest.HelpRequest, error) {
	return s.registry.Resolve(logging.WithHelpRequestID(ctx, id), id, response)
}

// MarkRequestUnresolved closes a pending request without an answer.
func (s *Service) MarkRequestUnresolved(ctx context.Context, id string) (*helprequest.HelpRequest, error) {
	return s.registry.MarkUnresolved(logging.WithHelpRequestID(ctx, id), id)
}

// ListRequests lists help requests, optionally by status.
func (s *Service) ListRequests(ctx context.Context, status helprequest.Status) ([]*helprequest.HelpRequest, error) {
	return s.registry.List(ctx, helprequest.Filter{Status: status})
}

// GetRequest returns one help request.
func (s *Service) GetRequest(ctx context.Context, id string) (*helprequest.HelpRequest, error) {
	return s.registry.Get(ctx, id)
}

// PendingCount returns the number of pending help requests.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.registry.CountPending(ctx)
}

// ListKnowledge lists active items, or searches them when query is set.
func (s *Service) ListKnowledge(ctx context.Context, query string) ([]knowledge.Item, error) {
	if strings.TrimSpace(query) != "" {
		return s.knowledge.Search(ctx, query)
	}
	return s.knowledge.List(ctx)
}

// AddKnowledge merges a question/answer pair into the knowledge base.
func (s *Service) AddKnowledge(ctx context.Context, question, answer, category string) (*knowledge.Item, error) {
	return s.knowledge.Add(ctx, question, answer, category)
}

// UpdateKnowledge patches an item.
func (s *Service) UpdateKnowledge(ctx context.Context, id string, p knowledge.Patch) (*knowledge.Item, error) {
	return s.knowledge.Update(ctx, id, p)
}

// DeleteKnowledge soft-deletes an item.
func (s *Service) DeleteKnowledge(ctx context.Context, id string) (bool, error) {
	return s.knowledge.Delete(ctx, id)
}

// Sessions returns the call session service, or nil.
func (s *Service) Sessions() *callsession.Service {
	return s.sessions
}
