// Package router decides, per question, whether the knowledge base can
// answer directly or a supervisor has to step in.
//
// Route tries three paths in order and never fails:
//
//  1. Direct match: the top knowledge hit shares most of the question's
//     significant words.
//  2. Generative: a configured model answers using up to three knowledge
//     snippets and reports its own confidence.
//  3. Degraded: any knowledge hit is returned at reduced confidence,
//     otherwise the caller is told a supervisor will help.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/config"
	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/frontdesk/internal/router"

// FallbackAnswer is returned when nothing else can answer.
const FallbackAnswer = "I'm having trouble processing your question right now. Let me get a supervisor to help you."

// ErrDegraded marks a failure that moved routing onto the degraded path.
// It is only ever logged; Route does not return errors.
var ErrDegraded = errors.New("router degraded")

// Path names the step that produced a Result.
type Path string

const (
	PathDirect     Path = "direct"
	PathGenerative Path = "generative"
	PathDegraded   Path = "degraded"
	PathFallback   Path = "fallback"
)

// Result is the routing decision for one question.
type Result struct {
	Answer         string  `json:"answer"`
	Confidence     float64 `json:"confidence"`
	ShouldEscalate bool    `json:"shouldEscalate"`
	Path           Path    `json:"-"`
}

// Searcher is the slice of knowledge.Store the router reads.
type Searcher interface {
	Search(ctx context.Context, q knowledge.Query) ([]knowledge.Item, error)
}

// Config tunes routing thresholds.
type Config struct {
	DirectMatchRatio   float64
	DirectConfidence   float64
	DegradedConfidence float64
	Threshold          float64
	SearchLimit        int
	GenerativeTimeout  time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		DirectMatchRatio:   0.5,
		DirectConfidence:   0.9,
		DegradedConfidence: 0.7,
		Threshold:          0.5,
		SearchLimit:        3,
		GenerativeTimeout:  15 * time.Second,
	}
}

// ConfigFrom extracts router settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		DirectMatchRatio:   cfg.Router.DirectMatchRatio,
		DirectConfidence:   cfg.Router.DirectConfidence,
		DegradedConfidence: cfg.Router.DegradedConfidence,
		Threshold:          cfg.Escalation.Threshold,
		SearchLimit:        cfg.Router.SearchLimit,
		GenerativeTimeout:  cfg.Router.GenerativeTimeout,
	}
}

// Router routes questions. A nil model client disables the generative path.
type Router struct {
	searcher Searcher
	model    llm.Client
	cfg      Config
	logger   *zap.Logger

	tracer    trace.Tracer
	decisions metric.Int64Counter
}

// ErrNoSearcher is returned by New when no knowledge searcher is supplied.
var ErrNoSearcher = errors.New("router: knowledge searcher is required")

// New creates a Router.
func New(searcher Searcher, model llm.Client, cfg Config, logger *zap.Logger) (*Router, error) {
	if searcher == nil {
		return nil, ErrNoSearcher
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SearchLimit < 1 {
		cfg.SearchLimit = 3
	}
	if cfg.GenerativeTimeout <= 0 {
		cfg.GenerativeTimeout = DefaultConfig().GenerativeTimeout
	}
	r := &Router{
		searcher: searcher,
		model:    model,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
	}

	var err error
	r.decisions, err = otel.Meter(instrumentationName).Int64Counter(
		"frontdesk.router.decisions_total",
		metric.WithDescription("Routing decisions by path and escalation"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		logger.Warn("failed to create decision counter", zap.Error(err))
	}
	return r, nil
}

// Route answers question. It never returns an error and never panics.
func (r *Router) Route(ctx context.Context, question string) (res Result) {
	ctx, span := r.tracer.Start(ctx, "router.route")
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("router panic recovered", zap.Any("panic", p), zap.Stack("stack"))
			res = r.degraded(ctx, question, fmt.Errorf("%w: panic: %v", ErrDegraded, p))
		}
		span.SetAttributes(
			attribute.String("router.path", string(res.Path)),
			attribute.Float64("router.confidence", res.Confidence),
			attribute.Bool("router.escalate", res.ShouldEscalate))
		r.record(ctx, res)
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return fallback()
	}

	hits, searchErr := r.search(ctx, question)
	if searchErr == nil {
		if res, ok := r.directMatch(question, hits); ok {
			return res
		}
	}

	if r.model == nil {
		if searchErr != nil {
			return r.degraded(ctx, question, searchErr)
		}
		return r.fromHits(hits)
	}

	res, err := r.generate(ctx, question, hits)
	if err != nil {
		r.logger.Warn("generative answer failed, using degraded path", zap.Error(err))
		return r.degraded(ctx, question, err)
	}
	return res
}

// search converts a panicking store into an error so the degraded path can
// call it again from Route's recover handler.
func (r *Router) search(ctx context.Context, question string) (hits []knowledge.Item, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("knowledge search panicked", zap.Any("panic", p))
			hits, err = nil, fmt.Errorf("%w: search panic: %v", ErrDegraded, p)
		}
	}()
	hits, err = r.searcher.Search(ctx, knowledge.Query{
		Text:       question,
		Limit:      r.cfg.SearchLimit,
		ActiveOnly: true,
	})
	if err != nil {
		r.logger.Warn("knowledge search failed", zap.Error(err))
		return nil, fmt.Errorf("%w: search: %w", ErrDegraded, err)
	}
	return hits, nil
}

// directMatch returns the top hit's answer when more than DirectMatchRatio
// of the question's words longer than three characters occur in the hit's
// question text.
func (r *Router) directMatch(question string, hits []knowledge.Item) (Result, bool) {
	if len(hits) == 0 {
		return Result{}, false
	}
	top := hits[0]
	if wordOverlap(question, top.Question) > r.cfg.DirectMatchRatio {
		return Result{
			Answer:     top.Answer,
			Confidence: r.cfg.DirectConfidence,
			Path:       PathDirect,
		}, true
	}
	return Result{}, false
}

// wordOverlap is the fraction of significant words of question contained in
// candidate. A question with no significant words overlaps nothing.
func wordOverlap(question, candidate string) float64 {
	var significant []string
	for _, w := range knowledge.Words(question) {
		if len([]rune(w)) > 3 {
			significant = append(significant, w)
		}
	}
	if len(significant) == 0 {
		return 0
	}

	candidate = strings.ToLower(candidate)
	matched := 0
	for _, w := range significant {
		if strings.Contains(candidate, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(significant))
}

func (r *Router) generate(ctx context.Context, question string, hits []knowledge.Item) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.GenerativeTimeout)
	defer cancel()

	raw, err := r.model.Complete(ctx, SystemPrompt(hits, r.cfg.SearchLimit), question)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDegraded, err)
	}
	ans, ok := ParseAnswer(raw)
	if !ok {
		return Result{}, fmt.Errorf("%w: empty model output", ErrDegraded)
	}
	conf := clamp(ans.Confidence)
	return Result{
		Answer:         ans.Answer,
		Confidence:     conf,
		ShouldEscalate: conf < r.cfg.Threshold,
		Path:           PathGenerative,
	}, nil
}

// degraded re-runs the search so a failure in an earlier search is retried.
func (r *Router) degraded(ctx context.Context, question string, cause error) Result {
	r.logger.Debug("routing degraded", zap.Error(cause))
	hits, err := r.search(ctx, question)
	if err != nil {
		return fallback()
	}
	return r.fromHits(hits)
}

func (r *Router) fromHits(hits []knowledge.Item) Result {
	if len(hits) == 0 {
		return fallback()
	}
	return Result{
		Answer:     hits[0].Answer,
		Confidence: r.cfg.DegradedConfidence,
		Path:       PathDegraded,
	}
}

func fallback() Result {
	return Result{
		Answer:         FallbackAnswer,
		Confidence:     0,
		ShouldEscalate: true,
		Path:           PathFallback,
	}
}

func (r *Router) record(ctx context.Context, res Result) {
	if r.decisions != nil {
		r.decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("path", string(res.Path)),
			attribute.Bool("escalate", res.ShouldEscalate)))
	}
}
