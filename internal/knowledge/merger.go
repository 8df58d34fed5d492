package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/frontdesk/internal/knowledge"

// MergerConfig tunes how supervisor answers are folded into the store.
type MergerConfig struct {
	// DefaultConfidence is assigned to newly created items.
	DefaultConfidence float64
	// ReinforcementStep is added to a matched item's confidence, capped at 1.
	ReinforcementStep float64
}

// DefaultMergerConfig returns the standard merge tuning.
func DefaultMergerConfig() MergerConfig {
	return MergerConfig{DefaultConfidence: 0.8, ReinforcementStep: 0.1}
}

// Option customizes a Merger.
type Option func(*Merger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) { m.now = now }
}

// Merger reinforces or creates knowledge items from supervisor answers.
// Merges are serialized so two answers to the same new question cannot
// create duplicates.
type Merger struct {
	store  Store
	config MergerConfig
	now    func() time.Time
	logger *zap.Logger

	tracer  trace.Tracer
	merges  metric.Int64Counter
	mergeMu sync.Mutex
}

// NewMerger creates a Merger over store.
func NewMerger(store Store, cfg MergerConfig, logger *zap.Logger, opts ...Option) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Merger{
		store:  store,
		config: cfg,
		now:    time.Now,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	m.merges, err = otel.Meter(instrumentationName).Int64Counter(
		"frontdesk.knowledge.merges_total",
		metric.WithDescription("Supervisor answers merged into knowledge, by outcome"),
		metric.WithUnit("{merge}"),
	)
	if err != nil {
		logger.Warn("failed to create merge counter", zap.Error(err))
	}
	return m
}

// Merge folds a supervisor's answer into the store. A matching active item
// gets the new answer and a confidence bump; otherwise a new active item is
// created at the default confidence.
func (m *Merger) Merge(ctx context.Context, question, answer, category string) (*Item, error) {
	ctx, span := m.tracer.Start(ctx, "knowledge.merge")
	defer span.End()

	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil, fmt.Errorf("%w: question and answer are required", ErrInvalidInput)
	}

	m.mergeMu.Lock()
	defer m.mergeMu.Unlock()

	active, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}

	now := m.now().UTC()
	if match := findMatch(active, question); match != nil {
		item, err := m.store.Update(ctx, match.ID, func(it *Item) error {
			it.Answer = answer
			if category != "" {
				it.Category = category
			}
			it.Confidence = clampConfidence(it.Confidence + m.config.ReinforcementStep)
			it.UpdatedAt = now
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reinforce knowledge %s: %w", match.ID, err)
		}
		m.record(ctx, "reinforced")
		span.SetAttributes(attribute.String("knowledge.id", item.ID), attribute.Bool("knowledge.created", false))
		m.logger.Debug("knowledge reinforced",
			zap.String("knowledge_id", item.ID),
			zap.Float64("confidence", item.Confidence))
		return item, nil
	}

	item := &Item{
		ID:         uuid.NewString(),
		Question:   question,
		Answer:     answer,
		Category:   category,
		Confidence: clampConfidence(m.config.DefaultConfidence),
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create knowledge: %w", err)
	}
	m.record(ctx, "created")
	span.SetAttributes(attribute.String("knowledge.id", item.ID), attribute.Bool("knowledge.created", true))
	m.logger.Debug("knowledge created", zap.String("knowledge_id", item.ID))
	return item, nil
}

func (m *Merger) record(ctx context.Context, outcome string) {
	if m.merges != nil {
		m.merges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// findMatch picks the active item whose question matches. An exact match
// after normalization wins; otherwise the highest-confidence item whose
// question contains, or is contained in, the new one.
func findMatch(items []Item, question string) *Item {
	norm := normalize(question)
	if norm == "" {
		return nil
	}

	var best *Item
	for i := range items {
		it := &items[i]
		if !it.Active {
			continue
		}
		other := normalize(it.Question)
		if other == "" {
			continue
		}
		if other == norm {
			return it
		}
		if !containsPhrase(other, norm) && !containsPhrase(norm, other) {
			continue
		}
		if best == nil || it.Confidence > best.Confidence ||
			(it.Confidence == best.Confidence && it.UpdatedAt.After(best.UpdatedAt)) {
			best = it
		}
	}
	return best
}

func normalize(s string) string {
	return strings.Join(Words(s), " ")
}

// containsPhrase reports whether needle occurs in haystack on word boundaries.
func containsPhrase(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
