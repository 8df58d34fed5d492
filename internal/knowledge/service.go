package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service exposes knowledge administration on top of a Store and Merger.
type Service struct {
	store  Store
	merger *Merger
	now    func() time.Time
}

// NewService creates a knowledge Service. New items go through merger so
// administrative adds reinforce existing questions the same way supervisor
// answers do.
func NewService(store Store, merger *Merger) *Service {
	return &Service{store: store, merger: merger, now: merger.now}
}

// List returns active items, most recently updated first.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	return s.store.List(ctx)
}

// Search matches text against questions and answers of active items,
// highest confidence first.
func (s *Service) Search(ctx context.Context, text string) ([]Item, error) {
	return s.store.Search(ctx, Query{
		Text:           text,
		ActiveOnly:     true,
		IncludeAnswers: true,
		ByConfidence:   true,
	})
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.store.Get(ctx, id)
}

// Add merges a question/answer pair into the store.
func (s *Service) Add(ctx context.Context, question, answer, category string) (*Item, error) {
	return s.merger.Merge(ctx, question, answer, category)
}

// Update applies an administrative patch. Confidence is clamped to [0,1].
func (s *Service) Update(ctx context.Context, id string, p Patch) (*Item, error) {
	if p.Question != nil && strings.TrimSpace(*p.Question) == "" {
		return nil, fmt.Errorf("%w: question cannot be empty", ErrInvalidInput)
	}
	if p.Answer != nil && strings.TrimSpace(*p.Answer) == "" {
		return nil, fmt.Errorf("%w: answer cannot be empty", ErrInvalidInput)
	}

	now := s.now().UTC()
	return s.store.Update(ctx, id, func(it *Item) error {
		if p.Question != nil {
			it.Question = strings.TrimSpace(*p.Question)
		}
		if p.Answer != nil {
			it.Answer = strings.TrimSpace(*p.Answer)
		}
		if p.Category != nil {
			it.Category = *p.Category
		}
		if p.Confidence != nil {
			it.Confidence = clampConfidence(*p.Confidence)
		}
		it.UpdatedAt = now
		return nil
	})
}

// Delete soft-deletes an item. It reports false if the item was already
// inactive.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.store.SoftDelete(ctx, id)
}
