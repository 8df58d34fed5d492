// Package knowledge stores question/answer pairs and folds supervisor
// answers back into them.
package knowledge

import (
	"errors"
	"math"
	"time"
)

// ErrNotFound is returned when no knowledge item has the requested id.
var ErrNotFound = errors.New("knowledge item not found")

// ErrInvalidInput is returned when a question or answer is empty. Out of
// range confidences are clamped, not rejected.
var ErrInvalidInput = errors.New("invalid knowledge input")

// Item is a question/answer pair with a confidence score.
type Item struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Category   string    `json:"category,omitempty"`
	Confidence float64   `json:"confidence"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Query selects items for Search.
type Query struct {
	Text  string
	Limit int // <= 0 means unlimited
	// ActiveOnly skips soft-deleted items.
	ActiveOnly bool
	// IncludeAnswers also matches terms against the answer text.
	IncludeAnswers bool
	// ByConfidence orders matches by confidence before relevance.
	ByConfidence bool
}

// Patch describes an administrative update. Nil fields are left unchanged.
type Patch struct {
	Question   *string  `json:"question,omitempty"`
	Answer     *string  `json:"answer,omitempty"`
	Category   *string  `json:"category,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// clampConfidence bounds c to [0,1].
func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
