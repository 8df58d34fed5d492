package router

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/knowledge"
	"github.com/fyrsmithlabs/frontdesk/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *knowledge.MemoryStore {
	t.Helper()
	s := knowledge.NewMemoryStore()
	_, err := knowledge.Seed(context.Background(), s, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return s
}

func newRouter(t *testing.T, s Searcher, model llm.Client, cfg Config) *Router {
	t.Helper()
	r, err := New(s, model, cfg, nil)
	require.NoError(t, err)
	return r
}

type failingSearcher struct{ calls atomic.Int32 }

func (f *failingSearcher) Search(context.Context, knowledge.Query) ([]knowledge.Item, error) {
	f.calls.Add(1)
	return nil, errors.New("db down")
}

type panickingSearcher struct{ calls atomic.Int32 }

func (p *panickingSearcher) Search(context.Context, knowledge.Query) ([]knowledge.Item, error) {
	if p.calls.Add(1) == 1 {
		panic("index corrupted")
	}
	return nil, nil
}

type brokenIndex struct{}

func (brokenIndex) Search(context.Context, knowledge.Query) ([]knowledge.Item, error) {
	panic("index corrupted")
}

func countingModel(reply string, err error) (llm.Client, *atomic.Int32) {
	var n atomic.Int32
	return llm.ClientFunc(func(context.Context, string, string) (string, error) {
		n.Add(1)
		return reply, err
	}), &n
}

func TestRoute_DirectMatchSkipsModel(t *testing.T) {
	model, calls := countingModel(`{"answer":"nope","confidence":0.1}`, nil)
	r := newRouter(t, seededStore(t), model, DefaultConfig())

	res := r.Route(context.Background(), "What are your hours?")

	assert.Equal(t, PathDirect, res.Path)
	assert.Equal(t, 0.9, res.Confidence)
	assert.False(t, res.ShouldEscalate)
	assert.Contains(t, res.Answer, "Monday through Friday")
	assert.Equal(t, int32(0), calls.Load(), "model must not be invoked on a direct match")
}

func TestRoute_Generative(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantAns   string
		wantConf  float64
		escalates bool
	}{
		{"confident json", `{"answer":"We close at 7.","confidence":0.85}`, "We close at 7.", 0.85, false},
		{"fenced json", "```json\n{\"answer\":\"Maybe\",\"confidence\":0.2}\n```", "Maybe", 0.2, true},
		{"plain text", "I think so!", "I think so!", 0.5, false},
		{"missing confidence", `{"answer":"Sure"}`, "Sure", 0.5, false},
		{"explicit zero", `{"answer":"No idea","confidence":0}`, "No idea", 0, true},
		{"above one", `{"answer":"Yes","confidence":7}`, "Yes", 1, false},
		{"below zero", `{"answer":"Hmm","confidence":-2}`, "Hmm", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, calls := countingModel(tt.reply, nil)
			r := newRouter(t, seededStore(t), model, DefaultConfig())

			res := r.Route(context.Background(), "Do you offer a free yacht?")
			assert.Equal(t, PathGenerative, res.Path)
			assert.Equal(t, tt.wantAns, res.Answer)
			assert.InDelta(t, tt.wantConf, res.Confidence, 1e-9)
			assert.Equal(t, tt.escalates, res.ShouldEscalate)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestRoute_ModelFailureDegrades(t *testing.T) {
	t.Run("with knowledge hit", func(t *testing.T) {
		model, _ := countingModel("", errors.New("quota exceeded"))
		r := newRouter(t, seededStore(t), model, DefaultConfig())

		// Shares "keratin" with a seeded item but not enough for a direct match.
		res := r.Route(context.Background(), "Is keratin safe during pregnancy for sensitive scalps?")
		assert.Equal(t, PathDegraded, res.Path)
		assert.Equal(t, 0.7, res.Confidence)
		assert.False(t, res.ShouldEscalate)
		assert.Contains(t, res.Answer, "keratin")
	})

	t.Run("no hit", func(t *testing.T) {
		model, _ := countingModel("", errors.New("quota exceeded"))
		r := newRouter(t, seededStore(t), model, DefaultConfig())

		res := r.Route(context.Background(), "Do you offer a free yacht?")
		assert.Equal(t, PathFallback, res.Path)
		assert.Equal(t, FallbackAnswer, res.Answer)
		assert.Equal(t, 0.0, res.Confidence)
		assert.True(t, res.ShouldEscalate)
	})

	t.Run("empty output", func(t *testing.T) {
		model, _ := countingModel("   ", nil)
		r := newRouter(t, seededStore(t), model, DefaultConfig())

		res := r.Route(context.Background(), "Do you offer a free yacht?")
		assert.Equal(t, PathFallback, res.Path)
	})

	t.Run("timeout", func(t *testing.T) {
		slow := llm.ClientFunc(func(ctx context.Context, _, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		cfg := DefaultConfig()
		cfg.GenerativeTimeout = 20 * time.Millisecond
		r := newRouter(t, seededStore(t), slow, cfg)

		res := r.Route(context.Background(), "Do you offer a free yacht?")
		assert.Equal(t, PathFallback, res.Path)
		assert.True(t, res.ShouldEscalate)
	})
}

func TestRoute_NoModel(t *testing.T) {
	r := newRouter(t, seededStore(t), nil, DefaultConfig())

	res := r.Route(context.Background(), "Is keratin safe during pregnancy for sensitive scalps?")
	assert.Equal(t, PathDegraded, res.Path)
	assert.Equal(t, 0.7, res.Confidence)

	res = r.Route(context.Background(), "Do you offer a free yacht?")
	assert.Equal(t, PathFallback, res.Path)
	assert.True(t, res.ShouldEscalate)
}

func TestRoute_NeverFails(t *testing.T) {
	t.Run("search error", func(t *testing.T) {
		s := &failingSearcher{}
		model, calls := countingModel(`{"answer":"ok","confidence":0.9}`, nil)
		r := newRouter(t, s, model, DefaultConfig())

		res := r.Route(context.Background(), "What are your hours?")
		assert.Equal(t, PathGenerative, res.Path, "search failure still allows the model")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("search error without model", func(t *testing.T) {
		r := newRouter(t, &failingSearcher{}, nil, DefaultConfig())
		res := r.Route(context.Background(), "What are your hours?")
		assert.Equal(t, PathFallback, res.Path)
	})

	t.Run("panic", func(t *testing.T) {
		s := &panickingSearcher{}
		r := newRouter(t, s, nil, DefaultConfig())

		var res Result
		assert.NotPanics(t, func() { res = r.Route(context.Background(), "What are your hours?") })
		assert.Equal(t, PathFallback, res.Path)
		assert.True(t, res.ShouldEscalate)
	})

	t.Run("search panics on every call", func(t *testing.T) {
		r := newRouter(t, brokenIndex{}, nil, DefaultConfig())

		var res Result
		assert.NotPanics(t, func() { res = r.Route(context.Background(), "Do you offer a free yacht?") })
		assert.Equal(t, PathFallback, res.Path)
		assert.True(t, res.ShouldEscalate)
	})

	t.Run("model and search both panic", func(t *testing.T) {
		model := llm.ClientFunc(func(context.Context, string, string) (string, error) {
			panic("client bug")
		})
		r := newRouter(t, brokenIndex{}, model, DefaultConfig())

		var res Result
		assert.NotPanics(t, func() { res = r.Route(context.Background(), "Do you offer a free yacht?") })
		assert.Equal(t, PathFallback, res.Path)
	})

	t.Run("empty question", func(t *testing.T) {
		r := newRouter(t, seededStore(t), nil, DefaultConfig())
		res := r.Route(context.Background(), "  ")
		assert.True(t, res.ShouldEscalate)
	})
}

func TestNew_RequiresSearcher(t *testing.T) {
	r, err := New(nil, nil, DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrNoSearcher)
	assert.Nil(t, r)
}

func TestRoute_ConfidenceBounds(t *testing.T) {
	questions := []string{
		"What are your hours?",
		"Do you do keratin treatments?",
		"Do you offer a free yacht?",
		"",
		"???",
	}
	replies := []string{`{"answer":"x","confidence":1e9}`, `{"answer":"x","confidence":-1e9}`, "plain"}
	for _, reply := range replies {
		model, _ := countingModel(reply, nil)
		r := newRouter(t, seededStore(t), model, DefaultConfig())
		for _, q := range questions {
			res := r.Route(context.Background(), q)
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
			if res.Path == PathGenerative {
				assert.Equal(t, res.Confidence < 0.5, res.ShouldEscalate)
			}
		}
	}
}

func TestWordOverlap(t *testing.T) {
	assert.Equal(t, 1.0, wordOverlap("What are your hours?", "What are your hours?"))
	assert.Equal(t, 0.0, wordOverlap("Is it ok?", "Is it ok?"), "no significant words")
	assert.InDelta(t, 0.5, wordOverlap("keratin yacht", "Do you do keratin treatments?"), 1e-9)
}
