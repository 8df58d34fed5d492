// Package llm provides the generative model clients used by the router.
//
// Two providers are supported: OpenAI-compatible endpoints through
// langchaingo, and Anthropic through the official SDK. Both are wrapped in a
// rate limiter so a burst of calls cannot exhaust the provider quota.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const instrumentationName = "github.com/fyrsmithlabs/frontdesk/internal/llm"

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	defaultMaxTokens      = 1024
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Client completes a single-turn conversation.
type Client interface {
	Complete(ctx context.Context, systemPrompt, question string) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, systemPrompt, question string) (string, error)

func (f ClientFunc) Complete(ctx context.Context, systemPrompt, question string) (string, error) {
	return f(ctx, systemPrompt, question)
}

// New builds the client selected by cfg.Provider. It returns a nil Client
// and no error when the provider is none, which leaves the router on its
// degraded path.
func New(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		c   Client
		err error
	)
	switch cfg.Provider {
	case "", config.ProviderNone:
		return nil, nil
	case config.ProviderOpenAI:
		c, err = newOpenAIClient(cfg)
	case config.ProviderAnthropic:
		c, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	logger.Info("llm client configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Float64("rate_limit", cfg.RateLimit))
	return NewLimited(c, rate.NewLimiter(limit, burst), cfg.Provider, logger), nil
}

func maxTokens(cfg config.LLMConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return defaultMaxTokens
}

// since reports elapsed milliseconds for log fields.
func since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
