package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limited wraps a Client with a token bucket and records each call.
type Limited struct {
	next     Client
	limiter  *rate.Limiter
	provider string
	logger   *zap.Logger

	tracer trace.Tracer
	calls  metric.Int64Counter
}

// NewLimited wraps next. A nil limiter disables limiting.
func NewLimited(next Client, limiter *rate.Limiter, provider string, logger *zap.Logger) *Limited {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	l := &Limited{
		next:     next,
		limiter:  limiter,
		provider: provider,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
	}

	var err error
	l.calls, err = otel.Meter(instrumentationName).Int64Counter(
		"frontdesk.llm.completions_total",
		metric.WithDescription("Generative completions by provider and outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("failed to create completion counter", zap.Error(err))
	}
	return l
}

// Complete waits for a token, then delegates.
func (l *Limited) Complete(ctx context.Context, systemPrompt, question string) (string, error) {
	ctx, span := l.tracer.Start(ctx, "llm.complete", trace.WithAttributes(attribute.String("llm.provider", l.provider)))
	defer span.End()

	if err := l.limiter.Wait(ctx); err != nil {
		l.record(ctx, "rate_limited")
		span.SetStatus(codes.Error, "rate limited")
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	start := time.Now()
	out, err := l.next.Complete(ctx, systemPrompt, question)
	if err != nil {
		l.record(ctx, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Warn("llm completion failed",
			zap.String("provider", l.provider),
			zap.Float64("duration_ms", since(start)),
			zap.Error(err))
		return "", err
	}

	l.record(ctx, "ok")
	l.logger.Debug("llm completion",
		zap.String("provider", l.provider),
		zap.Int("response_size", len(out)),
		zap.Float64("duration_ms", since(start)))
	return out, nil
}

func (l *Limited) record(ctx context.Context, outcome string) {
	if l.calls != nil {
		l.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", l.provider),
			attribute.String("outcome", outcome)))
	}
}
