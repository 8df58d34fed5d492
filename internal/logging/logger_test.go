package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fyrsmithlabs/frontdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())

	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	assert.ErrorContains(t, cfg.Validate(), "format must be")

	cfg = NewDefaultConfig()
	cfg.Output.Stdout = false
	assert.ErrorContains(t, cfg.Validate(), "at least one output")

	cfg = NewDefaultConfig()
	cfg.Sampling.Tick = 0
	assert.ErrorContains(t, cfg.Validate(), "sampling tick")

	cfg = NewDefaultConfig()
	cfg.Redaction.Patterns = []string{"("}
	assert.ErrorContains(t, cfg.Validate(), "invalid redaction pattern")
}

func TestFromAppConfig(t *testing.T) {
	app := config.Default()
	app.Logging.Level = "TRACE"
	app.Logging.Format = "console"
	app.Observability.ServiceName = "desk-test"
	app.Observability.EnableTelemetry = true

	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "desk-test", cfg.Fields["service"])
	assert.True(t, cfg.Output.OTEL)

	app.Logging.Level = "loud"
	_, err = FromAppConfig(app)
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	_, err = LevelFromString("nope")
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithCallerID(ctx, "+15551234567")
	ctx = WithSessionID(ctx, "0b6c7a9e-2f1d-4c1e-9d8a-1234567890ab")
	ctx = WithHelpRequestID(ctx, "hr-9")

	tl := NewTestLogger()
	tl.Info(ctx, "routed")
	tl.AssertField(t, "routed", "request.id", "req-1")
	tl.AssertField(t, "routed", "caller.id", "+15551234567")
	tl.AssertField(t, "routed", "session.id", "0b6c7a9e-2f1d-4c1e-9d8a-1234567890ab")
	tl.AssertField(t, "routed", "help_request.id", "hr-9")
}

func TestContextFields_DropsMalformedIDs(t *testing.T) {
	ctx := WithCallerID(context.Background(), "not a caller\n")
	assert.Empty(t, CallerIDFromContext(ctx))
	assert.Empty(t, ContextFields(ctx))
}

func TestContextFields_Trace(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	keys := map[string]bool{}
	for _, f := range ContextFields(ctx) {
		keys[f.Key] = true
	}
	assert.True(t, keys["trace_id"])
	assert.True(t, keys["span_id"])
	assert.True(t, keys["trace_sampled"])
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Warn(ctx, "from context")
	tl.AssertLogged(t, zapcore.WarnLevel, "from context")
}

func TestLogger_ChildLoggers(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Named("router").With(zap.String("component", "router")).Info(ctx, "child")
	tl.AssertField(t, "child", "component", "router")
	assert.Equal(t, "router", tl.All()[0].LoggerName)

	tl.Trace(ctx, "trace entry")
	tl.AssertLogged(t, TraceLevel, "trace entry")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "trace entry")
}

func encodeWith(t *testing.T, fields ...zap.Field) map[string]interface{} {
	t.Helper()

	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, fields)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(&out))
	return out
}

func TestRedactingEncoder(t *testing.T) {
	out := encodeWith(t,
		zap.String("api_key", "sk-live"),
		zap.String("Authorization", "Bearer abc"),
		zap.String("note", "header was Bearer abc123"),
		zap.String("question", "What are your hours?"),
		Secret("llm_key", config.Secret("sk-ant-123456")),
	)

	assert.Equal(t, "[REDACTED]", out["api_key"])
	assert.Equal(t, "[REDACTED]", out["Authorization"])
	assert.Equal(t, "[REDACTED:pattern]", out["note"])
	assert.Equal(t, "What are your hours?", out["question"])
	assert.Equal(t, "[REDACTED:13]", out["llm_key"])
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	core := zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel)
	zap.New(core).With(zap.String("token", "t0k3n")).Info("hello")

	assert.Contains(t, buf.String(), `"token":"[REDACTED]"`)
	assert.NotContains(t, buf.String(), "t0k3n")
}

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	cfg.Sampling.Enabled = false

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(TraceLevel))
	_ = logger.Sync()

	cfg.Output.Stdout = false
	cfg.Output.OTEL = true
	_, err = NewLogger(cfg, nil)
	assert.ErrorContains(t, err, "at least one output")
}

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	var buf bytes.Buffer
	base := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&buf), zapcore.DebugLevel)

	core := newSampledCore(base, SamplingConfig{Enabled: true, Tick: config.Duration(1 << 40), Initial: 1, Thereafter: 0})
	l := zap.New(core)
	for i := 0; i < 5; i++ {
		l.Info("info")
		l.Error("error")
	}

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"msg":"info"`)))
	assert.Equal(t, 5, bytes.Count(buf.Bytes(), []byte(`"msg":"error"`)))
}
