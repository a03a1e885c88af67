package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/riveraxe/reactcore/pkg/hooks"
)

// setupRecordingTracer wires an in-memory span recorder so assertions can
// inspect what Hooks() actually emitted, the same tracetest harness the
// teacher's own telemetry tests use.
func setupRecordingTracer(t *testing.T) *tracetest.SpanRecorder {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	Configure(Settings{IsEnabled: true, Tracer: tp.Tracer(TracerName)})
	return rec
}

func TestGetTracerReturnsNoopWhenDisabled(t *testing.T) {
	tracer := GetTracer(Settings{IsEnabled: false})
	assert.NotNil(t, tracer)
	_, span := tracer.Start(context.Background(), "x")
	assert.False(t, span.IsRecording())
}

func TestHooksRunStartEndDoesNotPanicWithoutConfigure(t *testing.T) {
	defer Configure(Settings{})
	h := Hooks()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		h.OnRunStart(ctx, hooks.RunInfo{Message: "hi"})
		h.OnIterStart(ctx, hooks.IterInfo{Iteration: 1})
		h.OnLLMRequest(ctx, hooks.LLMRequestInfo{})
		h.OnLLMResponse(ctx, hooks.LLMResponseInfo{})
		h.OnToolStart(ctx, hooks.ToolInfo{Name: "search"})
		h.OnToolEnd(ctx, hooks.ToolInfo{Name: "search", Err: errors.New("boom")})
		h.OnIterEnd(ctx, hooks.IterInfo{Iteration: 1})
		h.OnRunEnd(ctx, hooks.RunInfo{Message: "hi"})
	})
}

func TestSpanTrackerEndWithoutStartIsNoop(t *testing.T) {
	tracker := newSpanTracker[context.Context]()
	assert.NotPanics(t, func() {
		tracker.end(context.Background(), nil)
	})
}

func TestHooksEmitsOneSpanPerRunIterLLMTool(t *testing.T) {
	rec := setupRecordingTracer(t)
	defer Configure(Settings{})

	h := Hooks()
	ctx := context.Background()

	h.OnRunStart(ctx, hooks.RunInfo{})
	h.OnIterStart(ctx, hooks.IterInfo{Iteration: 1})
	h.OnLLMRequest(ctx, hooks.LLMRequestInfo{})
	h.OnLLMResponse(ctx, hooks.LLMResponseInfo{})
	h.OnToolStart(ctx, hooks.ToolInfo{Name: "search"})
	h.OnToolEnd(ctx, hooks.ToolInfo{Name: "search"})
	h.OnIterEnd(ctx, hooks.IterInfo{Iteration: 1})
	h.OnRunEnd(ctx, hooks.RunInfo{})

	spans := rec.Ended()
	require.Len(t, spans, 4)

	names := make(map[string]bool)
	for _, s := range spans {
		names[s.Name()] = true
	}
	assert.True(t, names["reactcore.run"])
	assert.True(t, names["reactcore.iteration"])
	assert.True(t, names["reactcore.llm_call"])
	assert.True(t, names["reactcore.tool_call"])
}

func TestHooksToolSpanRecordsErrorStatus(t *testing.T) {
	rec := setupRecordingTracer(t)
	defer Configure(Settings{})

	h := Hooks()
	ctx := context.Background()
	h.OnToolStart(ctx, hooks.ToolInfo{Name: "flaky"})
	h.OnToolEnd(ctx, hooks.ToolInfo{Name: "flaky", Err: errors.New("boom")})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
