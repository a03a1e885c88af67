package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riveraxe/reactcore/pkg/hooks"
)

// spanTracker correlates the start half and end half of one span across the
// two separate Fire* calls the hooks package makes for it (e.g.
// OnRunStart/OnRunEnd). Keys are whatever the caller supplies — RunInfo.RunID
// for run spans, the shared context.Context value for the rest, since
// iteration/LLM-call/tool-call never carry an ID of their own. Calls for a
// given boundary never nest or run concurrently within one Agent.Run, so one
// live entry per key is always enough.
type spanTracker[K comparable] struct {
	mu    sync.Mutex
	spans map[K]trace.Span
}

func newSpanTracker[K comparable]() *spanTracker[K] {
	return &spanTracker[K]{spans: make(map[K]trace.Span)}
}

func (t *spanTracker[K]) start(ctx context.Context, key K, name string, attrs ...attribute.KeyValue) {
	_, span := GetTracer(current).Start(ctx, name, trace.WithAttributes(attrs...))
	t.mu.Lock()
	t.spans[key] = span
	t.mu.Unlock()
}

func (t *spanTracker[K]) end(key K, err error) {
	t.mu.Lock()
	span, ok := t.spans[key]
	if ok {
		delete(t.spans, key)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	RecordErrorOnSpan(span, err)
	span.End()
}

// Hooks builds a hooks.Hooks that emits a span around each run, iteration,
// LLM call, and tool call, per spec §4.J's "may optionally emit
// OpenTelemetry spans ... around run/iteration/LLM-call/tool-call
// boundaries." It never returns an error or otherwise alters control flow;
// when telemetry is disabled (the default), GetTracer hands back a no-op
// tracer and these spans cost a couple of interface calls each.
func Hooks() hooks.Hooks {
	runSpans := newSpanTracker[string]()
	iterSpans := newSpanTracker[context.Context]()
	llmSpans := newSpanTracker[context.Context]()
	toolSpans := newSpanTracker[context.Context]()

	return hooks.Hooks{
		OnRunStart: func(ctx context.Context, info hooks.RunInfo) {
			runSpans.start(ctx, info.RunID, "reactcore.run")
		},
		OnRunEnd: func(ctx context.Context, info hooks.RunInfo) {
			runSpans.end(info.RunID, nil)
		},
		OnIterStart: func(ctx context.Context, info hooks.IterInfo) {
			iterSpans.start(ctx, ctx, "reactcore.iteration", attribute.Int("reactcore.iteration", info.Iteration))
		},
		OnIterEnd: func(ctx context.Context, info hooks.IterInfo) {
			iterSpans.end(ctx, nil)
		},
		OnLLMRequest: func(ctx context.Context, info hooks.LLMRequestInfo) {
			llmSpans.start(ctx, ctx, "reactcore.llm_call")
		},
		OnLLMResponse: func(ctx context.Context, info hooks.LLMResponseInfo) {
			llmSpans.end(ctx, nil)
		},
		OnToolStart: func(ctx context.Context, info hooks.ToolInfo) {
			toolSpans.start(ctx, ctx, "reactcore.tool_call", attribute.String("reactcore.tool_name", info.Name))
		},
		OnToolEnd: func(ctx context.Context, info hooks.ToolInfo) {
			toolSpans.end(ctx, info.Err)
		},
	}
}
