// Package hooks implements the process-wide observation callback struct of
// spec §4.J: a fixed set of optional, synchronously-invoked extension
// points fired at defined places in the ReACT loop.
//
// Grounded on the teacher's pkg/telemetry (Settings/GetTracer), which plays
// the same "process-wide, optional, configure-once" role for OpenTelemetry
// spans; Hooks generalizes that shape from tracing specifically to the
// eight typed callback points spec §4.J names, and the teacher's
// pkg/ai.agentCallbacks / mergeCallbacks (toolloop.go), which is the
// closest the teacher comes to a typed per-run callback bundle.
package hooks

import (
	"context"

	"github.com/riveraxe/reactcore/pkg/provider"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

// RunInfo accompanies on_run_start/on_run_end. RunID is stable across the
// two calls for one Agent.Run invocation (spec §4.J "correlate hook
// invocations across concurrently running agents"), letting an observer
// pair up the start and end of one run without relying on context identity.
type RunInfo struct {
	RunID      string
	Message    string
	Iterations int
	Usage      provider.Usage
	DurationNS int64
	StopStatus string
}

// IterInfo accompanies on_iter_start/on_iter_end.
type IterInfo struct {
	Iteration int
}

// LLMRequestInfo accompanies on_llm_request. Transcript is the same pointer
// the agent is about to send, exposed raw rather than copied or serialized
// (spec §4.J "typed info record (raw, unserialized)").
type LLMRequestInfo struct {
	Transcript  *transcript.Transcript
	ToolsSchema string
}

// LLMResponseInfo accompanies on_llm_response.
type LLMResponseInfo struct {
	Response *provider.ChatResponse
	Duration int64
}

// ToolInfo accompanies on_tool_start/on_tool_end.
type ToolInfo struct {
	Name     string
	ArgsJSON string
	Result   string // populated only for on_tool_end
	Err      error  // populated only for on_tool_end, registry-level errors only
	// IsError reports whether Result's top-level JSON carries an "error"
	// key (spec §9 open question "Is-error detection", resolved to the
	// stricter top-level-key rule rather than the reference's substring
	// heuristic). Populated only for on_tool_end; true whenever Err is
	// non-nil, and also true for a tool that returned {"error":...} of its
	// own accord without the registry reporting a Go error (spec E6).
	IsError bool
}

// Hooks is the process-wide callback struct. The zero value has every hook
// unset, which Fire* treats as a no-op — equivalent to spec §4.J's
// "compile-time switch disables all hook invocations to zero" without
// needing an actual build tag, since an unset func field costs one nil
// check per call site.
type Hooks struct {
	OnRunStart    func(ctx context.Context, info RunInfo)
	OnRunEnd      func(ctx context.Context, info RunInfo)
	OnIterStart   func(ctx context.Context, info IterInfo)
	OnIterEnd     func(ctx context.Context, info IterInfo)
	OnLLMRequest  func(ctx context.Context, info LLMRequestInfo)
	OnLLMResponse func(ctx context.Context, info LLMResponseInfo)
	OnToolStart   func(ctx context.Context, info ToolInfo)
	OnToolEnd     func(ctx context.Context, info ToolInfo)
}

// current is the process-wide hook set (spec §4.J "a single process-wide
// struct"). SetHooks is not thread-safe by design: spec §4.J requires
// configuration to complete before any agent runs, never concurrently with
// one.
var current Hooks

// SetHooks replaces the process-wide hook set. Not safe to call while any
// agent is running (spec §4.J).
func SetHooks(h Hooks) { current = h }

// Current returns the active process-wide hook set.
func Current() Hooks { return current }

func (h Hooks) fireRunStart(ctx context.Context, info RunInfo) {
	if h.OnRunStart != nil {
		h.OnRunStart(ctx, info)
	}
}

func (h Hooks) fireRunEnd(ctx context.Context, info RunInfo) {
	if h.OnRunEnd != nil {
		h.OnRunEnd(ctx, info)
	}
}

func (h Hooks) fireIterStart(ctx context.Context, info IterInfo) {
	if h.OnIterStart != nil {
		h.OnIterStart(ctx, info)
	}
}

func (h Hooks) fireIterEnd(ctx context.Context, info IterInfo) {
	if h.OnIterEnd != nil {
		h.OnIterEnd(ctx, info)
	}
}

func (h Hooks) fireLLMRequest(ctx context.Context, info LLMRequestInfo) {
	if h.OnLLMRequest != nil {
		h.OnLLMRequest(ctx, info)
	}
}

func (h Hooks) fireLLMResponse(ctx context.Context, info LLMResponseInfo) {
	if h.OnLLMResponse != nil {
		h.OnLLMResponse(ctx, info)
	}
}

func (h Hooks) fireToolStart(ctx context.Context, info ToolInfo) {
	if h.OnToolStart != nil {
		h.OnToolStart(ctx, info)
	}
}

func (h Hooks) fireToolEnd(ctx context.Context, info ToolInfo) {
	if h.OnToolEnd != nil {
		h.OnToolEnd(ctx, info)
	}
}

// FireRunStart invokes the process-wide on_run_start hook, if set.
func FireRunStart(ctx context.Context, info RunInfo) { current.fireRunStart(ctx, info) }

// FireRunEnd invokes the process-wide on_run_end hook, if set.
func FireRunEnd(ctx context.Context, info RunInfo) { current.fireRunEnd(ctx, info) }

// FireIterStart invokes the process-wide on_iter_start hook, if set.
func FireIterStart(ctx context.Context, info IterInfo) { current.fireIterStart(ctx, info) }

// FireIterEnd invokes the process-wide on_iter_end hook, if set.
func FireIterEnd(ctx context.Context, info IterInfo) { current.fireIterEnd(ctx, info) }

// FireLLMRequest invokes the process-wide on_llm_request hook, if set.
func FireLLMRequest(ctx context.Context, info LLMRequestInfo) { current.fireLLMRequest(ctx, info) }

// FireLLMResponse invokes the process-wide on_llm_response hook, if set.
func FireLLMResponse(ctx context.Context, info LLMResponseInfo) { current.fireLLMResponse(ctx, info) }

// FireToolStart invokes the process-wide on_tool_start hook, if set.
func FireToolStart(ctx context.Context, info ToolInfo) { current.fireToolStart(ctx, info) }

// FireToolEnd invokes the process-wide on_tool_end hook, if set.
func FireToolEnd(ctx context.Context, info ToolInfo) { current.fireToolEnd(ctx, info) }
