// Package provider defines the polymorphic chat-model backend abstraction
// (spec §4.F): a trait-like interface turning a transcript plus a tool
// schema into either a final assistant message or a set of tool-call
// requests, in both request/response and streaming form.
//
// Grounded on the teacher's pkg/provider.Provider/LanguageModel interfaces,
// generalized from the teacher's per-modality (language/embedding/image/...)
// model surface down to the single chat-completion surface the spec calls
// for, and extended with the vtable fields (Capabilities, Create/Cleanup)
// spec §4.F and §9 ask for beyond what the teacher's interface exposes.
package provider

import (
	"context"
	"strings"

	"github.com/riveraxe/reactcore/pkg/rterr"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

// Capability is one bit of the per-provider capability bitset (spec §4.F).
type Capability uint8

const (
	CapThinking Capability = 1 << iota
	CapReasoning
	CapStreaming
	CapStateful
	CapTools
	CapVision
)

func (c Capability) Has(bit Capability) bool { return c&bit != 0 }

// Usage is the token accounting returned alongside a ChatResponse (spec §3
// "ChatResponse... usage{input, output, thinking?, reasoning?, cache_create?,
// cache_read?}").
type Usage struct {
	InputTokens       int64
	OutputTokens      int64
	ThinkingTokens    int64
	ReasoningTokens   int64
	CacheCreateTokens int64
	CacheReadTokens   int64
}

// Add returns the element-wise sum of two Usage values, used by the ReACT
// loop to accumulate token counters across iterations (spec §4.I step 5e).
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:       u.InputTokens + o.InputTokens,
		OutputTokens:      u.OutputTokens + o.OutputTokens,
		ThinkingTokens:    u.ThinkingTokens + o.ThinkingTokens,
		ReasoningTokens:   u.ReasoningTokens + o.ReasoningTokens,
		CacheCreateTokens: u.CacheCreateTokens + o.CacheCreateTokens,
		CacheReadTokens:   u.CacheReadTokens + o.CacheReadTokens,
	}
}

// StopReason mirrors the provider's own terminology for why generation
// stopped; "tool_use" carries the invariant from spec §3: stop_reason ==
// "tool_use" iff at least one ToolUse block is present.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopStop      StopReason = "stop_sequence"
)

// ChatResponse is a provider's output for one `chat`/`chat_stream` call
// (spec §3 "ChatResponse").
type ChatResponse struct {
	ID         string
	Blocks     []transcript.ContentBlock
	StopReason StopReason
	Usage      Usage
}

// Validate enforces the §3 invariant that ties StopReason to the presence
// of a ToolUse block.
func (r *ChatResponse) Validate() error {
	hasToolUse := false
	for _, b := range r.Blocks {
		if b.Kind == transcript.BlockToolUse {
			hasToolUse = true
			break
		}
	}
	if (r.StopReason == StopToolUse) != hasToolUse {
		return rterr.New(rterr.Protocol,
			"stop_reason=%q but tool_use block present=%v", r.StopReason, hasToolUse)
	}
	return nil
}

// ToolUses is a convenience accessor over Blocks.
func (r *ChatResponse) ToolUses() []transcript.ContentBlock {
	var out []transcript.ContentBlock
	for _, b := range r.Blocks {
		if b.Kind == transcript.BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// TextOnly concatenates every Text block, used when the agent needs the
// response's plain final answer.
func (r *ChatResponse) TextOnly() string {
	var sb strings.Builder
	for _, b := range r.Blocks {
		if b.Kind == transcript.BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ThinkingConfig configures a reasoning-capable provider's extended
// thinking budget (spec §4.F "Thinking config").
type ThinkingConfig struct {
	Enabled      bool
	BudgetTokens int
}

// StatefulConfig configures provider-side stateful chaining (spec §3
// LLMParams.stateful; treated as advisory per §9 Open Questions).
type StatefulConfig struct {
	Store            bool
	ResponseID       string
	IncludeEncrypted bool
}

// LLMParams configures one provider/model pairing (spec §3). Only a subset
// of fields may mutate post-creation: Stateful, Thinking, Stream.
type LLMParams struct {
	ProviderName      string
	CompatibilityHint string
	Model             string
	APIKey            string
	APIBase           string
	Temperature       float64
	TopP              float64
	MaxTokens         int
	TimeoutMS         int
	// RateLimitPerSecond, if non-zero, caps outbound requests to this backend
	// instance to that many per second (spec §4.F HTTP client acquisition).
	RateLimitPerSecond float64
	Thinking           ThinkingConfig
	Stream             bool
	Stateful           StatefulConfig
}

// StreamEventHandler receives normalized stream events during chat_stream;
// the parameter is declared here as `interface{}` to avoid an import cycle,
// the backends pass a pkg/stream.Event value, and a handler type-asserts
// the event to stream.Event. Returning
// a non-nil error aborts the stream (spec §4.H "user callback may return
// non-zero to abort").
type StreamEventHandler func(event interface{}) error

// Chat is the request/response function shape with params passed per call.
// The backends in this module do not use this type: they expose the same
// operation as Instance.Chat, with params bound at Create.
type Chat func(ctx context.Context, params LLMParams, t *transcript.Transcript, toolsSchema string) (*ChatResponse, error)

// ChatStream is the incremental function shape with params passed per call.
// The backends in this module expose it as Instance.ChatStream instead.
type ChatStream func(ctx context.Context, params LLMParams, t *transcript.Transcript, toolsSchema string, handler StreamEventHandler) (*ChatResponse, error)

// Backend is the static half of the provider vtable of spec §4.F: name,
// capabilities and create. Create returns an Instance, which carries the
// other half (chat, chat_stream, cleanup); Create/Cleanup model any
// resource the instance needs to acquire and release (e.g. a pooled HTTP
// client, §4.F "HTTP client acquisition").
type Backend interface {
	Name() string
	Capabilities() Capability
	Create(params LLMParams) (Instance, error)
}

// Instance is a backend bound to one LLMParams; it is the `priv` blob of
// the C vtable made concrete as a Go value with methods.
type Instance interface {
	Chat(ctx context.Context, t *transcript.Transcript, toolsSchema string) (*ChatResponse, error)
	ChatStream(ctx context.Context, t *transcript.Transcript, toolsSchema string, handler StreamEventHandler) (*ChatResponse, error)
	Cleanup() error
}

// registry is the process-wide name->Backend table populated at startup via
// Register and read-only afterward (spec §4.F, §5 "Process-wide state").
var registry = map[string]Backend{}

// Register adds a backend to the process-wide provider table. Backends call
// this from an init() function, mirroring how the teacher's provider
// packages register themselves with pkg/registry.RegisterProvider.
func Register(b Backend) {
	registry[b.Name()] = b
}

// Lookup returns a registered backend by exact name.
func Lookup(name string) (Backend, bool) {
	b, ok := registry[name]
	return b, ok
}

// Resolve implements the three-step selection order of spec §4.F:
//  1. params.ProviderName if it names a registered backend.
//  2. params.CompatibilityHint if it names a registered backend.
//  3. Auto-detect by model prefix / api_base substring.
//
// Resolution is a pure function of its inputs (spec testable property 5).
func Resolve(params LLMParams) (Backend, error) {
	if params.ProviderName != "" {
		if b, ok := registry[params.ProviderName]; ok {
			return b, nil
		}
	}
	if params.CompatibilityHint != "" {
		if b, ok := registry[params.CompatibilityHint]; ok {
			return b, nil
		}
	}
	return autoDetect(params)
}

func autoDetect(params LLMParams) (Backend, error) {
	model := strings.ToLower(params.Model)
	base := strings.ToLower(params.APIBase)

	if strings.Contains(model, "claude") || strings.Contains(base, "anthropic.com") {
		if b, ok := registry["anthropic"]; ok {
			return b, nil
		}
	}

	// OpenAI-compatible is the fallback (spec §4.F step 3).
	if b, ok := registry["openai"]; ok {
		return b, nil
	}

	return nil, rterr.New(rterr.NotFound, "no provider registered to handle model %q", params.Model)
}

// Create resolves and instantiates a backend in one step, the path Agent
// construction normally uses.
func Create(params LLMParams) (Instance, error) {
	b, err := Resolve(params)
	if err != nil {
		return nil, err
	}
	inst, err := b.Create(params)
	if err != nil {
		return nil, rterr.Wrap(rterr.Backend, err, "create %s instance", b.Name())
	}
	return inst, nil
}
