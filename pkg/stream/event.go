// Package stream implements the provider-agnostic streaming event sequence
// of spec §4.H: a uniform ordered stream of events that both the
// Anthropic-shaped and OpenAI-compatible-shaped wire protocols normalize
// into, plus an Assembler that folds the sequence back into a single
// provider.ChatResponse.
//
// Grounded on the teacher's pkg/providers/anthropic streaming path
// (language_model.go's anthropicStream.Next, which already demultiplexes
// Anthropic's native content_block_start/delta/stop events into a small
// state machine keyed by block index) and pkg/provider.StreamChunk/ChunkType
// (the teacher's flatter chunk union), restructured into the richer,
// explicitly block-bracketed event taxonomy spec §4.H requires.
package stream

import "github.com/riveraxe/reactcore/pkg/transcript"

// EventType discriminates Event's meaning.
type EventType int

const (
	MessageStart EventType = iota
	ContentBlockStart
	Delta
	ContentBlockStop
	MessageDelta
	MessageStop
	Error
)

// DeltaType discriminates a Delta event's payload kind (spec §4.H).
type DeltaType int

const (
	DeltaText DeltaType = iota
	DeltaThinking
	DeltaSignature
	DeltaInputJSON
	DeltaReasoning
)

// Event is one normalized stream event. Only the fields relevant to Type
// are populated.
type Event struct {
	Type EventType

	// ContentBlockStart / ContentBlockStop
	BlockKind transcript.BlockKind
	Index     int
	ToolID    string
	ToolName  string

	// Delta
	DeltaKind DeltaType
	Bytes     string

	// MessageDelta
	StopReason string
	Usage      *Usage

	// Error
	ErrType string
	ErrMsg  string
}

// Usage mirrors provider.Usage without importing pkg/provider, keeping
// pkg/stream free of a dependency on the provider package so providers can
// depend on stream instead of the reverse.
type Usage struct {
	InputTokens       int64
	OutputTokens      int64
	ThinkingTokens    int64
	ReasoningTokens   int64
	CacheCreateTokens int64
	CacheReadTokens   int64
}

// Handler receives normalized events as they are produced. Returning a
// non-nil error aborts the stream cleanly (spec §4.H "the user callback may
// return non-zero to abort").
type Handler func(Event) error
