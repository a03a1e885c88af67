package stream

import (
	"github.com/tidwall/gjson"

	"github.com/riveraxe/reactcore/pkg/rterr"
	"github.com/riveraxe/reactcore/pkg/sse"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

// AnthropicTranslator turns Anthropic-shaped SSE records (content_block_
// start/delta/stop, message_start/delta/stop) into the normalized Event
// sequence (spec §4.H "Provider-B's native SSE already carries
// content_block_start/content_block_delta/content_block_stop/message_delta
// /message_stop events; the normalizer is almost a direct translation").
//
// Grounded on pkg/providers/anthropic/language_model.go's anthropicStream,
// which demultiplexes the same event names via a per-index
// streamContentBlock map; this translator keeps that per-index bookkeeping
// but emits the richer bracketed Event sequence instead of the teacher's
// flat StreamChunk union.
type AnthropicTranslator struct {
	handler    Handler
	started    bool
	blockTypes map[int]transcript.BlockKind
}

// NewAnthropicTranslator creates a translator that forwards normalized
// events to handler.
func NewAnthropicTranslator(handler Handler) *AnthropicTranslator {
	return &AnthropicTranslator{handler: handler, blockTypes: make(map[int]transcript.BlockKind)}
}

// HandleRecord processes one decoded sse.Record.
func (t *AnthropicTranslator) HandleRecord(rec sse.Record) error {
	switch rec.Event {
	case "ping":
		return nil

	case "message_start":
		if !t.started {
			t.started = true
			if err := t.emit(Event{Type: MessageStart}); err != nil {
				return err
			}
		}
		return nil

	case "content_block_start":
		return t.handleBlockStart(rec.Data)

	case "content_block_delta":
		return t.handleDelta(rec.Data)

	case "content_block_stop":
		return t.handleBlockStop(rec.Data)

	case "message_delta":
		return t.handleMessageDelta(rec.Data)

	case "message_stop":
		return t.emit(Event{Type: MessageStop})

	case "error":
		return t.emit(Event{
			Type:    Error,
			ErrType: gjson.Get(rec.Data, "error.type").String(),
			ErrMsg:  gjson.Get(rec.Data, "error.message").String(),
		})
	}
	return nil
}

func (t *AnthropicTranslator) handleBlockStart(data string) error {
	index := int(gjson.Get(data, "index").Int())
	blockType := gjson.Get(data, "content_block.type").String()

	var kind transcript.BlockKind
	var toolID, toolName string
	switch blockType {
	case "text":
		kind = transcript.BlockText
	case "thinking":
		kind = transcript.BlockThinking
	case "redacted_thinking":
		kind = transcript.BlockRedactedThinking
	case "tool_use", "server_tool_use", "mcp_tool_use":
		kind = transcript.BlockToolUse
		toolID = gjson.Get(data, "content_block.id").String()
		toolName = gjson.Get(data, "content_block.name").String()
	default:
		kind = transcript.BlockText
	}

	t.blockTypes[index] = kind
	return t.emit(Event{Type: ContentBlockStart, BlockKind: kind, Index: index, ToolID: toolID, ToolName: toolName})
}

func (t *AnthropicTranslator) handleDelta(data string) error {
	index := int(gjson.Get(data, "index").Int())
	deltaType := gjson.Get(data, "delta.type").String()

	switch deltaType {
	case "text_delta":
		return t.emit(Event{Type: Delta, Index: index, DeltaKind: DeltaText, Bytes: gjson.Get(data, "delta.text").String()})
	case "thinking_delta":
		return t.emit(Event{Type: Delta, Index: index, DeltaKind: DeltaThinking, Bytes: gjson.Get(data, "delta.thinking").String()})
	case "signature_delta":
		return t.emit(Event{Type: Delta, Index: index, DeltaKind: DeltaSignature, Bytes: gjson.Get(data, "delta.signature").String()})
	case "input_json_delta":
		partial := gjson.Get(data, "delta.partial_json").String()
		if partial == "" {
			return nil
		}
		return t.emit(Event{Type: Delta, Index: index, DeltaKind: DeltaInputJSON, Bytes: partial})
	}
	return nil
}

func (t *AnthropicTranslator) handleBlockStop(data string) error {
	index := int(gjson.Get(data, "index").Int())
	kind := t.blockTypes[index]
	delete(t.blockTypes, index)
	return t.emit(Event{Type: ContentBlockStop, BlockKind: kind, Index: index})
}

func (t *AnthropicTranslator) handleMessageDelta(data string) error {
	stopReason := gjson.Get(data, "delta.stop_reason").String()
	u := &Usage{
		OutputTokens:      gjson.Get(data, "usage.output_tokens").Int(),
		InputTokens:       gjson.Get(data, "usage.input_tokens").Int(),
		CacheCreateTokens: gjson.Get(data, "usage.cache_creation_input_tokens").Int(),
		CacheReadTokens:   gjson.Get(data, "usage.cache_read_input_tokens").Int(),
	}
	return t.emit(Event{Type: MessageDelta, StopReason: stopReason, Usage: u})
}

func (t *AnthropicTranslator) emit(ev Event) error {
	if err := t.handler(ev); err != nil {
		return rterr.Wrap(rterr.InvalidState, err, "stream handler aborted")
	}
	return nil
}
