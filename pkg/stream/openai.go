package stream

import (
	"github.com/tidwall/gjson"

	"github.com/riveraxe/reactcore/pkg/rterr"
	"github.com/riveraxe/reactcore/pkg/sse"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

// OpenAICompatTranslator synthesizes the normalized Event sequence out of
// the coarser OpenAI-compatible delta shape
// (choices[0].delta.{content|reasoning_content|tool_calls[]}), per spec
// §4.H: "the normalizer synthesizes block boundaries by tracking
// transitions."
//
// Grounded on pkg/providers/openai/language_model.go's openAIStream.Next,
// which decodes the same choices[0].delta envelope (content/tool_calls/
// finish_reason) but — unlike this translator — leaves streamed tool-call
// argument accumulation as a TODO and has no reasoning_content handling at
// all; both are filled in here per the synthesis rules spec §4.H spells
// out.
type OpenAICompatTranslator struct {
	handler Handler
	started bool

	reasoningIdx  int
	reasoningOpen bool
	textIdx       int
	textOpen      bool
	nextIdx       int

	// toolBlocks maps the provider's tool_calls[] slot index to the
	// synthesized block index, since OpenAI-compatible deltas identify a
	// tool call by its position in the array, not by our own Index space.
	toolBlocks map[int]int
}

// NewOpenAICompatTranslator creates a translator that forwards normalized
// events to handler.
func NewOpenAICompatTranslator(handler Handler) *OpenAICompatTranslator {
	return &OpenAICompatTranslator{handler: handler, toolBlocks: make(map[int]int)}
}

// HandleRecord processes one decoded sse.Record.
func (t *OpenAICompatTranslator) HandleRecord(rec sse.Record) error {
	if !t.started {
		t.started = true
		if err := t.emit(Event{Type: MessageStart}); err != nil {
			return err
		}
	}

	if rec.Data == "[DONE]" || rec.Event == "done" {
		return t.finish()
	}

	choice := gjson.Get(rec.Data, "choices.0")
	if !choice.Exists() {
		return nil
	}

	if reasoning := choice.Get("delta.reasoning_content"); reasoning.Exists() && reasoning.String() != "" {
		if err := t.openReasoningIfNeeded(); err != nil {
			return err
		}
		if err := t.emit(Event{Type: Delta, Index: t.reasoningIdx, DeltaKind: DeltaReasoning, Bytes: reasoning.String()}); err != nil {
			return err
		}
	}

	if content := choice.Get("delta.content"); content.Exists() && content.String() != "" {
		if err := t.closeReasoningIfOpen(); err != nil {
			return err
		}
		if err := t.openTextIfNeeded(); err != nil {
			return err
		}
		if err := t.emit(Event{Type: Delta, Index: t.textIdx, DeltaKind: DeltaText, Bytes: content.String()}); err != nil {
			return err
		}
	}

	if toolCalls := choice.Get("delta.tool_calls"); toolCalls.Exists() {
		if err := t.handleToolCallDeltas(toolCalls); err != nil {
			return err
		}
	}

	if reason := choice.Get("finish_reason"); reason.Exists() && reason.String() != "" {
		if err := t.closeOpenBlocks(); err != nil {
			return err
		}
		usage := &Usage{
			InputTokens:  gjson.Get(rec.Data, "usage.prompt_tokens").Int(),
			OutputTokens: gjson.Get(rec.Data, "usage.completion_tokens").Int(),
		}
		return t.emit(Event{Type: MessageDelta, StopReason: mapFinishReason(reason.String()), Usage: usage})
	}

	return nil
}

func (t *OpenAICompatTranslator) handleToolCallDeltas(toolCalls gjson.Result) error {
	var outerErr error
	toolCalls.ForEach(func(_, tc gjson.Result) bool {
		slot := int(tc.Get("index").Int())
		blockIdx, open := t.toolBlocks[slot]

		if !open {
			id := tc.Get("id").String()
			name := tc.Get("function.name").String()
			if id == "" {
				// Arguments-only delta for a slot never announced with an id:
				// no block is opened and these arguments are dropped.
				return true
			}
			blockIdx = t.allocBlock()
			t.toolBlocks[slot] = blockIdx
			if err := t.emit(Event{Type: ContentBlockStart, BlockKind: transcript.BlockToolUse, Index: blockIdx, ToolID: id, ToolName: name}); err != nil {
				outerErr = err
				return false
			}
		}

		if args := tc.Get("function.arguments"); args.Exists() && args.String() != "" {
			if err := t.emit(Event{Type: Delta, Index: blockIdx, DeltaKind: DeltaInputJSON, Bytes: args.String()}); err != nil {
				outerErr = err
				return false
			}
		}
		return true
	})
	return outerErr
}

func (t *OpenAICompatTranslator) openReasoningIfNeeded() error {
	if t.reasoningOpen {
		return nil
	}
	t.reasoningIdx = t.allocBlock()
	t.reasoningOpen = true
	return t.emit(Event{Type: ContentBlockStart, BlockKind: transcript.BlockReasoning, Index: t.reasoningIdx})
}

func (t *OpenAICompatTranslator) closeReasoningIfOpen() error {
	if !t.reasoningOpen {
		return nil
	}
	t.reasoningOpen = false
	return t.emit(Event{Type: ContentBlockStop, BlockKind: transcript.BlockReasoning, Index: t.reasoningIdx})
}

func (t *OpenAICompatTranslator) openTextIfNeeded() error {
	if t.textOpen {
		return nil
	}
	t.textIdx = t.allocBlock()
	t.textOpen = true
	return t.emit(Event{Type: ContentBlockStart, BlockKind: transcript.BlockText, Index: t.textIdx})
}

func (t *OpenAICompatTranslator) closeOpenBlocks() error {
	if err := t.closeReasoningIfOpen(); err != nil {
		return err
	}
	if t.textOpen {
		t.textOpen = false
		if err := t.emit(Event{Type: ContentBlockStop, BlockKind: transcript.BlockText, Index: t.textIdx}); err != nil {
			return err
		}
	}
	for slot, idx := range t.toolBlocks {
		if err := t.emit(Event{Type: ContentBlockStop, BlockKind: transcript.BlockToolUse, Index: idx}); err != nil {
			return err
		}
		delete(t.toolBlocks, slot)
	}
	return nil
}

func (t *OpenAICompatTranslator) finish() error {
	return t.emit(Event{Type: MessageStop})
}

func (t *OpenAICompatTranslator) allocBlock() int {
	idx := t.nextIdx
	t.nextIdx++
	return idx
}

func mapFinishReason(reason string) string {
	switch reason {
	case "tool_calls":
		return "tool_use"
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return reason
	}
}

func (t *OpenAICompatTranslator) emit(ev Event) error {
	if err := t.handler(ev); err != nil {
		return rterr.Wrap(rterr.InvalidState, err, "stream handler aborted")
	}
	return nil
}
