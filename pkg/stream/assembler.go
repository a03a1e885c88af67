package stream

import (
	"github.com/riveraxe/reactcore/pkg/rterr"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

// Assembler folds a normalized event sequence back into a single
// transcript message plus usage/stop-reason, the way both provider
// backends reconstitute a final provider.ChatResponse once MessageStop
// fires (spec §4.H "flushes accumulated blocks into the final
// ChatResponse").
type Assembler struct {
	blocks     map[int]*blockAccum
	order      []int
	stopReason string
	usage      Usage
	done       bool
}

type blockAccum struct {
	kind     transcript.BlockKind
	text     string
	signature string
	data     string
	toolID   string
	toolName string
	input    string
}

// NewAssembler creates an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{blocks: make(map[int]*blockAccum)}
}

// Handle folds one Event into the assembler's accumulated state. Pass this
// as (or chain it into) the Handler given to a provider's streaming path.
func (a *Assembler) Handle(ev Event) error {
	switch ev.Type {
	case MessageStart:
		// no accumulator state needed beyond marking the stream opened
	case ContentBlockStart:
		a.blocks[ev.Index] = &blockAccum{kind: ev.BlockKind, toolID: ev.ToolID, toolName: ev.ToolName}
		a.order = append(a.order, ev.Index)
	case Delta:
		b := a.blocks[ev.Index]
		if b == nil {
			return rterr.New(rterr.Protocol, "delta for unopened block index %d", ev.Index)
		}
		switch ev.DeltaKind {
		case DeltaText:
			b.text += ev.Bytes
		case DeltaThinking:
			b.text += ev.Bytes
		case DeltaSignature:
			b.signature += ev.Bytes
		case DeltaInputJSON:
			b.input += ev.Bytes
		case DeltaReasoning:
			b.text += ev.Bytes
		}
	case ContentBlockStop:
		// accumulation is already complete; nothing further to do
	case MessageDelta:
		if ev.StopReason != "" {
			a.stopReason = ev.StopReason
		}
		if ev.Usage != nil {
			a.usage = *ev.Usage
		}
	case MessageStop:
		a.done = true
	case Error:
		return rterr.New(rterr.Backend, "%s: %s", ev.ErrType, ev.ErrMsg)
	}
	return nil
}

// Blocks materializes the accumulated content blocks in the order their
// ContentBlockStart events arrived.
func (a *Assembler) Blocks() []transcript.ContentBlock {
	out := make([]transcript.ContentBlock, 0, len(a.order))
	for _, idx := range a.order {
		b := a.blocks[idx]
		switch b.kind {
		case transcript.BlockText:
			out = append(out, transcript.TextBlock(b.text))
		case transcript.BlockThinking:
			out = append(out, transcript.ThinkingBlock(b.text, b.signature))
		case transcript.BlockRedactedThinking:
			out = append(out, transcript.RedactedThinkingBlock(b.data))
		case transcript.BlockReasoning:
			out = append(out, transcript.ReasoningBlock(b.text))
		case transcript.BlockToolUse:
			input := b.input
			if input == "" {
				input = "{}"
			}
			out = append(out, transcript.ToolUseBlock(b.toolID, b.toolName, input))
		}
	}
	return out
}

// StopReason returns the terminal stop reason reported by MessageDelta.
func (a *Assembler) StopReason() string { return a.stopReason }

// Usage returns the accumulated token usage reported by MessageDelta.
func (a *Assembler) Usage() Usage { return a.usage }

// Done reports whether MessageStop has been observed.
func (a *Assembler) Done() bool { return a.done }
