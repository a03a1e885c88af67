// Package transcript implements the typed message/content-block model and
// the per-agent transcript (spec §3, §4.C).
package transcript

// Role is one of the four message roles a transcript entry can carry.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
	RoleTool
)

// String renders the role the way providers expect it on the wire
// (spec §4.C "role_to_string").
func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleTool:
		return "tool"
	default:
		return "unknown"
	}
}

// BlockKind names the variants of ContentBlock, the sum type of §3: exactly
// one of the block kinds below is populated in a given value, and
// ContentBlock.Kind reports which.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockThinking
	BlockRedactedThinking
	BlockReasoning
	BlockToolUse
	BlockToolResult
)

// ContentBlock holds every block kind; Kind discriminates which fields are
// meaningful. Using one struct rather than an interface keeps serialization
// to/from provider wire formats a matter of switching on Kind, mirroring how
// the teacher's provider packages already branch on an Anthropic
// `content[].type` string or an OpenAI `delta` shape.
type ContentBlock struct {
	Kind BlockKind

	// Text / Thinking / Reasoning
	Text string

	// Thinking / RedactedThinking: signature/data must be echoed back to the
	// provider verbatim on the next request, or it refuses the turn (§3).
	Signature string // Thinking only
	Data      string // RedactedThinking only

	// ToolUse
	ToolUseID string
	ToolName  string
	InputJSON string

	// ToolResult
	ToolUseResultID string
	ResultContent   string
	IsError         bool
}

func TextBlock(text string) ContentBlock { return ContentBlock{Kind: BlockText, Text: text} }

func ThinkingBlock(text, signature string) ContentBlock {
	return ContentBlock{Kind: BlockThinking, Text: text, Signature: signature}
}

func RedactedThinkingBlock(data string) ContentBlock {
	return ContentBlock{Kind: BlockRedactedThinking, Data: data}
}

func ReasoningBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockReasoning, Text: text}
}

func ToolUseBlock(id, name, inputJSON string) ContentBlock {
	return ContentBlock{Kind: BlockToolUse, ToolUseID: id, ToolName: name, InputJSON: inputJSON}
}

func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolUseResultID: toolUseID, ResultContent: content, IsError: isError}
}

// Message is one transcript entry. Next links it to the message appended
// immediately after it, so a Transcript is literally the singly linked
// ordered list spec §3 describes; Transcript also keeps a tail pointer so
// Append stays O(1) instead of walking the list.
type Message struct {
	Role   Role
	Blocks []ContentBlock
	Next   *Message
}

// SimpleText reports the message's text if it is a single-Text-block
// message (spec §3 "a simple-text message has a single Text block"), and
// ok=false otherwise.
func (m *Message) SimpleText() (text string, ok bool) {
	if len(m.Blocks) != 1 || m.Blocks[0].Kind != BlockText {
		return "", false
	}
	return m.Blocks[0].Text, true
}

// ToolUses returns every ToolUse block in the message, in order.
func (m *Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Blocks {
		if b.Kind == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Transcript is the ordered, append-only sequence of messages for one
// agent. The zero value is an empty, ready-to-use transcript.
type Transcript struct {
	head, tail *Message
	count      int
}

// MessageCreate allocates a new Message with the given role and blocks,
// without appending it (spec §4.C "message_create").
func MessageCreate(role Role, blocks ...ContentBlock) *Message {
	return &Message{Role: role, Blocks: blocks}
}

// Append adds msg to the end of the transcript (spec §4.C
// "message_append"). The agent always appends, never inserts out of order
// (spec §4.C rule 1); Append enforces that by construction — there is no
// other way to grow a Transcript.
func (t *Transcript) Append(msg *Message) {
	msg.Next = nil
	if t.tail == nil {
		t.head = msg
	} else {
		t.tail.Next = msg
	}
	t.tail = msg
	t.count++
}

// Len returns the number of messages appended so far (spec testable
// property 2: "message count only increases").
func (t *Transcript) Len() int { return t.count }

// Head returns the first message, or nil if the transcript is empty.
func (t *Transcript) Head() *Message { return t.head }

// Last returns the most recently appended message, or nil if empty.
func (t *Transcript) Last() *Message { return t.tail }

// Messages materializes the transcript as a slice, in arrival order. It is
// a read-only snapshot; mutating the slice does not affect the transcript.
func (t *Transcript) Messages() []*Message {
	out := make([]*Message, 0, t.count)
	for m := t.head; m != nil; m = m.Next {
		out = append(out, m)
	}
	return out
}
