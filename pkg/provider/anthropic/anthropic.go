// Package anthropic implements the Anthropic Messages provider backend
// (spec §4.F "Provider-B"): POST {api_base}/v1/messages with x-api-key
// auth, system hoisted out of the messages array, and native SSE streaming.
//
// Grounded on the teacher's pkg/providers/anthropic/language_model.go
// (buildRequestBody's system-hoisting and thinking-budget logic,
// doGenerate's content[]-to-blocks parsing) and tool_converter.go (the
// {type:"function",function:{...}} -> {name,description,input_schema}
// rewrite), rebuilt around this module's provider.Backend/Instance vtable
// and transcript.Transcript. Request assembly here follows
// sebastianxbutler-godex's pkg/backend/anthropic/translate.go in spirit
// (system parts collected separately from the message loop, then spliced in
// once) but stays on this module's struct-based wire types rather than the
// official SDK's params, and uses tidwall/sjson to patch the few fields
// (thinking, and the stream flag) that only apply
// conditionally, instead of threading another layer of *bool/omitempty
// pointers through the struct.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/riveraxe/reactcore/pkg/provider"
	"github.com/riveraxe/reactcore/pkg/provider/httpx"
	"github.com/riveraxe/reactcore/pkg/rterr"
	"github.com/riveraxe/reactcore/pkg/sse"
	"github.com/riveraxe/reactcore/pkg/stream"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

const (
	name             = "anthropic"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
	minThinkingBudget = 1024
)

type backend struct{}

// Backend is the process-registered vtable for the Anthropic provider
// (spec §4.F "declared through a static vtable"); init() registers it the
// same way the OpenAI-compatible backend does.
var Backend provider.Backend = backend{}

func init() {
	provider.Register(Backend)
}

func (backend) Name() string { return name }

func (backend) Capabilities() provider.Capability {
	return provider.CapThinking | provider.CapStreaming | provider.CapTools | provider.CapVision
}

func (backend) Create(params provider.LLMParams) (provider.Instance, error) {
	if params.APIBase == "" {
		params.APIBase = "https://api.anthropic.com"
	}
	client := httpx.New(httpx.Config{BaseURL: params.APIBase, RatePerSecond: params.RateLimitPerSecond})
	return &instance{params: params, client: client}, nil
}

type instance struct {
	params provider.LLMParams
	client *httpx.Client
}

func (i *instance) Cleanup() error { return nil }

// wire request/response shapes

type wireSystemBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// thinking / redacted_thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type wireMessage struct {
	Role    string             `json:"role"`
	Content []wireContentBlock `json:"content"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type wireRequest struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	System    []wireSystemBlock `json:"system,omitempty"`
	Messages  []wireMessage     `json:"messages"`
	Tools     []wireTool        `json:"tools,omitempty"`
}

type wireResponse struct {
	ID         string             `json:"id"`
	StopReason string             `json:"stop_reason"`
	Content    []wireContentBlock `json:"content"`
	Usage      struct {
		InputTokens              int64 `json:"input_tokens"`
		OutputTokens             int64 `json:"output_tokens"`
		CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
		CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	} `json:"usage"`
}

// openaiToolSchema is the {type:"function",function:{name,description,
// parameters}} shape registry.Schema() emits; Anthropic wants
// {name,description,input_schema} instead (spec §4.F "tool conversion").
type openaiToolSchema struct {
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

func convertTools(toolsSchema string) ([]wireTool, error) {
	if toolsSchema == "" {
		return nil, nil
	}
	var decoded []openaiToolSchema
	if err := json.Unmarshal([]byte(toolsSchema), &decoded); err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "decode tools schema for anthropic conversion")
	}
	out := make([]wireTool, 0, len(decoded))
	for _, d := range decoded {
		out = append(out, wireTool{
			Name:        d.Function.Name,
			Description: d.Function.Description,
			InputSchema: d.Function.Parameters,
		})
	}
	return out, nil
}

// hoistSystemAndMessages splits a transcript into Anthropic's top-level
// `system` field plus a messages array with no System role entries (spec
// §4.C "the first System message's text is hoisted to a top-level system
// field").
//
// Thinking blocks lacking a signature are dropped when re-serialized (spec
// §4.C "protects compatibility endpoints"); RedactedThinking/Thinking with a
// signature are echoed back verbatim, satisfying §3's "must be echoed back
// unchanged" invariant.
func hoistSystemAndMessages(t *transcript.Transcript) ([]wireSystemBlock, []wireMessage) {
	var system []wireSystemBlock
	var messages []wireMessage
	sawSystem := false

	for _, m := range t.Messages() {
		if m.Role == transcript.RoleSystem {
			if !sawSystem {
				for _, b := range m.Blocks {
					if b.Kind == transcript.BlockText {
						system = append(system, wireSystemBlock{Type: "text", Text: b.Text})
					}
				}
				sawSystem = true
			}
			continue
		}

		role := "user"
		if m.Role == transcript.RoleAssistant {
			role = "assistant"
		}

		var blocks []wireContentBlock
		for _, b := range m.Blocks {
			switch b.Kind {
			case transcript.BlockText:
				blocks = append(blocks, wireContentBlock{Type: "text", Text: b.Text})
			case transcript.BlockThinking:
				if b.Signature == "" {
					continue // dropped: unsigned thinking breaks compatibility endpoints
				}
				blocks = append(blocks, wireContentBlock{Type: "thinking", Thinking: b.Text, Signature: b.Signature})
			case transcript.BlockRedactedThinking:
				blocks = append(blocks, wireContentBlock{Type: "redacted_thinking", Data: b.Data})
			case transcript.BlockToolUse:
				input := json.RawMessage(b.InputJSON)
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, wireContentBlock{Type: "tool_use", ID: b.ToolUseID, Name: b.ToolName, Input: input})
			case transcript.BlockToolResult:
				// Tool results travel as user-role messages in Anthropic's wire
				// format even though this runtime models them with RoleTool.
				role = "user"
				blocks = append(blocks, wireContentBlock{
					Type: "tool_result", ToolUseID: b.ToolUseResultID, Content: b.ResultContent, IsError: b.IsError,
				})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		messages = append(messages, wireMessage{Role: role, Content: blocks})
	}

	return system, messages
}

func (i *instance) buildRequestJSON(t *transcript.Transcript, toolsSchema string) ([]byte, error) {
	system, messages := hoistSystemAndMessages(t)
	tools, err := convertTools(toolsSchema)
	if err != nil {
		return nil, err
	}

	maxTokens := i.params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := wireRequest{
		Model:     i.params.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
		Tools:     tools,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "marshal anthropic request")
	}

	// Thinking config is patched in with sjson rather than carried as an
	// omitempty struct field: it is one of the few fields spec §3 calls out
	// as mutable post-creation (LLMParams.Thinking), and its budget has a
	// derived floor (max(requested, 1024)) that doesn't fit a plain
	// marshal-the-struct pass.
	if i.params.Thinking.Enabled {
		budget := i.params.Thinking.BudgetTokens
		if budget < minThinkingBudget {
			budget = minThinkingBudget
		}
		body, err = sjson.SetBytes(body, "thinking.type", "enabled")
		if err != nil {
			return nil, rterr.Wrap(rterr.Parse, err, "patch thinking.type")
		}
		body, err = sjson.SetBytes(body, "thinking.budget_tokens", budget)
		if err != nil {
			return nil, rterr.Wrap(rterr.Parse, err, "patch thinking.budget_tokens")
		}
	}

	return body, nil
}

func responseToChatResponse(resp wireResponse) *provider.ChatResponse {
	out := &provider.ChatResponse{
		ID: resp.ID,
		Usage: provider.Usage{
			InputTokens:       resp.Usage.InputTokens,
			OutputTokens:      resp.Usage.OutputTokens,
			CacheCreateTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:   resp.Usage.CacheReadInputTokens,
		},
	}

	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			out.Blocks = append(out.Blocks, transcript.TextBlock(b.Text))
		case "thinking":
			out.Blocks = append(out.Blocks, transcript.ThinkingBlock(b.Thinking, b.Signature))
		case "redacted_thinking":
			out.Blocks = append(out.Blocks, transcript.RedactedThinkingBlock(b.Data))
		case "tool_use", "server_tool_use", "mcp_tool_use":
			out.Blocks = append(out.Blocks, transcript.ToolUseBlock(b.ID, b.Name, string(b.Input)))
		}
	}

	out.StopReason = mapStopReason(resp.StopReason)
	return out
}

func mapStopReason(reason string) provider.StopReason {
	switch reason {
	case "tool_use":
		return provider.StopToolUse
	case "max_tokens":
		return provider.StopMaxTokens
	case "stop_sequence":
		return provider.StopStop
	default:
		return provider.StopEndTurn
	}
}

func (i *instance) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.client.BaseURL()+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, rterr.Wrap(rterr.InvalidArg, err, "build anthropic request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", i.params.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	return httpReq, nil
}

func (i *instance) Chat(ctx context.Context, t *transcript.Transcript, toolsSchema string) (*provider.ChatResponse, error) {
	body, err := i.buildRequestJSON(t, toolsSchema)
	if err != nil {
		return nil, err
	}

	httpReq, err := i.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := i.client.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rterr.Wrap(rterr.IO, err, "read anthropic response")
	}

	if resp.StatusCode >= 400 {
		return nil, rterr.New(rterr.HTTP, "anthropic backend returned %d: %s",
			resp.StatusCode, gjson.GetBytes(data, "error.message").String())
	}

	var wireResp wireResponse
	if err := json.Unmarshal(data, &wireResp); err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "decode anthropic response")
	}

	out := responseToChatResponse(wireResp)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (i *instance) ChatStream(ctx context.Context, t *transcript.Transcript, toolsSchema string, handler provider.StreamEventHandler) (*provider.ChatResponse, error) {
	body, err := i.buildRequestJSON(t, toolsSchema)
	if err != nil {
		return nil, err
	}
	body, err = sjson.SetBytes(body, "stream", true)
	if err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "patch stream flag")
	}

	httpReq, err := i.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := i.client.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, rterr.New(rterr.HTTP, "anthropic backend returned %d: %s", resp.StatusCode, string(data))
	}

	asm := stream.NewAssembler()
	translator := stream.NewAnthropicTranslator(func(ev stream.Event) error {
		if handler != nil {
			if err := handler(ev); err != nil {
				return err
			}
		}
		return asm.Handle(ev)
	})

	decoder := sse.New(translator.HandleRecord)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := decoder.Feed(buf[:n]); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, rterr.Wrap(rterr.IO, readErr, "reading anthropic stream")
		}
	}

	out := &provider.ChatResponse{
		Blocks:     asm.Blocks(),
		StopReason: provider.StopReason(asm.StopReason()),
		Usage: provider.Usage{
			InputTokens:       asm.Usage().InputTokens,
			OutputTokens:      asm.Usage().OutputTokens,
			CacheCreateTokens: asm.Usage().CacheCreateTokens,
			CacheReadTokens:   asm.Usage().CacheReadTokens,
		},
	}
	if out.StopReason == "" {
		out.StopReason = provider.StopEndTurn
	}
	return out, nil
}
