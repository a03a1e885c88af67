// Package openai implements the OpenAI-compatible provider backend (spec
// §4.F "Provider-A"): POST {api_base}/chat/completions with Bearer auth,
// used both for OpenAI itself and for any OpenAI-wire-compatible endpoint
// (the common case for self-hosted and third-party inference servers).
//
// Grounded on the teacher's pkg/providers/openai/language_model.go: the
// request-building and response-parsing shape (messages array, tools as
// {type:"function", function:{...}}, choices[0].message.{content,
// tool_calls}, usage.{prompt_tokens,completion_tokens}) follows
// buildRequestBody/DoGenerate there, rebuilt around this module's
// provider.Backend/Instance vtable and transcript.Transcript instead of the
// teacher's GenerateOptions/types.Message.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/riveraxe/reactcore/pkg/provider"
	"github.com/riveraxe/reactcore/pkg/provider/httpx"
	"github.com/riveraxe/reactcore/pkg/rterr"
	"github.com/riveraxe/reactcore/pkg/sse"
	"github.com/riveraxe/reactcore/pkg/stream"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

const name = "openai"

type backend struct{}

// Backend is the process-registered vtable for the OpenAI-compatible
// provider (spec §4.F "declared through a static vtable").
var Backend provider.Backend = backend{}

func init() {
	provider.Register(Backend)
}

func (backend) Name() string { return name }

func (backend) Capabilities() provider.Capability {
	return provider.CapStreaming | provider.CapTools
}

func (backend) Create(params provider.LLMParams) (provider.Instance, error) {
	if params.APIBase == "" {
		return nil, rterr.New(rterr.InvalidArg, "openai: api_base is required")
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

type wireMessage struct {
	Role string `json:"role"`
	// Content has no omitempty: every wire message carries the key, and an
	// assistant message whose only content is tool calls serializes it as
	// explicit `null` (spec §4.C "Assistant messages with tool calls emit
	// content: null explicitly") rather than omitting it.
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireRequest struct {
	Model       string          `json:"model"`
	Messages    []wireMessage   `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stream      bool            `json:"stream"`
	Tools       json.RawMessage `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// buildWireMessages emits exactly one wire message per transcript Message,
// matching the OpenAI wire contract where a single assistant turn carries
// its text and every one of its tool calls together (spec §4.C); agent.go
// appends tool results as one Message per tool call, so those already map
// 1:1 onto one wire message each.
func buildWireMessages(t *transcript.Transcript) []wireMessage {
	var out []wireMessage
	for _, m := range t.Messages() {
		wm := wireMessage{Role: m.Role.String()}
		var textParts []string
		for _, b := range m.Blocks {
			switch b.Kind {
			case transcript.BlockText, transcript.BlockThinking, transcript.BlockReasoning:
				textParts = append(textParts, b.Text)
			case transcript.BlockToolUse:
				tc := wireToolCall{ID: b.ToolUseID, Type: "function"}
				tc.Function.Name = b.ToolName
				tc.Function.Arguments = b.InputJSON
				wm.ToolCalls = append(wm.ToolCalls, tc)
			case transcript.BlockToolResult:
				textParts = append(textParts, b.ResultContent)
				wm.ToolCallID = b.ToolUseResultID
			}
		}
		if len(textParts) > 0 {
			joined := strings.Join(textParts, "")
			wm.Content = &joined
		}
		out = append(out, wm)
	}
	return out
}

func (i *instance) buildRequest(t *transcript.Transcript, toolsSchema string, streamFlag bool) wireRequest {
	req := wireRequest{
		Model:    i.params.Model,
		Messages: buildWireMessages(t),
		Stream:   streamFlag,
	}
	if i.params.Temperature != 0 {
		temp := i.params.Temperature
		req.Temperature = &temp
	}
	if i.params.MaxTokens != 0 {
		mt := i.params.MaxTokens
		req.MaxTokens = &mt
	}
	if i.params.TopP != 0 {
		tp := i.params.TopP
		req.TopP = &tp
	}
	if toolsSchema != "" {
		req.Tools = json.RawMessage(toolsSchema)
		req.ToolChoice = "auto"
	}
	return req
}

func responseToChatResponse(resp wireResponse) *provider.ChatResponse {
	out := &provider.ChatResponse{
		Usage: provider.Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
	}
	if len(resp.Choices) == 0 {
		out.StopReason = provider.StopEndTurn
		return out
	}
	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		out.Blocks = append(out.Blocks, transcript.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Blocks = append(out.Blocks, transcript.ToolUseBlock(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}
	out.StopReason = mapFinishReason(choice.FinishReason)
	return out
}

func mapFinishReason(reason string) provider.StopReason {
	switch reason {
	case "tool_calls":
		return provider.StopToolUse
	case "length":
		return provider.StopMaxTokens
	default:
		return provider.StopEndTurn
	}
}

func (i *instance) Chat(ctx context.Context, t *transcript.Transcript, toolsSchema string) (*provider.ChatResponse, error) {
	req := i.buildRequest(t, toolsSchema, false)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "marshal openai request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.client.BaseURL()+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, rterr.Wrap(rterr.InvalidArg, err, "build openai request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+i.params.APIKey)

	resp, err := i.client.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, rterr.New(rterr.HTTP, "openai backend returned %d: %s", resp.StatusCode, string(data))
	}

	var wireResp wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "decode openai response")
	}

	out := responseToChatResponse(wireResp)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (i *instance) ChatStream(ctx context.Context, t *transcript.Transcript, toolsSchema string, handler provider.StreamEventHandler) (*provider.ChatResponse, error) {
	req := i.buildRequest(t, toolsSchema, true)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "marshal openai stream request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.client.BaseURL()+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, rterr.Wrap(rterr.InvalidArg, err, "build openai stream request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+i.params.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := i.client.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, rterr.New(rterr.HTTP, "openai backend returned %d: %s", resp.StatusCode, string(data))
	}

	asm := stream.NewAssembler()
	translator := stream.NewOpenAICompatTranslator(func(ev stream.Event) error {
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
			return nil, rterr.Wrap(rterr.IO, readErr, "reading openai stream")
		}
	}

	out := &provider.ChatResponse{
		Blocks: asm.Blocks(),
		StopReason: provider.StopReason(asm.StopReason()),
		Usage: provider.Usage{
			InputTokens:  asm.Usage().InputTokens,
			OutputTokens: asm.Usage().OutputTokens,
		},
	}
	if out.StopReason == "" {
		out.StopReason = provider.StopEndTurn
	}
	return out, nil
}
