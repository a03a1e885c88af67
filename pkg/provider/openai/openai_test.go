package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riveraxe/reactcore/pkg/provider"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

func newTranscript(msgs ...*transcript.Message) *transcript.Transcript {
	t := &transcript.Transcript{}
	for _, m := range msgs {
		t.Append(m)
	}
	return t
}

func TestBuildWireMessagesOneMessagePerTranscriptTurn(t *testing.T) {
	tr := newTranscript(
		transcript.MessageCreate(transcript.RoleUser, transcript.TextBlock("2+3")),
		transcript.MessageCreate(transcript.RoleAssistant,
			transcript.TextBlock("let me check"),
			transcript.ToolUseBlock("call_1", "calculator", `{"a":2,"b":3}`),
		),
		transcript.MessageCreate(transcript.RoleTool, transcript.ToolResultBlock("call_1", `{"result":5}`, false)),
	)

	out := buildWireMessages(tr)
	require.Len(t, out, tr.Len())
	require.Len(t, out, 3)

	assert.Equal(t, "user", out[0].Role)
	require.NotNil(t, out[0].Content)
	assert.Equal(t, "2+3", *out[0].Content)

	assert.Equal(t, "assistant", out[1].Role)
	require.NotNil(t, out[1].Content)
	assert.Equal(t, "let me check", *out[1].Content)
	require.Len(t, out[1].ToolCalls, 1)
	assert.Equal(t, "call_1", out[1].ToolCalls[0].ID)
	assert.Equal(t, "calculator", out[1].ToolCalls[0].Function.Name)

	assert.Equal(t, "tool", out[2].Role)
	assert.Equal(t, "call_1", out[2].ToolCallID)
}

func TestBuildWireMessagesToolCallOnlyAssistantTurnHasNullContent(t *testing.T) {
	tr := newTranscript(
		transcript.MessageCreate(transcript.RoleAssistant,
			transcript.ToolUseBlock("call_1", "search", `{"q":"x"}`),
		),
	)

	out := buildWireMessages(tr)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Content)

	raw, err := json.Marshal(out[0])
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "null", string(decoded["content"]), "content key must be present and explicitly null")
}

func TestBuildWireMessagesMultipleToolCallsAccumulateOnOneMessage(t *testing.T) {
	tr := newTranscript(
		transcript.MessageCreate(transcript.RoleAssistant,
			transcript.ToolUseBlock("call_1", "search", `{"q":"a"}`),
			transcript.ToolUseBlock("call_2", "search", `{"q":"b"}`),
		),
	)

	out := buildWireMessages(tr)
	require.Len(t, out, 1)
	require.Len(t, out[0].ToolCalls, 2)
	assert.Equal(t, "call_1", out[0].ToolCalls[0].ID)
	assert.Equal(t, "call_2", out[0].ToolCalls[1].ID)
}

func TestResponseToChatResponseToolCalls(t *testing.T) {
	var resp wireResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"choices": [{
			"message": {"tool_calls": [{"id":"call_1","type":"function","function":{"name":"search","arguments":"{\"q\":\"x\"}"}}]},
			"finish_reason": "tool_calls"
		}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1}
	}`), &resp))

	out := responseToChatResponse(resp)
	assert.Equal(t, provider.StopToolUse, out.StopReason)
	require.Len(t, out.Blocks, 1)
	assert.Equal(t, transcript.BlockToolUse, out.Blocks[0].Kind)
}

func TestChatRoundTripsAgainstFakeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "hi"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1}
		}`))
	}))
	defer srv.Close()

	b := Backend.(backend)
	inst, err := b.Create(provider.LLMParams{Model: "gpt-4o", APIKey: "test-key", APIBase: srv.URL})
	require.NoError(t, err)

	tr := newTranscript(transcript.MessageCreate(transcript.RoleUser, transcript.TextBlock("hi")))

	resp, err := inst.Chat(context.Background(), tr, "")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.TextOnly())
	assert.Equal(t, provider.StopEndTurn, resp.StopReason)
}

func TestCreateRequiresAPIBase(t *testing.T) {
	b := Backend.(backend)
	_, err := b.Create(provider.LLMParams{Model: "gpt-4o"})
	assert.Error(t, err)
}
