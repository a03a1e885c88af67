package mcpbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	Method string          `json:"method"`
	ID     int64           `json:"id"`
	Params json.RawMessage `json:"params"`
}

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result json.RawMessage
		switch req.Method {
		case "initialize":
			result = json.RawMessage(`{"protocolVersion":"2024-11-05"}`)
		case "tools/list":
			result = json.RawMessage(`{"tools":[{"name":"weather","description":"get weather","inputSchema":{"type":"object"}}]}`)
		case "tools/call":
			result = json.RawMessage(`{"content":[{"type":"text","text":"{\"temp\":72}"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestConnectDiscoversTools(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.Close()

	c := New(Config{ServerURL: srv.URL})
	require.NoError(t, c.Connect(context.Background()))

	assert.True(t, c.IsConnected())
	require.Equal(t, 1, c.ToolCount())

	name, desc, params, err := c.GetToolInfo(0)
	require.NoError(t, err)
	assert.Equal(t, "weather", name)
	assert.Equal(t, "get weather", desc)
	assert.Contains(t, string(params), "object")
}

func TestCallToolFlattensContent(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.Close()

	c := New(Config{ServerURL: srv.URL})
	require.NoError(t, c.Connect(context.Background()))

	result, err := c.CallTool(context.Background(), "weather", `{"city":"nyc"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"temp":72}`, result)
}

func TestCallToolBeforeConnectFails(t *testing.T) {
	c := New(Config{ServerURL: "http://unused"})
	_, err := c.CallTool(context.Background(), "weather", "{}")
	assert.Error(t, err)
}

func TestGetToolInfoOutOfRange(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.Close()

	c := New(Config{ServerURL: srv.URL})
	require.NoError(t, c.Connect(context.Background()))

	_, _, _, err := c.GetToolInfo(5)
	assert.Error(t, err)
}
