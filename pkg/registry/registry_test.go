package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riveraxe/reactcore/pkg/arena"
)

func newTestRegistry() *Registry {
	return New(arena.New(4096))
}

func TestAddAndFind(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Add(Tool{
		Name:        "search",
		Description: "search the web",
		Execute: func(ctx context.Context, argsJSON string) (string, error) {
			return `{"ok":true}`, nil
		},
	}))

	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Find("search"))
	assert.Nil(t, r.Find("missing"))
}

func TestAddDuplicateIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	calls := 0
	first := Tool{Name: "dup", Execute: func(ctx context.Context, argsJSON string) (string, error) {
		calls++
		return "{}", nil
	}}
	second := Tool{Name: "dup", Execute: func(ctx context.Context, argsJSON string) (string, error) {
		calls += 100
		return "{}", nil
	}}

	require.NoError(t, r.Add(first))
	require.NoError(t, r.Add(second))
	assert.Equal(t, 1, r.Count())

	_, err := r.Call(context.Background(), "dup", "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "the first registration must win, not the duplicate")
}

func TestCallEmptyArgsDefaultsToEmptyObject(t *testing.T) {
	r := newTestRegistry()
	var seen string
	require.NoError(t, r.Add(Tool{
		Name: "echo_args",
		Execute: func(ctx context.Context, argsJSON string) (string, error) {
			seen = argsJSON
			return "{}", nil
		},
	}))

	_, err := r.Call(context.Background(), "echo_args", "")
	require.NoError(t, err)
	assert.Equal(t, "{}", seen)
}

func TestCallNullResultBecomesErrorJSON(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Add(Tool{
		Name: "nuller",
		Execute: func(ctx context.Context, argsJSON string) (string, error) {
			return "", nil
		},
	}))

	result, err := r.Call(context.Background(), "nuller", "{}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Tool returned NULL"}`, result)
}

func TestCallToolErrorSurfacesAsJSONNotLoopFailure(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Add(Tool{
		Name: "boom",
		Execute: func(ctx context.Context, argsJSON string) (string, error) {
			return "", errors.New("network unreachable")
		},
	}))

	result, err := r.Call(context.Background(), "boom", "{}")
	require.NoError(t, err, "tool errors must never propagate as a Go error from Call")

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(result), &parsed))
	assert.Contains(t, parsed["error"], "network unreachable")
}

func TestCallUnknownToolIsRegistryError(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Call(context.Background(), "nope", "{}")
	assert.Error(t, err)
}

func TestSchemaFallsBackToEmptyObjectParameters(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Add(Tool{Name: "no_params", Description: "d"}))

	schema, err := r.Schema()
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(schema), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "function", decoded[0]["type"])

	fn := decoded[0]["function"].(map[string]interface{})
	assert.Equal(t, "no_params", fn["name"])
	params := fn["parameters"].(map[string]interface{})
	assert.Equal(t, "object", params["type"])
}

func TestSchemaPreservesProvidedParameters(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Add(Tool{
		Name:       "typed",
		Parameters: json.RawMessage(`{"type":"object","properties":{"x":{"type":"number"}}}`),
	}))

	schema, err := r.Schema()
	require.NoError(t, err)
	assert.Contains(t, schema, `"x"`)
}

func TestAddRejectsMalformedParameterSchema(t *testing.T) {
	r := newTestRegistry()
	err := r.Add(Tool{
		Name:       "bad_schema",
		Parameters: json.RawMessage(`{"type":"not-a-real-type"}`),
	})
	require.Error(t, err)
	assert.Equal(t, 0, r.Count())
}

func TestCallRejectsArgsNotMatchingSchema(t *testing.T) {
	r := newTestRegistry()
	called := false
	require.NoError(t, r.Add(Tool{
		Name:       "typed",
		Parameters: json.RawMessage(`{"type":"object","properties":{"x":{"type":"number"}},"required":["x"]}`),
		Execute: func(ctx context.Context, argsJSON string) (string, error) {
			called = true
			return `{"ok":true}`, nil
		},
	}))

	result, err := r.Call(context.Background(), "typed", `{"x":"not a number"}`)
	require.NoError(t, err)
	assert.False(t, called, "a schema-violating call must not reach Execute")
	assert.Contains(t, result, "error")
}

func TestCallAllowsArgsMatchingSchema(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Add(Tool{
		Name:       "typed",
		Parameters: json.RawMessage(`{"type":"object","properties":{"x":{"type":"number"}},"required":["x"]}`),
		Execute: func(ctx context.Context, argsJSON string) (string, error) {
			return `{"ok":true}`, nil
		},
	}))

	result, err := r.Call(context.Background(), "typed", `{"x":5}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, result)
}

func TestCallPassesMalformedJSONThroughToTool(t *testing.T) {
	r := newTestRegistry()
	var seenArgs string
	require.NoError(t, r.Add(Tool{
		Name:       "typed",
		Parameters: json.RawMessage(`{"type":"object","properties":{"x":{"type":"number"}}}`),
		Execute: func(ctx context.Context, argsJSON string) (string, error) {
			seenArgs = argsJSON
			return `{"error":"could not parse"}`, nil
		},
	}))

	_, err := r.Call(context.Background(), "typed", `not json at all`)
	require.NoError(t, err)
	assert.Equal(t, "not json at all", seenArgs, "malformed JSON must reach the tool raw, per spec")
}

type fakeMCPClient struct {
	connected bool
	tools     []struct{ name, desc string }
	calls     []string
}

func (f *fakeMCPClient) IsConnected() bool { return f.connected }
func (f *fakeMCPClient) ToolCount() int    { return len(f.tools) }
func (f *fakeMCPClient) GetToolInfo(index int) (string, string, json.RawMessage, error) {
	t := f.tools[index]
	return t.name, t.desc, nil, nil
}
func (f *fakeMCPClient) CallTool(ctx context.Context, name, argsJSON string) (string, error) {
	f.calls = append(f.calls, name)
	return `{"via":"mcp"}`, nil
}

func TestAddMCPRegistersEachDiscoveredTool(t *testing.T) {
	client := &fakeMCPClient{connected: true, tools: []struct{ name, desc string }{
		{"remote_one", "first"},
		{"remote_two", "second"},
	}}

	r := newTestRegistry()
	require.NoError(t, r.AddMCP(client))
	assert.Equal(t, 2, r.Count())

	result, err := r.Call(context.Background(), "remote_one", "{}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"via":"mcp"}`, result)
	assert.Equal(t, []string{"remote_one"}, client.calls)
}
