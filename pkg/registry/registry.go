// Package registry implements the tool registry (spec §4.D): an
// append-only, name-deduplicated table of callable tools that a ReACT loop
// consults to build the wire tool schema and to dispatch tool_use blocks.
//
// Grounded on the teacher's pkg/provider/types.Tool/ToolExecutor shape
// (Name/Description/Parameters/Execute), generalized from a per-Generate-call
// slice of tools into the session-scoped, arena-backed registry the spec
// calls for, and extended with the MCP-bridging add_mcp described in
// spec §4.E.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/riveraxe/reactcore/pkg/arena"
	"github.com/riveraxe/reactcore/pkg/rterr"
	"github.com/riveraxe/reactcore/pkg/rtlog"
)

// Executor runs one tool call and returns its raw (not yet wrapped) JSON
// result string, mirroring the teacher's ToolExecutor but flattened to the
// registry's args_json/result_json string contract (spec §4.D).
type Executor func(ctx context.Context, argsJSON string) (string, error)

// Tool is one registered entry.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema object, or nil for the fallback
	Execute     Executor

	compiledSchema *jsonschema.Schema // compiled from Parameters, if any
}

// MCPClient is the contract spec §4.E requires of anything passed to
// AddMCP: the registry only needs enough of an MCP client to enumerate and
// invoke its tools, never to manage its connection lifecycle.
type MCPClient interface {
	IsConnected() bool
	ToolCount() int
	GetToolInfo(index int) (name, description string, parameters json.RawMessage, err error)
	CallTool(ctx context.Context, name, argsJSON string) (string, error)
}

// Registry is a growable, name-deduplicated table of tools. Per spec §4.D
// it is backed by the owning session's arena: tool names and description
// strings are copied into that arena at registration (arena.Strdup), so they
// count against the session arena's footprint.
type Registry struct {
	arena *arena.Arena
	tools []*Tool
	byName map[string]*Tool
}

// New creates an empty registry backed by a (session-owned) arena.
func New(a *arena.Arena) *Registry {
	return &Registry{arena: a, byName: make(map[string]*Tool)}
}

// Add registers a tool. Per spec §4.D, Add is idempotent by name: if a tool
// with this name already exists, it logs a warning and returns success
// without overwriting, so two sources (e.g. a local tool and an MCP server)
// can declare overlapping names without racing to clobber each other.
func (r *Registry) Add(t Tool) error {
	if t.Name == "" {
		return rterr.New(rterr.InvalidArg, "tool name must not be empty")
	}
	if _, exists := r.byName[t.Name]; exists {
		rtlog.Warnf("registry: duplicate tool name %q ignored", t.Name)
		return nil
	}

	compiled, err := compileParameterSchema(t.Name, t.Parameters)
	if err != nil {
		return err
	}

	stored := &Tool{
		Name:           r.arena.Strdup(t.Name),
		Description:    r.arena.Strdup(t.Description),
		Parameters:     t.Parameters,
		Execute:        t.Execute,
		compiledSchema: compiled,
	}
	r.tools = append(r.tools, stored)
	r.byName[stored.Name] = stored
	return nil
}

// compileParameterSchema validates that a tool's declared Parameters is
// well-formed JSON Schema, rejecting registration outright if it is not —
// a malformed schema would otherwise only surface once a model tried to
// call the tool. Grounded on the teacher-pack's pluginsdk.compileSchema
// (haasonsaas-nexus), adapted from its config-manifest use to tool
// parameter declarations; an empty schema (the common case for
// zero-argument tools) is left uncompiled rather than treated as invalid.
func compileParameterSchema(toolName string, params json.RawMessage) (*jsonschema.Schema, error) {
	if len(params) == 0 {
		return nil, nil
	}
	compiler := jsonschema.NewCompiler()
	resource := fmt.Sprintf("tool:%s.schema.json", toolName)
	if err := compiler.AddResource(resource, bytes.NewReader(params)); err != nil {
		return nil, rterr.Wrap(rterr.InvalidArg, err, "tool %q declares invalid parameter schema", toolName)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, rterr.Wrap(rterr.InvalidArg, err, "tool %q declares invalid parameter schema", toolName)
	}
	return schema, nil
}

// AddArray registers every tool in ts in order, stopping at the first
// error (spec §4.D "add_array(null-terminated)" — a Go slice is already the
// idiomatic stand-in for a null-terminated C array).
func (r *Registry) AddArray(ts []Tool) error {
	for _, t := range ts {
		if err := r.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// AddMCP iterates every tool the MCP client currently exposes and registers
// a wrapper whose Execute closes over (client, name) and forwards the call
// (spec §4.E). It does not attempt to connect the client, and it does not
// reconnect if the client drops: connection lifecycle stays the MCP
// client's concern.
func (r *Registry) AddMCP(client MCPClient) error {
	n := client.ToolCount()
	for i := 0; i < n; i++ {
		name, desc, params, err := client.GetToolInfo(i)
		if err != nil {
			return rterr.Wrap(rterr.Protocol, err, "mcp tool info at index %d", i)
		}

		boundName := name // capture for the closure below
		if err := r.Add(Tool{
			Name:        name,
			Description: desc,
			Parameters:  params,
			Execute: func(ctx context.Context, argsJSON string) (string, error) {
				return client.CallTool(ctx, boundName, argsJSON)
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the tool registered under name, or nil if none.
func (r *Registry) Find(name string) *Tool {
	return r.byName[name]
}

// Count returns the number of registered tools.
func (r *Registry) Count() int { return len(r.tools) }

// Call looks up name and invokes its Execute, applying the normalization
// rules of spec §4.D:
//   - an empty argsJSON is treated as "{}"
//   - a nil/empty tool result is reported to the model as
//     {"error":"Tool returned NULL"}
//   - a tool execution error is never propagated as a loop failure; it is
//     turned into ordinary JSON so the model sees it as a normal observation
//     (spec §7).
//
// Call only returns a Go error for registry-level problems (unknown tool
// name); anything the tool itself does wrong comes back as a string.
func (r *Registry) Call(ctx context.Context, name, argsJSON string) (string, error) {
	t := r.Find(name)
	if t == nil {
		return "", rterr.New(rterr.NotFound, "no tool registered with name %q", name)
	}

	if argsJSON == "" {
		argsJSON = "{}"
	}

	// Schema validation only short-circuits well-formed-but-non-conforming
	// arguments. Per spec §4.I, arguments that fail to parse as JSON at all
	// still propagate to the tool as the raw string — validation is not a
	// substitute for the tool's own argument checking, only a cheaper
	// rejection for the common "wrong shape" case.
	if t.compiledSchema != nil {
		if decoded, ok := decodeJSON(argsJSON); ok {
			if err := t.compiledSchema.Validate(decoded); err != nil {
				return toolErrorJSON(fmt.Errorf("tool arguments do not match declared schema: %w", err)), nil
			}
		}
	}

	result, err := t.Execute(ctx, argsJSON)
	if err != nil {
		return toolErrorJSON(err), nil
	}
	if result == "" {
		return `{"error":"Tool returned NULL"}`, nil
	}
	return result, nil
}

// decodeJSON is the any-decoded-value step jsonschema.Schema.Validate
// expects (mirroring pluginsdk.ValidateConfig in the teacher pack); ok is
// false for malformed JSON, which the caller treats as "skip validation."
func decodeJSON(argsJSON string) (interface{}, bool) {
	var decoded interface{}
	if err := json.Unmarshal([]byte(argsJSON), &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

func toolErrorJSON(err error) string {
	b, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return `{"error":"Tool returned NULL"}`
	}
	return string(b)
}

// wireFunction is the {type, function{...}} envelope every entry of
// Schema's JSON array uses, matching OpenAI's function-calling tool shape
// (spec §4.D "schema").
type wireFunction struct {
	Type     string       `json:"type"`
	Function wireFunctionBody `json:"function"`
}

type wireFunctionBody struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// Schema renders every registered tool as the wire-format array the
// provider backends embed in a chat request (spec §4.D "schema").
func (r *Registry) Schema() (string, error) {
	out := make([]wireFunction, 0, len(r.tools))
	for _, t := range r.tools {
		params := t.Parameters
		if len(params) == 0 {
			params = emptyObjectSchema
		}
		out = append(out, wireFunction{
			Type: "function",
			Function: wireFunctionBody{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", rterr.Wrap(rterr.Parse, err, "marshal tool schema")
	}
	return string(b), nil
}
