// Package mcpbridge implements a Model Context Protocol client narrow enough
// to satisfy the registry.MCPClient contract of spec §4.E: connect, discover
// tools once, and forward call_tool requests over JSON-RPC 2.0.
//
// Grounded on the teacher's pkg/mcp package: the JSON-RPC envelope
// (MCPMessage/MCPError/error codes) comes from pkg/mcp/types.go, the
// "tools/list" and "tools/call" method names and params/result shapes come
// from pkg/mcp/client.go's ListTools/CallTool, and the HTTP request/response
// cycle is adapted from pkg/mcp/http_transport.go. Unlike the teacher's
// MCPClient, this bridge is synchronous request/response only (HTTP already
// pairs one response to one request, so the teacher's goroutine receive
// loop and pending-request map have no work to do here) and it exposes only
// the four operations spec §4.E names, not the teacher's full
// resources/prompts surface.
package mcpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/riveraxe/reactcore/pkg/rterr"
)

const protocolVersion = "2024-11-05"

// rpcMessage is the JSON-RPC 2.0 envelope, grounded on pkg/mcp.MCPMessage.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolInfo mirrors pkg/mcp.MCPTool.
type toolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type listToolsResult struct {
	Tools []toolInfo `json:"tools"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callToolResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Config configures a Client (spec §4.E / SPEC_FULL.md ambient config).
type Config struct {
	ServerURL     string
	ClientName    string
	ClientVersion string
	Timeout       time.Duration
}

// Client is an HTTP-transported MCP client. Connect performs the initialize
// handshake and caches the server's tool list; thereafter the client
// satisfies registry.MCPClient against that cached list, matching spec
// §4.E's "connection lifecycle is the MCP client's concern; the bridge does
// not reconnect."
type Client struct {
	cfg    Config
	http   *http.Client
	nextID int64

	connected bool
	tools     []toolInfo
}

// New creates a disconnected Client.
func New(cfg Config) *Client {
	if cfg.ClientName == "" {
		cfg.ClientName = "reactcore-mcp-client"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "1.0.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Connect performs the MCP initialize handshake and discovers the server's
// tool list in one round trip each.
func (c *Client) Connect(ctx context.Context) error {
	initParams := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]string{
			"name":    c.cfg.ClientName,
			"version": c.cfg.ClientVersion,
		},
	}
	if _, err := c.call(ctx, "initialize", initParams); err != nil {
		return rterr.Wrap(rterr.NotConnected, err, "mcp initialize")
	}
	c.connected = true

	var result listToolsResult
	raw, err := c.call(ctx, "tools/list", map[string]interface{}{})
	if err != nil {
		return rterr.Wrap(rterr.Protocol, err, "mcp tools/list")
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return rterr.Wrap(rterr.Parse, err, "decode tools/list result")
	}
	c.tools = result.Tools
	return nil
}

// Close marks the client disconnected. The underlying http.Client has no
// persistent connection to tear down.
func (c *Client) Close() error {
	c.connected = false
	return nil
}

// IsConnected implements registry.MCPClient.
func (c *Client) IsConnected() bool { return c.connected }

// ToolCount implements registry.MCPClient.
func (c *Client) ToolCount() int { return len(c.tools) }

// GetToolInfo implements registry.MCPClient.
func (c *Client) GetToolInfo(index int) (name, description string, parameters json.RawMessage, err error) {
	if index < 0 || index >= len(c.tools) {
		return "", "", nil, rterr.New(rterr.InvalidArg, "tool index %d out of range [0,%d)", index, len(c.tools))
	}
	t := c.tools[index]
	return t.Name, t.Description, t.InputSchema, nil
}

// CallTool implements registry.MCPClient, invoking "tools/call" and
// flattening the MCP content-array result down to the plain JSON string the
// registry contract expects.
func (c *Client) CallTool(ctx context.Context, name, argsJSON string) (string, error) {
	if !c.connected {
		return "", rterr.New(rterr.NotConnected, "mcp client is not connected")
	}

	var args json.RawMessage = []byte(argsJSON)
	if argsJSON == "" {
		args = []byte("{}")
	}

	raw, err := c.call(ctx, "tools/call", callToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", rterr.Wrap(rterr.Backend, err, "mcp tools/call %q", name)
	}

	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", rterr.Wrap(rterr.Parse, err, "decode tools/call result for %q", name)
	}

	if len(result.Content) == 0 {
		if result.IsError {
			return `{"error":"mcp tool call failed"}`, nil
		}
		return "{}", nil
	}
	return result.Content[0].Text, nil
}

// call performs one synchronous JSON-RPC request over HTTP POST.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "marshal params for %s", method)
	}

	req := rpcMessage{
		JSONRPC: "2.0",
		ID:      atomic.AddInt64(&c.nextID, 1),
		Method:  method,
		Params:  paramsJSON,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "marshal request for %s", method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL, bytes.NewReader(body))
	if err != nil {
		return nil, rterr.Wrap(rterr.InvalidArg, err, "build request for %s", method)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, rterr.Wrap(rterr.Network, err, "mcp request %s", method)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, rterr.New(rterr.HTTP, "mcp server returned status %d for %s", resp.StatusCode, method)
	}

	var rpcResp rpcMessage
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, rterr.Wrap(rterr.Parse, err, "decode response for %s", method)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("mcp error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
