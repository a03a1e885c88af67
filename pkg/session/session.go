// Package session implements the top-level Session container of spec §4.B:
// the owner of a session-wide arena, its registries, its MCP clients, and
// the agents running against them, with a fixed teardown order.
//
// Grounded on the teacher's pkg/mcp.MCPClient lifecycle (Connect/Close) and
// the general "owns a mutex-guarded collection of child resources, closes
// idempotently" shape found throughout pkg/ai's settings/runtime plumbing;
// the dynamic-array-of-{agents,registries,mcp clients} bookkeeping and the
// three-register (256 KiB embedded / 4 MiB host) arena sizing are this
// module's own addition, since the teacher has no direct analog for a
// single container owning all of these at once.
package session

import (
	"sync"

	"github.com/riveraxe/reactcore/pkg/agent"
	"github.com/riveraxe/reactcore/pkg/arena"
	"github.com/riveraxe/reactcore/pkg/provider"
	"github.com/riveraxe/reactcore/pkg/registry"
	"github.com/riveraxe/reactcore/pkg/rterr"
	"github.com/riveraxe/reactcore/pkg/rtlog"
)

// HostInitialArenaSize and EmbeddedInitialArenaSize are the two platform
// defaults spec §4.B names; Go has no embedded/host distinction, so Open
// takes an explicit override and otherwise assumes the host size — the
// size a process on a general-purpose OS should use.
const (
	HostInitialArenaSize     = 4 * 1024 * 1024
	EmbeddedInitialArenaSize = 256 * 1024
)

// mcpCloser is the subset of mcpbridge.Client (or any MCP client) Session
// needs in order to run teardown step 1 (spec §4.B "disconnect and clean up
// MCP clients").
type mcpCloser interface {
	Close() error
}

// Session owns one arena, its tool registries, a set of MCP clients, and
// the agents running against them.
type Session struct {
	mu     sync.Mutex
	arena  *arena.Arena
	closed bool

	registries []*registry.Registry
	agents     []*agent.Agent
	mcpClients []mcpCloser
}

// Open allocates the session arena and its three dynamic arrays (spec
// §4.B). initialArenaSize of 0 uses HostInitialArenaSize.
func Open(initialArenaSize int) *Session {
	if initialArenaSize <= 0 {
		initialArenaSize = HostInitialArenaSize
	}
	rtlog.Infof("session: opened with arena size %d", initialArenaSize)
	return &Session{arena: arena.New(initialArenaSize)}
}

// Arena exposes the session-owned arena for callers constructing a
// registry or agent directly against it.
func (s *Session) Arena() *arena.Arena { return s.arena }

// AddRegistry registers a tool registry with the session so Close can
// account for it in the teardown order. Per spec §4.B, add_* fails with
// InvalidState once the session is closed.
func (s *Session) AddRegistry(r *registry.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return rterr.New(rterr.InvalidState, "session is closed")
	}
	s.registries = append(s.registries, r)
	return nil
}

// AddAgent registers an already-constructed agent with the session, so
// Close tears it down (and, per spec §4.B, destroys its arena) in the right
// order. Most callers should prefer NewAgent, which also creates the
// agent's own arena; AddAgent exists for callers that constructed the
// Agent (and its arena) themselves.
func (s *Session) AddAgent(a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return rterr.New(rterr.InvalidState, "session is closed")
	}
	s.agents = append(s.agents, a)
	rtlog.Infof("session: agent registered (%d total)", len(s.agents))
	return nil
}

// NewAgent creates an Agent over its own freshly-allocated arena (spec §4.B
// "each Agent owns its own arena that outlives the agent's transcript") and
// registers it with the session in the same step. initialArenaSize of 0
// uses the arena package's own floor (MinBlockSize).
func (s *Session) NewAgent(cfg agent.Config, initialArenaSize int, inst provider.Instance, reg *registry.Registry) (*agent.Agent, error) {
	a := agent.New(cfg, arena.New(initialArenaSize), inst, reg)
	if err := s.AddAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// AddMCP registers an MCP client with the session so Close disconnects it
// before anything else is torn down.
func (s *Session) AddMCP(c mcpCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return rterr.New(rterr.InvalidState, "session is closed")
	}
	s.mcpClients = append(s.mcpClients, c)
	return nil
}

// Close tears every owned resource down in the fixed order spec §4.B
// requires: (1) disconnect MCP clients, (2) destroy each agent (releases
// its own arena), (3) destroy the session arena (releases registries,
// which are backed by it). Close is idempotent: a second call logs a
// warning and returns nil without re-running teardown.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		rtlog.Warnf("session: Close called on an already-closed session")
		return nil
	}

	var firstErr error
	for _, c := range s.mcpClients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = rterr.Wrap(rterr.IO, err, "close mcp client")
		}
	}

	for _, ag := range s.agents {
		ag.Destroy()
	}
	s.agents = nil
	s.registries = nil

	s.arena.Destroy()
	s.closed = true

	return firstErr
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
