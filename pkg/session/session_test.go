package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riveraxe/reactcore/pkg/agent"
	"github.com/riveraxe/reactcore/pkg/provider"
	"github.com/riveraxe/reactcore/pkg/registry"
	"github.com/riveraxe/reactcore/pkg/transcript"
)

type fakeMCP struct {
	closed  bool
	onClose func()
}

func (f *fakeMCP) Close() error {
	f.closed = true
	if f.onClose != nil {
		f.onClose()
	}
	return nil
}

type fakeProvider struct{}

func (fakeProvider) Chat(ctx context.Context, t *transcript.Transcript, toolsSchema string) (*provider.ChatResponse, error) {
	return &provider.ChatResponse{StopReason: provider.StopEndTurn, Blocks: []transcript.ContentBlock{transcript.TextBlock("ok")}}, nil
}

func (fakeProvider) ChatStream(ctx context.Context, t *transcript.Transcript, toolsSchema string, h provider.StreamEventHandler) (*provider.ChatResponse, error) {
	return nil, nil
}

func (fakeProvider) Cleanup() error { return nil }

func TestOpenUsesHostDefaultWhenZero(t *testing.T) {
	s := Open(0)
	defer s.Close()
	stats := s.Arena().Stats()
	assert.Equal(t, HostInitialArenaSize, stats.TotalCapacity)
}

func TestAddAfterCloseFails(t *testing.T) {
	s := Open(4096)
	require.NoError(t, s.Close())

	err := s.AddRegistry(registry.New(s.Arena()))
	assert.Error(t, err)
}

func TestCloseDisconnectsMCPClientsBeforeDestroyingArena(t *testing.T) {
	s := Open(4096)
	mcp := &fakeMCP{}
	arenaAliveAtMCPClose := false
	mcp.onClose = func() { arenaAliveAtMCPClose = s.Arena().Stats().BlockCount > 0 }
	require.NoError(t, s.AddMCP(mcp))

	require.NoError(t, s.Close())
	assert.True(t, mcp.closed)
	assert.True(t, arenaAliveAtMCPClose, "the session arena must still be alive when MCP clients close")
	assert.Equal(t, 0, s.Arena().Stats().BlockCount)
	assert.True(t, s.Closed())
}

func TestCloseIsIdempotent(t *testing.T) {
	s := Open(4096)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "a second Close must not error")
}

func TestNewAgentGivesEachAgentItsOwnArena(t *testing.T) {
	s := Open(4096)
	defer s.Close()

	a1, err := s.NewAgent(agent.Config{}, 4096, fakeProvider{}, nil)
	require.NoError(t, err)
	a2, err := s.NewAgent(agent.Config{}, 4096, fakeProvider{}, nil)
	require.NoError(t, err)

	assert.NotSame(t, s.Arena(), a1.Arena())
	assert.NotSame(t, a1.Arena(), a2.Arena())
}

func TestCloseDestroysEachAgentsArena(t *testing.T) {
	s := Open(4096)
	a1, err := s.NewAgent(agent.Config{}, 4096, fakeProvider{}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Panics(t, func() { a1.Arena().Alloc(8) })
}
