package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/engine"
	"github.com/germanamz/mmpa/pkg/paramtree"
	"github.com/germanamz/mmpa/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, names ...string) *anchors.Store {
	t.Helper()

	store := anchors.New(anchors.Options{})
	for _, name := range names {
		_, err := store.Create(anchors.NewAnchor{Name: name, Tree: paramtree.Tree{"level": 0.5}})
		require.NoError(t, err)
	}

	return store
}

func setupTestClient(t *testing.T, tools ...toolbox.Tool) *mcp.ClientSession {
	t.Helper()

	s := New("test-server", "1.0.0", Options{})
	s.Register(tools...)

	return connect(t, s)
}

// connect runs s over in-memory transports and returns a client session
// bound to the test's lifetime.
func connect(t *testing.T, s *MCPServer) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- s.run(ctx, serverTransport)
	}()
	t.Cleanup(func() {
		cancel()
		<-serverDone
	})

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func TestNew(t *testing.T) {
	s := New("srv", "1.0.0", Options{})
	assert.NotNil(t, s.server)
	assert.NotNil(t, s.logger)
}

func TestListTools(t *testing.T) {
	tb := newTestStore(t).Tools("test")
	session := setupTestClient(t, tb.Tools()...)

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Tools, len(tb.Tools()))

	toolsByName := make(map[string]*mcp.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		toolsByName[tool.Name] = tool
	}

	get, ok := toolsByName["test_anchors_get"]
	require.True(t, ok)
	assert.Equal(t, "Get a full anchor, including its parameter tree.", get.Description)
	assert.Contains(t, toolsByName, "test_anchors_list")
}

func TestToolCallSuccess(t *testing.T) {
	session := setupTestClient(t, newTestStore(t, "dawn", "dusk").Tools("test").Tools()...)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "test_anchors_list",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	var listed []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "dawn", listed[0].Name)
	assert.Equal(t, "dusk", listed[1].Name)
}

func TestToolCallHandlerError(t *testing.T) {
	session := setupTestClient(t, newTestStore(t).Tools("test").Tools()...)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "test_anchors_get",
		Arguments: map[string]any{"id": "nope"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "anchor not found: nope", tc.Text)
}

func TestToolCallNotFound(t *testing.T) {
	session := setupTestClient(t)

	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "missing",
		Arguments: map[string]any{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestContextCancellation(t *testing.T) {
	s := New("srv", "1.0.0", Options{})
	serverTransport, _ := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.run(ctx, serverTransport)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineToolBox(t *testing.T) {
	eng, err := engine.New(context.Background(), engine.Config{Storage: engine.StorageConfig{Backend: engine.BackendMemory}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	s := New("mmpa", "test", Options{Instructions: "Drive the morph engine."})
	s.RegisterToolBox(eng.Tools())
	session := connect(t, s)
	ctx := context.Background()

	listed, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, listed.Tools, len(eng.Tools().Tools()))

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "mmpa_state_get", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "mmpa_state_set",
		Arguments: map[string]any{"tree": map[string]any{"level": 0.25}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "mmpa_capture", Arguments: map[string]any{"name": "from mcp"}})
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, 1, eng.Anchors().Len())
	assert.Equal(t, "from mcp", eng.Anchors().List()[0].Name)
}
