package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, input json.RawMessage) (string, error) {
	return string(input), nil
}

func errorHandler(_ context.Context, _ json.RawMessage) (string, error) {
	return "", errors.New("tool failed")
}

func newEchoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "Echoes input",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	}
}

func TestNew(t *testing.T) {
	tb := New()
	assert.NotNil(t, tb)
	assert.Empty(t, tb.Tools())
}

func TestRegisterAndGet(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("a"), newEchoTool("b"))

	got, ok := tb.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name)

	_, ok = tb.Get("missing")
	assert.False(t, ok)
}

func TestRegisterReplaces(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("a"))
	tb.Register(Tool{Name: "a", Description: "replaced", Handler: echoHandler})

	got, _ := tb.Get("a")
	assert.Equal(t, "replaced", got.Description)
	assert.Len(t, tb.Tools(), 1)
}

func TestToolsSorted(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("c"), newEchoTool("a"), newEchoTool("b"))

	var names []string
	for _, tool := range tb.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestMerge(t *testing.T) {
	a := New()
	a.Register(newEchoTool("x"))
	b := New()
	b.Register(newEchoTool("y"))

	a.Merge(b)

	_, ok := a.Get("y")
	assert.True(t, ok)
	assert.Len(t, a.Tools(), 2)
}

func TestCall(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("echo"))

	out, err := tb.Call(context.Background(), "echo", json.RawMessage(`{"v":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, out)

	out, err = tb.Call(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestCallErrors(t *testing.T) {
	tb := New()
	tb.Register(Tool{Name: "fail", Handler: errorHandler})

	_, err := tb.Call(context.Background(), "fail", nil)
	require.EqualError(t, err, "tool failed")

	_, err = tb.Call(context.Background(), "missing", nil)
	require.EqualError(t, err, "tool not found: missing")
}
