package toolbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolHandler(t *testing.T) {
	tool := Tool{
		Name:        "echo",
		Description: "Echoes input back",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}}}`),
		Handler: func(_ context.Context, input json.RawMessage) (string, error) {
			params, err := Decode[struct {
				Text string `json:"text"`
			}](input)
			if err != nil {
				return "", err
			}
			return params.Text, nil
		},
	}

	result, err := tool.Handler(context.Background(), json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestDecode(t *testing.T) {
	type in struct {
		ID string `json:"id"`
	}

	v, err := Decode[in](json.RawMessage(`{"id":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, "a", v.ID)

	v, err = Decode[in](nil)
	require.NoError(t, err)
	assert.Empty(t, v.ID)

	_, err = Decode[in](json.RawMessage(`{`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestJSON(t *testing.T) {
	s, err := JSON(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, s)

	_, err = JSON(make(chan int))
	require.Error(t, err)
}
