package signal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusTools(t *testing.T) {
	ctx := context.Background()
	b := NewBus(Options{})
	b.AddSource("audio", NewPush("audio"), 1)
	tb := b.Tools("mmpa")

	_, err := tb.Call(ctx, "mmpa_signal_start", json.RawMessage(`{"id":"audio"}`))
	require.NoError(t, err)

	_, err = tb.Call(ctx, "mmpa_signal_push", json.RawMessage(`{"id":"audio","signal":{"bands":{"bass":0.6},"quality":1}}`))
	require.NoError(t, err)

	_, err = tb.Call(ctx, "mmpa_signal_set_weight", json.RawMessage(`{"id":"audio","weight":0.5}`))
	require.NoError(t, err)
	_, err = tb.Call(ctx, "mmpa_signal_set_mode", json.RawMessage(`{"mode":"max"}`))
	require.NoError(t, err)

	out, err := tb.Call(ctx, "mmpa_signal_current", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bands":{"bass":0.3},"spectrum":[],"quality":1}`, out)

	_, err = tb.Call(ctx, "mmpa_signal_current", json.RawMessage(`{"target":"lighting"}`))
	require.EqualError(t, err, "target disabled: lighting")

	_, err = tb.Call(ctx, "mmpa_signal_set_target", json.RawMessage(`{"target":"lighting","enabled":true}`))
	require.NoError(t, err)
	_, err = tb.Call(ctx, "mmpa_signal_current", json.RawMessage(`{"target":"lighting"}`))
	require.NoError(t, err)

	out, err = tb.Call(ctx, "mmpa_signal_info", nil)
	require.NoError(t, err)
	var info Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Max, info.Mode)
	assert.Equal(t, []SourceInfo{{ID: "audio", Type: "audio", State: Running, Enabled: true, Weight: 0.5}}, info.Sources)
	assert.True(t, info.Targets["lighting"])

	_, err = tb.Call(ctx, "mmpa_signal_set_mode", json.RawMessage(`{"mode":"loudest"}`))
	require.Error(t, err)
	_, err = tb.Call(ctx, "mmpa_signal_set_enabled", json.RawMessage(`{"id":"missing","enabled":true}`))
	require.EqualError(t, err, "source not found: missing")

	_, err = tb.Call(ctx, "mmpa_signal_stop", json.RawMessage(`{"id":"audio"}`))
	require.NoError(t, err)
	_, err = tb.Call(ctx, "mmpa_signal_push", json.RawMessage(`{"id":"audio","signal":{}}`))
	require.Error(t, err)
}
