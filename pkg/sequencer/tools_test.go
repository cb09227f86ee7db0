package sequencer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryTools(t *testing.T) {
	h := newHarness(t)
	tb := h.lib.Tools("mmpa")
	ctx := context.Background()

	out, err := tb.Call(ctx, "mmpa_sequences_create", json.RawMessage(`{"name":"tour","steps":[{"anchorId":"a","duration":1000,"pauseAfter":200}]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"seq-1","name":"tour","steps":1,"loop":false}`, out)

	_, err = tb.Call(ctx, "mmpa_sequences_add_step", json.RawMessage(`{"id":"seq-1","step":{"anchorId":"b","duration":500}}`))
	require.NoError(t, err)

	out, err = tb.Call(ctx, "mmpa_sequences_get", json.RawMessage(`{"id":"seq-1"}`))
	require.NoError(t, err)
	var got Sequence
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Steps, 2)
	assert.Equal(t, 500*ms, got.Steps[1].Duration)

	_, err = tb.Call(ctx, "mmpa_sequences_remove_step", json.RawMessage(`{"id":"seq-1","index":5}`))
	require.Error(t, err)

	exported, err := tb.Call(ctx, "mmpa_sequences_export", json.RawMessage(`{"id":"seq-1"}`))
	require.NoError(t, err)
	in, _ := json.Marshal(map[string]json.RawMessage{"sequence": json.RawMessage(exported)})
	out, err = tb.Call(ctx, "mmpa_sequences_import", in)
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"seq-2"`)

	out, err = tb.Call(ctx, "mmpa_sequences_list", nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"seq-2"`)

	_, err = tb.Call(ctx, "mmpa_sequences_delete", json.RawMessage(`{"id":"seq-1"}`))
	require.NoError(t, err)
	_, err = tb.Call(ctx, "mmpa_sequences_get", json.RawMessage(`{"id":"seq-1"}`))
	require.EqualError(t, err, "sequence not found: seq-1")
}

func TestPlayerTools(t *testing.T) {
	h := newHarness(t)
	a := h.anchor(t, "A", 0)
	seq := h.lib.Create(NewSequence{Name: "tour", Steps: steps(1000*ms, 0, a, a)})
	tb := h.player.Tools("mmpa")
	ctx := context.Background()

	_, err := tb.Call(ctx, "mmpa_playback_pause", nil)
	require.EqualError(t, err, "nothing is playing or already paused")

	in, _ := json.Marshal(map[string]any{"id": seq.ID, "loop": true})
	_, err = tb.Call(ctx, "mmpa_playback_play", in)
	require.NoError(t, err)

	_, err = tb.Call(ctx, "mmpa_playback_skip", json.RawMessage(`{"direction":"next"}`))
	require.NoError(t, err)
	_, err = tb.Call(ctx, "mmpa_playback_skip", json.RawMessage(`{"direction":"sideways"}`))
	require.Error(t, err)

	out, err := tb.Call(ctx, "mmpa_playback_status", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"isPlaying":true,"isPaused":false,"currentSequenceId":"seq-1","currentSequence":"tour","currentStep":2,"totalSteps":2,"loopEnabled":true,"shuffle":false,"timeRemainingMs":1000}`, out)

	_, err = tb.Call(ctx, "mmpa_playback_shuffle", json.RawMessage(`{"enabled":true}`))
	require.NoError(t, err)
	assert.True(t, h.player.Status().Shuffle)

	_, err = tb.Call(ctx, "mmpa_playback_stop", nil)
	require.NoError(t, err)

	_, err = tb.Call(ctx, "mmpa_playback_play", json.RawMessage(`{"id":"missing"}`))
	require.Error(t, err)
}

func TestAutoTools(t *testing.T) {
	h := newHarness(t)
	h.anchor(t, "A", 0)
	tb := h.auto.Tools("mmpa")
	ctx := context.Background()

	_, err := tb.Call(ctx, "mmpa_auto_start", json.RawMessage(`{"minDuration":200,"maxDuration":400,"pauseBetween":0}`))
	require.NoError(t, err)

	cfg := h.auto.Config()
	assert.Equal(t, 200*ms, cfg.MinDuration)
	assert.Equal(t, 400*ms, cfg.MaxDuration)
	assert.Zero(t, cfg.PauseBetween)
	assert.True(t, cfg.AvoidRepeats, "omitted fields keep their defaults")

	_, err = tb.Call(ctx, "mmpa_auto_start", nil)
	require.Error(t, err)

	_, err = tb.Call(ctx, "mmpa_auto_stop", nil)
	require.NoError(t, err)
	_, err = tb.Call(ctx, "mmpa_auto_stop", nil)
	require.Error(t, err)
}
