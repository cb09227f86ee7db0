package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/paramtree"
	"github.com/germanamz/mmpa/pkg/sequencer"
	"github.com/germanamz/mmpa/pkg/tools/toolbox"
)

// Namespace prefixes every tool the engine exposes.
const Namespace = "mmpa"

// Tools returns one ToolBox with the tools of every component plus the
// engine's own: {ns}_status, _morph_to, _morph_stop, _state_get, _state_set
// and _capture.
func (e *Engine) Tools() *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Merge(e.anchors.Tools(Namespace))
	tb.Merge(e.sequences.Tools(Namespace))
	tb.Merge(e.player.Tools(Namespace))
	tb.Merge(e.auto.Tools(Namespace))
	tb.Merge(e.signals.Tools(Namespace))

	tb.Register(
		toolbox.Tool{
			Name:        Namespace + "_status",
			Description: "Report the live morph, playback, auto mode, store sizes and signal bus.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				return toolbox.JSON(e.Status())
			},
		},
		toolbox.Tool{
			Name:        Namespace + "_morph_to",
			Description: "Morph from the current state to an anchor. Duration is in milliseconds; omitted values use the configured defaults.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"duration":{"type":"number"},"easing":{"type":"string"}},"required":["id"]}`),
			Handler:     e.handleMorphTo,
		},
		toolbox.Tool{
			Name:        Namespace + "_morph_stop",
			Description: "Stop the live morph, leaving the last rendered state in place.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				if !e.morph.IsActive() {
					return "", errors.New("no morph in progress")
				}
				e.morph.Stop()
				return "ok", nil
			},
		},
		toolbox.Tool{
			Name:        Namespace + "_state_get",
			Description: "Get the last rendered parameter tree and visual state.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler: func(_ context.Context, _ json.RawMessage) (string, error) {
				f, ok := e.Frame()
				if !ok {
					return "", ErrNoState
				}
				return toolbox.JSON(f)
			},
		},
		toolbox.Tool{
			Name:        Namespace + "_state_set",
			Description: "Replace the current state without morphing.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"tree":{"type":"object"},"visualState":{"type":"object"}},"required":["tree"]}`),
			Handler:     e.handleStateSet,
		},
		toolbox.Tool{
			Name:        Namespace + "_capture",
			Description: "Save the current state as a new anchor.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"},"description":{"type":"string"},"tags":{"type":"array","items":{"type":"string"}}}}`),
			Handler:     e.handleCapture,
		},
	)

	return tb
}

type morphToInput struct {
	ID       string   `json:"id"`
	Duration *float64 `json:"duration"`
	Easing   string   `json:"easing"`
}

type stateSetInput struct {
	Tree        paramtree.Tree `json:"tree"`
	VisualState paramtree.Tree `json:"visualState"`
}

type captureInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (e *Engine) handleMorphTo(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[morphToInput](input)
	if err != nil {
		return "", err
	}

	d := time.Duration(-1)
	if in.Duration != nil {
		d = sequencer.Millis(*in.Duration)
	}

	if !e.MorphTo(in.ID, d, in.Easing) {
		return "", fmt.Errorf("anchor not found: %s", in.ID)
	}

	return "ok", nil
}

func (e *Engine) handleStateSet(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[stateSetInput](input)
	if err != nil {
		return "", err
	}
	if in.Tree == nil {
		return "", errors.New("tree is required")
	}

	if err := e.SetState(in.Tree, in.VisualState); err != nil {
		return "", err
	}

	return "ok", nil
}

func (e *Engine) handleCapture(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[captureInput](input)
	if err != nil {
		return "", err
	}

	a, err := e.Capture(anchors.NewAnchor{Name: in.Name, Description: in.Description, Tags: in.Tags})
	if err != nil {
		return "", err
	}

	return toolbox.JSON(map[string]string{"id": a.ID, "name": a.Name})
}
