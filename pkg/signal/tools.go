package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/germanamz/mmpa/pkg/tools/toolbox"
)

// Tools returns a ToolBox for the bus. Tool names are {namespace}_signal_info,
// _current, _set_weight, _set_enabled, _set_mode, _set_target, _start,
// _stop and _push.
func (b *Bus) Tools(namespace string) *toolbox.ToolBox {
	tb := toolbox.New()

	idSchema := json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`)

	tb.Register(
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_signal_info", namespace),
			Description: "Report the mix mode, every source with its state and weight, and the routing targets.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     b.handleInfo,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_signal_current", namespace),
			Description: "Get the current mixed signal, optionally as delivered to a routing target.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"target":{"type":"string"}}}`),
			Handler:     b.handleCurrent,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_signal_set_weight", namespace),
			Description: "Set a source weight. Values are clamped to [0,1].",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"weight":{"type":"number"}},"required":["id","weight"]}`),
			Handler:     b.handleSetWeight,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_signal_set_enabled", namespace),
			Description: "Enable or disable a source in the mix.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"enabled":{"type":"boolean"}},"required":["id","enabled"]}`),
			Handler:     b.handleSetEnabled,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_signal_set_mode", namespace),
			Description: "Set the mix mode: blend, max, sum or multiply.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"mode":{"type":"string","enum":["blend","max","sum","multiply"]}},"required":["mode"]}`),
			Handler:     b.handleSetMode,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_signal_set_target", namespace),
			Description: "Enable or disable delivery to a routing target such as morphWeights or lighting.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"target":{"type":"string"},"enabled":{"type":"boolean"}},"required":["target","enabled"]}`),
			Handler:     b.handleSetTarget,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_signal_start", namespace),
			Description: "Start a source.",
			InputSchema: idSchema,
			Handler:     b.handleStart,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_signal_stop", namespace),
			Description: "Stop a source.",
			InputSchema: idSchema,
			Handler:     b.handleStop,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_signal_push", namespace),
			Description: "Push a frame into a running push source.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"signal":{"type":"object","properties":{"bands":{"type":"object"},"spectrum":{"type":"array","items":{"type":"number"}},"quality":{"type":"number"}}}},"required":["id","signal"]}`),
			Handler:     b.handlePush,
		},
	)

	return tb
}

type sourceIDInput struct {
	ID string `json:"id"`
}

type currentInput struct {
	Target string `json:"target"`
}

type weightInput struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

type enabledInput struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

type modeInput struct {
	Mode string `json:"mode"`
}

type targetInput struct {
	Target  string `json:"target"`
	Enabled bool   `json:"enabled"`
}

type pushInput struct {
	ID     string `json:"id"`
	Signal Signal `json:"signal"`
}

func (b *Bus) handleInfo(_ context.Context, _ json.RawMessage) (string, error) {
	return toolbox.JSON(b.Info())
}

func (b *Bus) handleCurrent(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[currentInput](input)
	if err != nil {
		return "", err
	}

	if in.Target == "" {
		return toolbox.JSON(b.CurrentSignal())
	}

	sig, ok := b.SignalFor(in.Target)
	if !ok {
		return "", fmt.Errorf("target disabled: %s", in.Target)
	}

	return toolbox.JSON(sig)
}

func (b *Bus) handleSetWeight(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[weightInput](input)
	if err != nil {
		return "", err
	}

	if !b.SetSourceWeight(in.ID, in.Weight) {
		return "", fmt.Errorf("source not found: %s", in.ID)
	}

	return "ok", nil
}

func (b *Bus) handleSetEnabled(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[enabledInput](input)
	if err != nil {
		return "", err
	}

	if !b.SetSourceEnabled(in.ID, in.Enabled) {
		return "", fmt.Errorf("source not found: %s", in.ID)
	}

	return "ok", nil
}

func (b *Bus) handleSetMode(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[modeInput](input)
	if err != nil {
		return "", err
	}

	mode, err := ParseMixMode(in.Mode)
	if err != nil {
		return "", err
	}
	b.SetMixMode(mode)

	return "ok", nil
}

func (b *Bus) handleSetTarget(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[targetInput](input)
	if err != nil {
		return "", err
	}

	if in.Target == "" {
		return "", errors.New("target is required")
	}
	b.SetTargetEnabled(in.Target, in.Enabled)

	return "ok", nil
}

func (b *Bus) handleStart(ctx context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[sourceIDInput](input)
	if err != nil {
		return "", err
	}

	if _, ok := b.Source(in.ID); !ok {
		return "", fmt.Errorf("source not found: %s", in.ID)
	}
	if !b.StartSource(ctx, in.ID) {
		return "", fmt.Errorf("source unavailable: %s", in.ID)
	}

	return "ok", nil
}

func (b *Bus) handleStop(ctx context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[sourceIDInput](input)
	if err != nil {
		return "", err
	}

	if !b.StopSource(ctx, in.ID) {
		return "", fmt.Errorf("cannot stop source: %s", in.ID)
	}

	return "ok", nil
}

func (b *Bus) handlePush(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[pushInput](input)
	if err != nil {
		return "", err
	}

	if !b.Publish(in.ID, in.Signal) {
		return "", fmt.Errorf("source %s does not accept frames or is not running", in.ID)
	}

	return "ok", nil
}
