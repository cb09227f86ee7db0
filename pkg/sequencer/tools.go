package sequencer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/germanamz/mmpa/pkg/tools/toolbox"
)

// Tools returns a ToolBox for the library. Tool names are
// {namespace}_sequences_list, _get, _create, _add_step, _remove_step,
// _delete, _export and _import.
func (l *Library) Tools(namespace string) *toolbox.ToolBox {
	tb := toolbox.New()

	stepSchema := `{"type":"object","properties":{"anchorId":{"type":"string"},"duration":{"type":"number","description":"milliseconds"},"easing":{"type":"string"},"pauseAfter":{"type":"number","description":"milliseconds"}},"required":["anchorId","duration"]}`

	tb.Register(
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_sequences_list", namespace),
			Description: "List sequences (id, name, step count, loop).",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     l.handleList,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_sequences_get", namespace),
			Description: "Get a sequence with all of its steps.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
			Handler:     l.handleGet,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_sequences_create", namespace),
			Description: "Create a sequence. Step durations are in milliseconds.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"},"description":{"type":"string"},"loop":{"type":"boolean"},"tags":{"type":"array","items":{"type":"string"}},"steps":{"type":"array","items":` + stepSchema + `}}}`),
			Handler:     l.handleCreate,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_sequences_add_step", namespace),
			Description: "Append a step to a sequence.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"step":` + stepSchema + `},"required":["id","step"]}`),
			Handler:     l.handleAddStep,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_sequences_remove_step", namespace),
			Description: "Remove the step at a zero-based index.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"index":{"type":"integer","minimum":0}},"required":["id","index"]}`),
			Handler:     l.handleRemoveStep,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_sequences_delete", namespace),
			Description: "Delete a sequence by id.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
			Handler:     l.handleDelete,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_sequences_export", namespace),
			Description: "Export one sequence as JSON, or all sequences when id is omitted.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}}}`),
			Handler:     l.handleExport,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_sequences_import", namespace),
			Description: "Import a sequence from its exported JSON. A new id is assigned.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"sequence":{"type":"object"}},"required":["sequence"]}`),
			Handler:     l.handleImport,
		},
	)

	return tb
}

type seqIDInput struct {
	ID string `json:"id"`
}

type createInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Loop        bool     `json:"loop"`
	Tags        []string `json:"tags"`
	Steps       []Step   `json:"steps"`
}

type addStepInput struct {
	ID   string `json:"id"`
	Step Step   `json:"step"`
}

type removeStepInput struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

type seqImportInput struct {
	Sequence json.RawMessage `json:"sequence"`
}

type seqSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps int    `json:"steps"`
	Loop  bool   `json:"loop"`
}

func summarize(s Sequence) seqSummary {
	return seqSummary{ID: s.ID, Name: s.Name, Steps: len(s.Steps), Loop: s.Loop}
}

func (l *Library) handleList(_ context.Context, _ json.RawMessage) (string, error) {
	all := l.List()
	out := make([]seqSummary, 0, len(all))
	for _, s := range all {
		out = append(out, summarize(s))
	}

	return toolbox.JSON(out)
}

func (l *Library) handleGet(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[seqIDInput](input)
	if err != nil {
		return "", err
	}

	s, ok := l.Get(in.ID)
	if !ok {
		return "", fmt.Errorf("sequence not found: %s", in.ID)
	}

	return toolbox.JSON(s)
}

func (l *Library) handleCreate(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[createInput](input)
	if err != nil {
		return "", err
	}

	s := l.Create(NewSequence{Name: in.Name, Description: in.Description, Loop: in.Loop, Tags: in.Tags, Steps: in.Steps})

	return toolbox.JSON(summarize(s))
}

func (l *Library) handleAddStep(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[addStepInput](input)
	if err != nil {
		return "", err
	}

	if !l.AddStep(in.ID, in.Step) {
		return "", fmt.Errorf("sequence not found: %s", in.ID)
	}

	return "ok", nil
}

func (l *Library) handleRemoveStep(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[removeStepInput](input)
	if err != nil {
		return "", err
	}

	if !l.RemoveStep(in.ID, in.Index) {
		return "", fmt.Errorf("cannot remove step %d of sequence %s", in.Index, in.ID)
	}

	return "ok", nil
}

func (l *Library) handleDelete(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[seqIDInput](input)
	if err != nil {
		return "", err
	}

	if !l.Delete(in.ID) {
		return "", fmt.Errorf("sequence not found: %s", in.ID)
	}

	return "ok", nil
}

func (l *Library) handleExport(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[seqIDInput](input)
	if err != nil {
		return "", err
	}

	if in.ID == "" {
		data, err := l.ExportAll()
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, ok := l.Export(in.ID)
	if !ok {
		return "", fmt.Errorf("sequence not found: %s", in.ID)
	}

	return string(data), nil
}

func (l *Library) handleImport(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[seqImportInput](input)
	if err != nil {
		return "", err
	}

	s, ok := l.Import(in.Sequence)
	if !ok {
		return "", errors.New("malformed sequence: name and steps are required")
	}

	return toolbox.JSON(summarize(s))
}

// Tools returns a ToolBox for the transport. Tool names are
// {namespace}_playback_play, _pause, _resume, _stop, _skip, _shuffle and
// _status.
func (p *Player) Tools(namespace string) *toolbox.ToolBox {
	tb := toolbox.New()

	tb.Register(
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_playback_play", namespace),
			Description: "Play a sequence from its first step.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"loop":{"type":"boolean"}},"required":["id"]}`),
			Handler:     p.handlePlay,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_playback_pause", namespace),
			Description: "Pause playback, keeping the elapsed time of the current step.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     p.transport(p.Pause, "nothing is playing or already paused"),
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_playback_resume", namespace),
			Description: "Resume paused playback.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     p.transport(p.Resume, "playback is not paused"),
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_playback_stop", namespace),
			Description: "Stop playback.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     p.transport(p.Stop, "nothing is playing"),
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_playback_skip", namespace),
			Description: "Skip to the next (default) or previous step.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"direction":{"type":"string","enum":["next","prev"]}}}`),
			Handler:     p.handleSkip,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_playback_shuffle", namespace),
			Description: "Enable or disable shuffled step order.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"enabled":{"type":"boolean"}},"required":["enabled"]}`),
			Handler:     p.handleShuffle,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_playback_status", namespace),
			Description: "Report the transport state and the time remaining in the current traversal.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     p.handleStatus,
		},
	)

	return tb
}

type playInput struct {
	ID   string `json:"id"`
	Loop bool   `json:"loop"`
}

type skipInput struct {
	Direction string `json:"direction"`
}

type shuffleInput struct {
	Enabled bool `json:"enabled"`
}

type statusOutput struct {
	Status
	TimeRemainingMS int64 `json:"timeRemainingMs"`
}

func (p *Player) handlePlay(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[playInput](input)
	if err != nil {
		return "", err
	}

	if !p.Play(in.ID, in.Loop) {
		return "", fmt.Errorf("cannot play sequence %s: unknown, empty or without playable anchors", in.ID)
	}

	return "ok", nil
}

func (p *Player) transport(fn func() bool, failure string) toolbox.Handler {
	return func(_ context.Context, _ json.RawMessage) (string, error) {
		if !fn() {
			return "", errors.New(failure)
		}
		return "ok", nil
	}
}

func (p *Player) handleSkip(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[skipInput](input)
	if err != nil {
		return "", err
	}

	var ok bool
	switch in.Direction {
	case "", "next":
		ok = p.SkipNext()
	case "prev":
		ok = p.SkipPrev()
	default:
		return "", fmt.Errorf("invalid direction: %s", in.Direction)
	}
	if !ok {
		return "", errors.New("nothing is playing")
	}

	return "ok", nil
}

func (p *Player) handleShuffle(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[shuffleInput](input)
	if err != nil {
		return "", err
	}

	p.SetShuffle(in.Enabled)

	return "ok", nil
}

func (p *Player) handleStatus(_ context.Context, _ json.RawMessage) (string, error) {
	return toolbox.JSON(statusOutput{
		Status:          p.Status(),
		TimeRemainingMS: p.TimeRemaining().Milliseconds(),
	})
}

// Tools returns a ToolBox for auto mode: {namespace}_auto_start and
// {namespace}_auto_stop.
func (a *Auto) Tools(namespace string) *toolbox.ToolBox {
	tb := toolbox.New()

	tb.Register(
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_auto_start", namespace),
			Description: "Start auto-morph mode. Durations are in milliseconds; omitted fields keep the configured settings.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"minDuration":{"type":"number"},"maxDuration":{"type":"number"},"pauseBetween":{"type":"number"},"randomEasing":{"type":"boolean"},"avoidRepeats":{"type":"boolean"},"pool":{"type":"array","items":{"type":"string"}}}}`),
			Handler:     a.handleStart,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_auto_stop", namespace),
			Description: "Stop auto-morph mode.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     a.handleStop,
		},
	)

	return tb
}

type autoStartInput struct {
	MinDuration  *float64 `json:"minDuration"`
	MaxDuration  *float64 `json:"maxDuration"`
	PauseBetween *float64 `json:"pauseBetween"`
	RandomEasing *bool    `json:"randomEasing"`
	AvoidRepeats *bool    `json:"avoidRepeats"`
	Pool         []string `json:"pool"`
}

// config overlays the given fields on base.
func (in autoStartInput) config(base AutoConfig) AutoConfig {
	cfg := base
	ms := func(v *float64, dst *time.Duration) {
		if v != nil {
			*dst = Millis(*v)
		}
	}
	ms(in.MinDuration, &cfg.MinDuration)
	ms(in.MaxDuration, &cfg.MaxDuration)
	ms(in.PauseBetween, &cfg.PauseBetween)
	if in.RandomEasing != nil {
		cfg.RandomEasing = *in.RandomEasing
	}
	if in.AvoidRepeats != nil {
		cfg.AvoidRepeats = *in.AvoidRepeats
	}
	if in.Pool != nil {
		cfg.Pool = in.Pool
	}

	return cfg
}

func (a *Auto) handleStart(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[autoStartInput](input)
	if err != nil {
		return "", err
	}

	if !a.Start(in.config(a.Config())) {
		return "", errors.New("auto-morph is already active")
	}

	return "ok", nil
}

func (a *Auto) handleStop(_ context.Context, _ json.RawMessage) (string, error) {
	if !a.Stop() {
		return "", errors.New("auto-morph is not active")
	}

	return "ok", nil
}
