package anchors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/germanamz/mmpa/pkg/tools/toolbox"
)

// Tools returns a ToolBox exposing the store. Tool names are
// {namespace}_anchors_list, _get, _export, _import, _update and _delete.
func (s *Store) Tools(namespace string) *toolbox.ToolBox {
	tb := toolbox.New()

	tb.Register(
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_anchors_list", namespace),
			Description: "List anchors (id, name, tags, rating) in creation order.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     s.handleList,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_anchors_get", namespace),
			Description: "Get a full anchor, including its parameter tree.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
			Handler:     s.handleGet,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_anchors_export", namespace),
			Description: "Export one anchor as JSON, or all anchors when id is omitted.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}}}`),
			Handler:     s.handleExport,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_anchors_import", namespace),
			Description: "Import an anchor from its exported JSON. A new id is assigned.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"anchor":{"type":"object"}},"required":["anchor"]}`),
			Handler:     s.handleImport,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_anchors_update", namespace),
			Description: "Update anchor metadata (name, description, tags, rating 0-5, notes).",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"},"description":{"type":"string"},"tags":{"type":"array","items":{"type":"string"}},"rating":{"type":"integer","minimum":0,"maximum":5},"notes":{"type":"string"}},"required":["id"]}`),
			Handler:     s.handleUpdate,
		},
		toolbox.Tool{
			Name:        fmt.Sprintf("%s_anchors_delete", namespace),
			Description: "Delete an anchor by id.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
			Handler:     s.handleDelete,
		},
	)

	return tb
}

type idInput struct {
	ID string `json:"id"`
}

type importInput struct {
	Anchor json.RawMessage `json:"anchor"`
}

type updateInput struct {
	ID string `json:"id"`
	Patch
}

type summary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags"`
	Rating int      `json:"rating"`
}

func (s *Store) handleList(_ context.Context, _ json.RawMessage) (string, error) {
	all := s.List()
	out := make([]summary, 0, len(all))
	for _, a := range all {
		out = append(out, summary{ID: a.ID, Name: a.Name, Tags: a.Tags, Rating: a.Rating})
	}

	return toolbox.JSON(out)
}

func (s *Store) handleGet(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[idInput](input)
	if err != nil {
		return "", err
	}

	a, ok := s.Get(in.ID)
	if !ok {
		return "", fmt.Errorf("anchor not found: %s", in.ID)
	}

	return toolbox.JSON(a)
}

func (s *Store) handleExport(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[idInput](input)
	if err != nil {
		return "", err
	}

	if in.ID == "" {
		data, err := s.ExportAll()
		if err != nil {
			return "", err
		}

		return string(data), nil
	}

	data, ok := s.ExportOne(in.ID)
	if !ok {
		return "", fmt.Errorf("anchor not found: %s", in.ID)
	}

	return string(data), nil
}

func (s *Store) handleImport(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[importInput](input)
	if err != nil {
		return "", err
	}

	a, ok := s.ImportOne(in.Anchor)
	if !ok {
		return "", errors.New("malformed anchor: id, name and tree are required")
	}

	return toolbox.JSON(summary{ID: a.ID, Name: a.Name, Tags: a.Tags, Rating: a.Rating})
}

func (s *Store) handleUpdate(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[updateInput](input)
	if err != nil {
		return "", err
	}

	if !s.Update(in.ID, in.Patch) {
		return "", fmt.Errorf("anchor not found: %s", in.ID)
	}

	return "ok", nil
}

func (s *Store) handleDelete(_ context.Context, input json.RawMessage) (string, error) {
	in, err := toolbox.Decode[idInput](input)
	if err != nil {
		return "", err
	}

	if !s.Delete(in.ID) {
		return "", fmt.Errorf("anchor not found: %s", in.ID)
	}

	return "ok", nil
}
