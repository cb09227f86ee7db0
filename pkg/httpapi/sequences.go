package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/germanamz/mmpa/pkg/sequencer"
	"github.com/go-chi/chi/v5"
)

type sequenceRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Steps       []sequencer.Step `json:"steps"`
	Loop        bool             `json:"loop"`
	Tags        []string         `json:"tags"`
}

func notFound(w http.ResponseWriter, id string) {
	writeError(w, http.StatusNotFound, fmt.Errorf("sequence not found: %s", id))
}

func (s *Server) handleSequenceList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Sequences().List())
}

func (s *Server) handleSequenceCreate(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	seq := s.eng.Sequences().Create(sequencer.NewSequence{
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
		Loop:        req.Loop,
		Tags:        req.Tags,
	})

	writeJSON(w, http.StatusCreated, seq)
}

func (s *Server) handleSequenceGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	seq, found := s.eng.Sequences().Get(id)
	if !found {
		notFound(w, id)
		return
	}

	writeJSON(w, http.StatusOK, seq)
}

func (s *Server) handleSequenceUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var p sequencer.Patch
	if err := decode(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.eng.Sequences().Update(id, p) {
		notFound(w, id)
		return
	}

	seq, _ := s.eng.Sequences().Get(id)
	writeJSON(w, http.StatusOK, seq)
}

func (s *Server) handleSequenceDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.eng.Sequences().Delete(id) {
		notFound(w, id)
		return
	}

	ok(w)
}

func (s *Server) handleSequenceExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, found := s.eng.Sequences().Export(id)
	if !found {
		notFound(w, id)
		return
	}

	writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleSequenceExportAll(w http.ResponseWriter, _ *http.Request) {
	data, err := s.eng.Sequences().ExportAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleSequenceImport(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	seq, imported := s.eng.Sequences().Import(data)
	if !imported {
		writeError(w, http.StatusBadRequest, errors.New("malformed sequence"))
		return
	}

	writeJSON(w, http.StatusCreated, seq)
}

func (s *Server) handleStepAdd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var step sequencer.Step
	if err := decode(r, &step); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if step.AnchorID == "" {
		writeError(w, http.StatusBadRequest, errors.New("anchorId is required"))
		return
	}
	if !s.eng.Sequences().AddStep(id, step) {
		notFound(w, id)
		return
	}

	seq, _ := s.eng.Sequences().Get(id)
	writeJSON(w, http.StatusOK, seq)
}

func (s *Server) handleStepRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid step index: %w", err))
		return
	}
	if _, found := s.eng.Sequences().Get(id); !found {
		notFound(w, id)
		return
	}
	if !s.eng.Sequences().RemoveStep(id, index) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("step index out of range: %d", index))
		return
	}

	ok(w)
}

func (s *Server) handleStepReorder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, found := s.eng.Sequences().Get(id); !found {
		notFound(w, id)
		return
	}
	if !s.eng.Sequences().ReorderSteps(id, req.From, req.To) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("step index out of range: %d -> %d", req.From, req.To))
		return
	}

	seq, _ := s.eng.Sequences().Get(id)
	writeJSON(w, http.StatusOK, seq)
}
