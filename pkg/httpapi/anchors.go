package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/engine"
	"github.com/germanamz/mmpa/pkg/paramtree"
	"github.com/go-chi/chi/v5"
)

type anchorRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tree        paramtree.Tree `json:"tree"`
	VisualState paramtree.Tree `json:"visualState"`
	Tags        []string       `json:"tags"`
}

func (s *Server) handleAnchorList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Anchors().List())
}

func (s *Server) handleAnchorCreate(w http.ResponseWriter, r *http.Request) {
	var req anchorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Tree == nil {
		writeError(w, http.StatusBadRequest, errors.New("tree is required"))
		return
	}

	a, err := s.eng.Anchors().Create(anchors.NewAnchor{
		Name:        req.Name,
		Description: req.Description,
		Tree:        req.Tree,
		VisualState: req.VisualState,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleAnchorCapture(w http.ResponseWriter, r *http.Request) {
	var req anchorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	a, err := s.eng.Capture(anchors.NewAnchor{Name: req.Name, Description: req.Description, Tags: req.Tags})
	if errors.Is(err, engine.ErrNoState) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleAnchorClear(w http.ResponseWriter, _ *http.Request) {
	s.eng.Anchors().Clear()
	ok(w)
}

func (s *Server) handleAnchorGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, found := s.eng.Anchors().Get(id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("anchor not found: %s", id))
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAnchorUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var p anchors.Patch
	if err := decode(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.eng.Anchors().Update(id, p) {
		writeError(w, http.StatusNotFound, fmt.Errorf("anchor not found: %s", id))
		return
	}

	a, _ := s.eng.Anchors().Get(id)
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAnchorDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.eng.Anchors().Delete(id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("anchor not found: %s", id))
		return
	}

	ok(w)
}

func (s *Server) handleAnchorExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, found := s.eng.Anchors().ExportOne(id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("anchor not found: %s", id))
		return
	}

	writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleAnchorExportAll(w http.ResponseWriter, _ *http.Request) {
	data, err := s.eng.Anchors().ExportAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleAnchorImport(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	a, imported := s.eng.Anchors().ImportOne(data)
	if !imported {
		writeError(w, http.StatusBadRequest, errors.New("malformed anchor"))
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleAnchorShare(w http.ResponseWriter, r *http.Request) {
	if s.sharer == nil {
		writeError(w, http.StatusNotImplemented, errors.New("sharing is not configured"))
		return
	}

	a, err := s.eng.Anchors().Share(r.Context(), chi.URLParam(r, "id"), s.sharer)
	if errors.Is(err, anchors.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}
