package httpapi

import (
	"fmt"
	"net/http"

	"github.com/germanamz/mmpa/pkg/signal"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleSignalInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Signals().Info())
}

// handleSignalCurrent returns the mixed signal, or the signal as delivered to
// ?target= when one is given.
func (s *Server) handleSignalCurrent(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeJSON(w, http.StatusOK, s.eng.Signals().CurrentSignal())
		return
	}

	sig, enabled := s.eng.Signal(target)
	if !enabled {
		writeError(w, http.StatusConflict, fmt.Errorf("target disabled: %s", target))
		return
	}

	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) handleMixMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	m, err := signal.ParseMixMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.eng.Signals().SetMixMode(m)

	writeJSON(w, http.StatusOK, s.eng.Signals().Info())
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.eng.Signals().SetTargetEnabled(chi.URLParam(r, "name"), req.Enabled)

	writeJSON(w, http.StatusOK, s.eng.Signals().Info())
}

func (s *Server) handleSourceUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Weight  *float64 `json:"weight"`
		Enabled *bool    `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, found := s.eng.Signals().Source(id); !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("source not found: %s", id))
		return
	}

	if req.Weight != nil {
		s.eng.Signals().SetSourceWeight(id, *req.Weight)
	}
	if req.Enabled != nil {
		s.eng.Signals().SetSourceEnabled(id, *req.Enabled)
	}

	writeJSON(w, http.StatusOK, s.eng.Signals().Info())
}

func (s *Server) handleSourceStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, found := s.eng.Signals().Source(id); !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("source not found: %s", id))
		return
	}
	if !s.eng.Signals().StartSource(r.Context(), id) {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("source unavailable: %s", id))
		return
	}

	writeJSON(w, http.StatusOK, s.eng.Signals().Info())
}

func (s *Server) handleSourceStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, found := s.eng.Signals().Source(id); !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("source not found: %s", id))
		return
	}
	if !s.eng.Signals().StopSource(r.Context(), id) {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("cannot stop source: %s", id))
		return
	}

	writeJSON(w, http.StatusOK, s.eng.Signals().Info())
}

// handleSourcePush feeds one frame to a push source. Frames sent to a
// source that is not running are rejected.
func (s *Server) handleSourcePush(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var sig signal.Signal
	if err := decode(r, &sig); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, found := s.eng.Signals().Source(id); !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("source not found: %s", id))
		return
	}
	if !s.eng.Signals().Publish(id, sig) {
		writeError(w, http.StatusConflict, fmt.Errorf("source not accepting frames: %s", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
