package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/germanamz/mmpa/pkg/engine"
	"github.com/germanamz/mmpa/pkg/paramtree"
	"github.com/germanamz/mmpa/pkg/sequencer"
)

type playbackStatus struct {
	sequencer.Status
	TimeRemainingMS int64 `json:"timeRemainingMs"`
	Order           []int `json:"order,omitempty"`
}

func (s *Server) handlePlaybackStatus(w http.ResponseWriter, _ *http.Request) {
	p := s.eng.Player()
	writeJSON(w, http.StatusOK, playbackStatus{
		Status:          p.Status(),
		TimeRemainingMS: p.TimeRemaining().Milliseconds(),
		Order:           p.Order(),
	})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SequenceID string `json:"sequenceId"`
		Loop       bool   `json:"loop"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.eng.Player().Play(req.SequenceID, req.Loop) {
		writeError(w, http.StatusConflict, fmt.Errorf("cannot play sequence: %s", req.SequenceID))
		return
	}

	writeJSON(w, http.StatusOK, s.eng.Player().Status())
}

// playerAction adapts a bool-returning transport call. A false result means
// the call did not apply in the current state.
func (s *Server) playerAction(name string, fn func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !fn() {
			writeError(w, http.StatusConflict, fmt.Errorf("cannot %s in current state", name))
			return
		}

		writeJSON(w, http.StatusOK, s.eng.Player().Status())
	}
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.eng.Player().SetShuffle(req.Enabled)

	writeJSON(w, http.StatusOK, s.eng.Player().Status())
}

type autoStatus struct {
	Active         bool     `json:"active"`
	MinDurationMS  int64    `json:"minDurationMs"`
	MaxDurationMS  int64    `json:"maxDurationMs"`
	PauseBetweenMS int64    `json:"pauseBetweenMs"`
	RandomEasing   bool     `json:"randomEasing"`
	AvoidRepeats   bool     `json:"avoidRepeats"`
	Pool           []string `json:"pool"`
}

// autoStartRequest overlays the configured auto settings. Durations are in
// milliseconds.
type autoStartRequest struct {
	MinDuration  *float64 `json:"minDuration"`
	MaxDuration  *float64 `json:"maxDuration"`
	PauseBetween *float64 `json:"pauseBetween"`
	RandomEasing *bool    `json:"randomEasing"`
	AvoidRepeats *bool    `json:"avoidRepeats"`
	Pool         []string `json:"pool"`
}

func (s *Server) autoStatus() autoStatus {
	a := s.eng.Auto()
	cfg := a.Config()
	pool := cfg.Pool
	if pool == nil {
		pool = []string{}
	}

	return autoStatus{
		Active:         a.IsActive(),
		MinDurationMS:  cfg.MinDuration.Milliseconds(),
		MaxDurationMS:  cfg.MaxDuration.Milliseconds(),
		PauseBetweenMS: cfg.PauseBetween.Milliseconds(),
		RandomEasing:   cfg.RandomEasing,
		AvoidRepeats:   cfg.AvoidRepeats,
		Pool:           pool,
	}
}

func (s *Server) handleAutoStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.autoStatus())
}

func (s *Server) handleAutoStart(w http.ResponseWriter, r *http.Request) {
	var req autoStartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := s.eng.Auto().Config()
	for _, f := range []struct {
		ms  *float64
		dst *time.Duration
	}{
		{req.MinDuration, &cfg.MinDuration},
		{req.MaxDuration, &cfg.MaxDuration},
		{req.PauseBetween, &cfg.PauseBetween},
	} {
		if f.ms != nil {
			*f.dst = millis(*f.ms)
		}
	}
	if req.RandomEasing != nil {
		cfg.RandomEasing = *req.RandomEasing
	}
	if req.AvoidRepeats != nil {
		cfg.AvoidRepeats = *req.AvoidRepeats
	}
	if req.Pool != nil {
		cfg.Pool = req.Pool
	}

	if !s.eng.Auto().Start(cfg) {
		writeError(w, http.StatusConflict, errors.New("auto-morph already active"))
		return
	}

	writeJSON(w, http.StatusOK, s.autoStatus())
}

func (s *Server) handleAutoStop(w http.ResponseWriter, _ *http.Request) {
	if !s.eng.Auto().Stop() {
		writeError(w, http.StatusConflict, errors.New("auto-morph is not active"))
		return
	}

	writeJSON(w, http.StatusOK, s.autoStatus())
}

func (s *Server) handleMorph(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string   `json:"id"`
		Duration *float64 `json:"duration"` // ms
		Easing   string   `json:"easing"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	d := time.Duration(-1)
	if req.Duration != nil {
		d = millis(*req.Duration)
	}
	if !s.eng.MorphTo(req.ID, d, req.Easing) {
		writeError(w, http.StatusNotFound, fmt.Errorf("anchor not found: %s", req.ID))
		return
	}

	writeJSON(w, http.StatusAccepted, s.eng.Status().Morph)
}

func (s *Server) handleMorphStop(w http.ResponseWriter, _ *http.Request) {
	if !s.eng.Morph().IsActive() {
		writeError(w, http.StatusConflict, errors.New("no morph in progress"))
		return
	}
	s.eng.Morph().Stop()

	ok(w)
}

// handleStateGet writes the last rendered frame, or with ?path=a.b only the
// parameter at that path.
func (s *Server) handleStateGet(w http.ResponseWriter, r *http.Request) {
	f, found := s.eng.Frame()
	if !found {
		writeError(w, http.StatusNotFound, engine.ErrNoState)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusOK, f)
		return
	}

	value, found := paramtree.Lookup(f.Tree, path)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("parameter not found: %s", path))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"path": path, "value": value})
}

func (s *Server) handleStateSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tree        paramtree.Tree `json:"tree"`
		VisualState paramtree.Tree `json:"visualState"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Tree == nil {
		writeError(w, http.StatusBadRequest, errors.New("tree is required"))
		return
	}
	if err := s.eng.SetState(req.Tree, req.VisualState); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	f, _ := s.eng.Frame()
	writeJSON(w, http.StatusOK, f)
}

func millis(ms float64) time.Duration {
	return sequencer.Millis(ms)
}
