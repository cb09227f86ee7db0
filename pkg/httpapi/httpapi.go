// Package httpapi serves the engine over HTTP: the control surface used by
// the HUD and by scripts. Every route is a thin adapter over *engine.Engine;
// the components keep their own validation and logging.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/engine"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBody caps request bodies. Anchor trees are small; exports of a whole
// library still fit.
const maxBody = 4 << 20

// Options configures a Server. Every field is optional.
type Options struct {
	Logger *slog.Logger
	// Sharer backs POST /api/anchors/{id}/share. Without one the route
	// answers 501.
	Sharer anchors.Sharer
}

// Server routes HTTP requests to an Engine.
type Server struct {
	eng    *engine.Engine
	logger *slog.Logger
	sharer anchors.Sharer
	router chi.Router
}

// New creates a Server for eng.
func New(eng *engine.Engine, opts Options) *Server {
	s := &Server{eng: eng, logger: opts.Logger, sharer: opts.Sharer}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.router = s.routes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
		r.Get("/frames", s.handleFrames)

		r.Route("/anchors", func(r chi.Router) {
			r.Get("/", s.handleAnchorList)
			r.Post("/", s.handleAnchorCreate)
			r.Delete("/", s.handleAnchorClear)
			r.Post("/capture", s.handleAnchorCapture)
			r.Get("/export", s.handleAnchorExportAll)
			r.Post("/import", s.handleAnchorImport)
			r.Get("/{id}", s.handleAnchorGet)
			r.Patch("/{id}", s.handleAnchorUpdate)
			r.Delete("/{id}", s.handleAnchorDelete)
			r.Get("/{id}/export", s.handleAnchorExport)
			r.Post("/{id}/share", s.handleAnchorShare)
		})

		r.Route("/sequences", func(r chi.Router) {
			r.Get("/", s.handleSequenceList)
			r.Post("/", s.handleSequenceCreate)
			r.Get("/export", s.handleSequenceExportAll)
			r.Post("/import", s.handleSequenceImport)
			r.Get("/{id}", s.handleSequenceGet)
			r.Patch("/{id}", s.handleSequenceUpdate)
			r.Delete("/{id}", s.handleSequenceDelete)
			r.Get("/{id}/export", s.handleSequenceExport)
			r.Post("/{id}/steps", s.handleStepAdd)
			r.Delete("/{id}/steps/{index}", s.handleStepRemove)
			r.Post("/{id}/steps/reorder", s.handleStepReorder)
		})

		r.Route("/playback", func(r chi.Router) {
			r.Get("/", s.handlePlaybackStatus)
			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.playerAction("pause", s.eng.Player().Pause))
			r.Post("/resume", s.playerAction("resume", s.eng.Player().Resume))
			r.Post("/stop", s.playerAction("stop", s.eng.Player().Stop))
			r.Post("/next", s.playerAction("skip", s.eng.Player().SkipNext))
			r.Post("/prev", s.playerAction("skip", s.eng.Player().SkipPrev))
			r.Post("/shuffle", s.handleShuffle)
		})

		r.Route("/auto", func(r chi.Router) {
			r.Get("/", s.handleAutoStatus)
			r.Post("/start", s.handleAutoStart)
			r.Post("/stop", s.handleAutoStop)
		})

		r.Post("/morph", s.handleMorph)
		r.Delete("/morph", s.handleMorphStop)

		r.Get("/state", s.handleStateGet)
		r.Put("/state", s.handleStateSet)

		r.Route("/signal", func(r chi.Router) {
			r.Get("/", s.handleSignalInfo)
			r.Get("/current", s.handleSignalCurrent)
			r.Put("/mode", s.handleMixMode)
			r.Put("/targets/{name}", s.handleTarget)
			r.Patch("/sources/{id}", s.handleSourceUpdate)
			r.Post("/sources/{id}/start", s.handleSourceStart)
			r.Post("/sources/{id}/stop", s.handleSourceStop)
			r.Post("/sources/{id}/push", s.handleSourcePush)
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("httpapi: request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw sends pre-encoded JSON, such as an export.
func writeRaw(w http.ResponseWriter, code int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func ok(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBody))
}
