package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/germanamz/mmpa/pkg/events"
)

const eventBuffer = 64

type eventJSON struct {
	Kind      events.Kind `json:"kind"`
	Subject   string      `json:"subject,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

// handleEvents streams engine events as server-sent events until the client
// disconnects. Slow clients miss events rather than stalling the engine.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, s.eng.Events())
}

// handleFrames streams every rendered frame, one "frame" event per tick.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, s.eng.Frames())
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, bus *events.Bus) {
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	sub := bus.Subscribe(eventBuffer)
	defer bus.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e, open := <-sub.C:
			if !open {
				return
			}

			data, err := json.Marshal(eventJSON{
				Kind:      e.Kind,
				Subject:   e.Subject,
				Timestamp: e.Timestamp.UnixMilli(),
				Data:      e.Data,
			})
			if err != nil {
				s.logger.Warn("httpapi: encode event", "kind", e.Kind, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
