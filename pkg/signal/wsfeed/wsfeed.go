// Package wsfeed is a signal source fed by a remote WebSocket stream. Every
// text message is a JSON frame {"bands":{...},"spectrum":[...],"quality":q};
// malformed frames are skipped.
package wsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/germanamz/mmpa/pkg/signal"
)

// Type is the source type reported to the bus.
const Type = "websocket"

// Options configures a Source.
type Options struct {
	URL        string
	Header     http.Header
	HTTPClient *http.Client
	Logger     *slog.Logger
	// ReadLimit caps a single frame in bytes. Zero keeps the library default.
	ReadLimit int64
}

// Source streams frames from a WebSocket endpoint.
type Source struct {
	*signal.Base
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates an idle Source.
func New(opts Options) *Source {
	s := &Source{opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.Base = signal.NewBase(Type, signal.Hooks{Init: s.dial, Run: s.read, Close: s.close}, s.logger)

	return s
}

// URL returns the endpoint with an http scheme rewritten to ws.
func (s *Source) URL() string {
	u := s.opts.URL
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}

	return u
}

func (s *Source) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.URL(), &websocket.DialOptions{
		HTTPClient: s.opts.HTTPClient,
		HTTPHeader: s.opts.Header,
	})
	if err != nil {
		return fmt.Errorf("%w: dial websocket: %w", signal.ErrUnavailable, err)
	}
	if s.opts.ReadLimit > 0 {
		conn.SetReadLimit(s.opts.ReadLimit)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	return nil
}

func (s *Source) read(ctx context.Context, publish func(signal.Signal) bool) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("wsfeed: not connected")
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("wsfeed: read: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}

		var sig signal.Signal
		if err := json.Unmarshal(data, &sig); err != nil {
			s.logger.Debug("wsfeed: skipping malformed frame", "url", s.opts.URL, "error", err)
			continue
		}
		publish(sig)
	}
}

func (s *Source) close(context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		s.logger.Debug("wsfeed: close", "error", err)
	}

	return nil
}
