package wsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/germanamz/mmpa/pkg/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedServer writes frames to each client, then holds the connection open
// until the client goes away, or closes it when hangUp is set.
func feedServer(t *testing.T, hangUp bool, frames ...string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		if hangUp {
			conn.Close(websocket.StatusGoingAway, "bye")
			return
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestSourceStreamsFrames(t *testing.T) {
	srv := feedServer(t, false,
		`{"bands":{"bass":0.5},"quality":1}`,
		`not json`,
		`{"bands":{"bass":0.7},"spectrum":[0.1,0.2],"quality":1}`,
	)

	src := New(Options{URL: srv.URL})
	assert.Equal(t, Type, src.Type())

	require.NoError(t, src.Start(context.Background()))
	require.Eventually(t, func() bool { return src.Latest().Band("bass") == 0.7 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []float64{0.1, 0.2}, src.Latest().Spectrum())
	assert.Equal(t, signal.Running, src.State())

	require.NoError(t, src.Stop(context.Background()))
	assert.Equal(t, signal.Idle, src.State())
}

func TestSourceDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	src := New(Options{URL: srv.URL})
	err := src.Start(context.Background())
	require.ErrorIs(t, err, signal.ErrUnavailable)
	assert.Equal(t, signal.Error, src.State())
}

func TestSourceDisconnectMovesToError(t *testing.T) {
	srv := feedServer(t, true, `{"bands":{"bass":0.4}}`)

	src := New(Options{URL: srv.URL})
	require.NoError(t, src.Start(context.Background()))
	require.Eventually(t, func() bool { return src.State() == signal.Error }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, src.Stop(context.Background()))
}

func TestURLScheme(t *testing.T) {
	assert.Equal(t, "ws://host/feed", New(Options{URL: "http://host/feed"}).URL())
	assert.Equal(t, "wss://host/feed", New(Options{URL: "https://host/feed"}).URL())
	assert.Equal(t, "ws://host/feed", New(Options{URL: "ws://host/feed"}).URL())
}
