package signal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushSourceLifecycle(t *testing.T) {
	ctx := context.Background()
	src := NewPush("audio")

	assert.Equal(t, "audio", src.Type())
	assert.Equal(t, Idle, src.State())
	assert.False(t, src.Publish(bass(0.5)), "frames are dropped before start")
	assert.True(t, src.Latest().IsZero())

	require.NoError(t, src.Start(ctx))
	assert.Equal(t, Running, src.State())
	assert.True(t, src.Publish(bass(0.5)))
	assert.True(t, src.Publish(bass(0.7)))
	assert.Equal(t, 0.7, src.Latest().Band("bass"), "last write wins")

	require.NoError(t, src.Stop(ctx))
	assert.Equal(t, Idle, src.State())
	assert.True(t, src.Latest().IsZero())
	require.NoError(t, src.Stop(ctx))
}

func TestBaseInitFailure(t *testing.T) {
	var closed atomic.Int32
	src := NewBase("camera", Hooks{
		Init:  func(context.Context) error { return ErrUnavailable },
		Close: func(context.Context) error { closed.Add(1); return nil },
	}, nil)

	err := src.Start(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, Error, src.State())
	assert.False(t, src.Publish(bass(1)))

	require.NoError(t, src.Stop(context.Background()))
	assert.Zero(t, closed.Load(), "nothing was acquired")
}

func TestBaseRunPublishes(t *testing.T) {
	var closed atomic.Int32
	src := NewBase("ticker", Hooks{
		Run: func(ctx context.Context, publish func(Signal) bool) error {
			publish(bass(0.3))
			<-ctx.Done()
			return ctx.Err()
		},
		Close: func(context.Context) error { closed.Add(1); return nil },
	}, nil)

	require.NoError(t, src.Start(context.Background()))
	require.Eventually(t, func() bool { return src.Latest().Band("bass") == 0.3 }, time.Second, time.Millisecond)

	require.NoError(t, src.Stop(context.Background()))
	assert.Equal(t, Idle, src.State())
	assert.Equal(t, int32(1), closed.Load())
}

func TestBaseRunFailureMovesToError(t *testing.T) {
	src := NewBase("feed", Hooks{
		Run: func(context.Context, func(Signal) bool) error { return errors.New("connection reset") },
	}, nil)

	require.NoError(t, src.Start(context.Background()))
	require.Eventually(t, func() bool { return src.State() == Error }, time.Second, time.Millisecond)

	require.NoError(t, src.Start(context.Background()), "a failed source can be restarted")
	require.NoError(t, src.Stop(context.Background()))
}
