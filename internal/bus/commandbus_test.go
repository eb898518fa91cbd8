package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/models"
)

func TestCommandBus_SubmitAndResolve(t *testing.T) {
	b := NewCommandBus(2, 16, nil)
	defer b.Close()

	b.Register("recorder.start", func(ctx context.Context, payload map[string]any) (any, error) {
		return "started:" + payload["device"].(string), nil
	})

	fut := b.Submit(context.Background(), "recorder.start", map[string]any{"device": "hdmi"})
	value, err := fut.Result()
	require.NoError(t, err)
	assert.Equal(t, "started:hdmi", value)
}

func TestCommandBus_UnknownCommand(t *testing.T) {
	b := NewCommandBus(1, 4, nil)
	defer b.Close()

	fut := b.Submit(context.Background(), "nope", nil)
	select {
	case <-fut.Done():
	default:
		t.Fatal("unknown command must resolve immediately")
	}
	_, err := fut.Result()
	assert.ErrorIs(t, err, models.ErrUnknownCommand)
}

func TestCommandBus_HandlerError(t *testing.T) {
	b := NewCommandBus(1, 4, nil)
	defer b.Close()

	want := errors.New("device offline")
	b.Register("recorder.start", func(context.Context, map[string]any) (any, error) {
		return nil, want
	})

	_, err := b.Execute(context.Background(), "recorder.start", nil)
	assert.ErrorIs(t, err, want)
}

func TestCommandBus_PanicBecomesError(t *testing.T) {
	b := NewCommandBus(1, 4, nil)
	defer b.Close()

	b.Register("boom", func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	})

	_, err := b.Execute(context.Background(), "boom", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// The dispatcher survives a panicking handler.
	b.Register("ok", func(context.Context, map[string]any) (any, error) { return 1, nil })
	v, err := b.Execute(context.Background(), "ok", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestCommandBus_WaitHonorsContext(t *testing.T) {
	b := NewCommandBus(1, 4, nil)
	defer b.Close()

	release := make(chan struct{})
	b.Register("slow", func(context.Context, map[string]any) (any, error) {
		<-release
		return nil, nil
	})

	fut := b.Submit(context.Background(), "slow", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := fut.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	_, err = fut.Result()
	assert.NoError(t, err, "the command itself still completes")
}

func TestCommandBus_CancelledContextSkipsExecution(t *testing.T) {
	b := NewCommandBus(1, 4, nil)
	defer b.Close()

	var ran atomic.Bool
	b.Register("noop", func(context.Context, map[string]any) (any, error) {
		ran.Store(true)
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Submit(ctx, "noop", nil).Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

func TestCommandBus_ConcurrentSubmissions(t *testing.T) {
	b := NewCommandBus(4, 64, nil)
	defer b.Close()

	var counter atomic.Int64
	b.Register("inc", func(context.Context, map[string]any) (any, error) {
		return counter.Add(1), nil
	})

	futures := make([]*Future, 50)
	for i := range futures {
		futures[i] = b.Submit(context.Background(), "inc", nil)
	}
	for _, fut := range futures {
		_, err := fut.Result()
		require.NoError(t, err)
	}
	assert.Equal(t, int64(50), counter.Load())
}
