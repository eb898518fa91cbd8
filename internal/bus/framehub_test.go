package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/frame"
)

func testFrame(t *testing.T, seq byte) *frame.Frame {
	t.Helper()
	f, err := frame.New([]byte{seq, 0, 0}, 1, 1)
	require.NoError(t, err)
	return f
}

func TestFrameHub_Latest(t *testing.T) {
	h := NewFrameHub()
	defer h.Close()

	assert.Nil(t, h.Latest(), "no frame before the first publish")

	f1 := testFrame(t, 1)
	f2 := testFrame(t, 2)
	h.Publish(f1)
	h.Publish(f2)

	assert.Same(t, f2, h.Latest(), "only the newest frame is retained")
}

func TestFrameHub_ListenerReceivesFrames(t *testing.T) {
	h := NewFrameHub()
	defer h.Close()

	got := make(chan *frame.Frame, 8)
	remove := h.AddListener(func(f *frame.Frame) { got <- f })
	defer remove()

	f := testFrame(t, 7)
	h.Publish(f)

	select {
	case received := <-got:
		assert.Same(t, f, received)
	case <-time.After(time.Second):
		t.Fatal("listener did not receive the frame")
	}
}

func TestFrameHub_SlowListenerCoalesces(t *testing.T) {
	h := NewFrameHub()
	defer h.Close()

	block := make(chan struct{})
	entered := make(chan struct{}, 8)
	var mu sync.Mutex
	var seen []byte

	remove := h.AddListener(func(f *frame.Frame) {
		entered <- struct{}{}
		<-block
		mu.Lock()
		seen = append(seen, f.Data[0])
		mu.Unlock()
	})
	defer remove()

	// While the listener is blocked, later frames overwrite earlier ones.
	h.Publish(testFrame(t, 1))
	<-entered // the listener now holds frame 1
	h.Publish(testFrame(t, 2))
	h.Publish(testFrame(t, 3))
	h.Publish(testFrame(t, 4))
	close(block)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, byte(1), seen[0])
	assert.Equal(t, byte(4), seen[len(seen)-1], "the newest frame wins")
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1], "frames never arrive out of order")
	}
}

func TestFrameHub_RemoveListener(t *testing.T) {
	h := NewFrameHub()
	defer h.Close()

	got := make(chan *frame.Frame, 8)
	remove := h.AddListener(func(f *frame.Frame) { got <- f })
	remove()
	remove() // idempotent

	h.Publish(testFrame(t, 1))

	select {
	case <-got:
		t.Fatal("removed listener must not receive frames")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFrameHub_CloseStopsListeners(t *testing.T) {
	h := NewFrameHub()

	got := make(chan *frame.Frame, 8)
	h.AddListener(func(f *frame.Frame) { got <- f })

	h.Close()
	h.Publish(testFrame(t, 1))

	select {
	case <-got:
		t.Fatal("closed hub must not deliver frames")
	case <-time.After(50 * time.Millisecond):
	}
}
