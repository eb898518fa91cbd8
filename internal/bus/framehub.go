package bus

import (
	"sync"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// FrameHub fans the newest captured frame out to listeners and pull-style
// consumers. Only the latest frame is retained; slow listeners observe
// coalesced frames, never a growing queue, and never out of capture order.
type FrameHub struct {
	mu        sync.Mutex
	latest    *frame.Frame
	listeners map[int]*frameListener
	nextID    int
	closed    bool
}

type frameListener struct {
	ch   chan *frame.Frame
	done chan struct{}
}

// NewFrameHub constructs an empty hub.
func NewFrameHub() *FrameHub {
	return &FrameHub{listeners: make(map[int]*frameListener)}
}

// Publish stores the frame as the latest and offers it to every listener,
// replacing any frame a listener has not consumed yet. Never blocks.
func (h *FrameHub) Publish(f *frame.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest = f
	for _, l := range h.listeners {
		select {
		case l.ch <- f:
		default:
			// Listener still holds an unconsumed frame; swap it for the new one.
			select {
			case <-l.ch:
			default:
			}
			select {
			case l.ch <- f:
			default:
			}
		}
	}
}

// Latest returns the most recently published frame, or nil before the first
// publication.
func (h *FrameHub) Latest() *frame.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// AddListener starts a goroutine invoking fn for published frames and
// returns a remove function. fn sees frames in capture order with
// intermediate frames dropped while it is busy.
func (h *FrameHub) AddListener(fn func(*frame.Frame)) (remove func()) {
	l := &frameListener{
		ch:   make(chan *frame.Frame, 1),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.closed {
		h.mu.Unlock()
		close(l.done)
		return func() {}
	}
	h.listeners[id] = l
	h.mu.Unlock()

	go func() {
		for {
			select {
			case f := <-l.ch:
				fn(f)
			case <-l.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
			close(l.done)
		})
	}
}

// Close removes every listener and stops their goroutines.
func (h *FrameHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, l := range h.listeners {
		close(l.done)
		delete(h.listeners, id)
	}
}
