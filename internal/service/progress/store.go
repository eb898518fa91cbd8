package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/splat-replay/splat-replay/internal/bus"
)

// DefaultStoreCapacity bounds the replay buffer.
const DefaultStoreCapacity = 500

// pollInterval is how often the store drains its bus subscription.
const pollInterval = 20 * time.Millisecond

// StoredEvent is a buffered progress event with its replay cursor.
type StoredEvent struct {
	Seq   uint64    `json:"seq"`
	Event bus.Event `json:"event"`
}

// Store buffers the progress event tail so HTTP clients arriving late can
// replay it. The buffer clears on the first task start after every active
// task has finished, so each processing run begins with a clean tail.
type Store struct {
	events   *bus.EventBus
	logger   *slog.Logger
	capacity int

	mu      sync.Mutex
	buf     []StoredEvent
	seq     uint64
	active  int
	drained bool // all previously active tasks have finished
}

// NewStore wires a store; capacity <= 0 means DefaultStoreCapacity.
func NewStore(events *bus.EventBus, capacity int, logger *slog.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		events:   events,
		logger:   logger.With(slog.String("component", "progress_store")),
		capacity: capacity,
		drained:  true,
	}
}

// Run subscribes to progress events and ingests them until the context
// ends.
func (s *Store) Run(ctx context.Context) {
	sub := s.events.Subscribe(bus.ProgressPrefix)
	defer sub.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, e := range sub.Poll(64) {
				s.Ingest(e)
			}
		}
	}
}

// Ingest adds one progress event to the buffer, applying the clear-on-new-
// run rule and the capacity bound.
func (s *Store) Ingest(e bus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case bus.EventProgressStart:
		if s.drained {
			// First start of a new run; drop the previous run's tail.
			s.buf = s.buf[:0]
			s.drained = false
		}
		s.active++
	case bus.EventProgressFinish:
		if s.active > 0 {
			s.active--
		}
		if s.active == 0 {
			s.drained = true
		}
	}

	s.seq++
	if len(s.buf) >= s.capacity {
		over := len(s.buf) - s.capacity + 1
		s.buf = append(s.buf[:0], s.buf[over:]...)
	}
	s.buf = append(s.buf, StoredEvent{Seq: s.seq, Event: e})
}

// Snapshot returns the buffered tail in insertion order.
func (s *Store) Snapshot() []StoredEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoredEvent, len(s.buf))
	copy(out, s.buf)
	return out
}

// ReadSince returns the events after the cursor and the next cursor to
// poll with. A zero cursor reads the whole tail.
func (s *Store) ReadSince(cursor uint64) ([]StoredEvent, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cursor
	var out []StoredEvent
	for _, se := range s.buf {
		if se.Seq > cursor {
			out = append(out, se)
			next = se.Seq
		}
	}
	if len(s.buf) > 0 && s.buf[len(s.buf)-1].Seq > next {
		next = s.buf[len(s.buf)-1].Seq
	}
	return out, next
}

// Len returns the buffered event count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}
