package bus

import (
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// DefaultSubscriptionBuffer is the per-subscription ring capacity.
const DefaultSubscriptionBuffer = 256

// EventBus is a topic pub/sub over dotted event types. Publishing never
// blocks: each subscription owns a bounded ring that drops its oldest events
// on overflow. Consumers poll; nothing is pushed.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	closed bool
}

// NewEventBus constructs a bus with the given per-subscription buffer size;
// zero or negative means DefaultSubscriptionBuffer.
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	return &EventBus{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
	}
}

// Publish delivers the event to every matching subscription. It never blocks
// and is safe from any goroutine.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.matches(e.Type) {
			sub.push(e)
		}
	}
}

// Subscribe registers a subscription. Filters are type prefixes ("progress."
// matches every progress event, "recording.stopped" exactly one type); no
// filters means every event.
func (b *EventBus) Subscribe(filters ...string) *Subscription {
	sub := &Subscription{
		id:      ulid.Make().String(),
		bus:     b,
		filters: filters,
		buf:     make([]Event, 0, 16),
		max:     b.buffer,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.closed = true
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Close tears the bus down. Poll subscriptions keep their buffered tail;
// channel subscriptions see their feed close.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, sub := range b.subs {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			if sub.ch != nil {
				close(sub.ch)
			}
		}
		sub.mu.Unlock()
	}
	b.subs = make(map[string]*Subscription)
}

func (b *EventBus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscription is one bounded event feed. Poll never blocks; a full buffer
// drops the oldest events first, counting them in Dropped. Calling C switches
// the feed to channel delivery for select-based consumers; the overflow
// policy stays the same.
type Subscription struct {
	id      string
	bus     *EventBus
	filters []string

	mu      sync.Mutex
	buf     []Event
	ch      chan Event
	max     int
	dropped uint64
	closed  bool
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// C switches the subscription to channel delivery and returns the feed. Any
// buffered tail is moved onto the channel first. The channel closes when the
// subscription does.
func (s *Subscription) C() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		s.ch = make(chan Event, s.max)
		for _, e := range s.buf {
			s.ch <- e
		}
		s.buf = nil
		if s.closed {
			close(s.ch)
		}
	}
	return s.ch
}

// Poll returns up to maxItems buffered events in publish order, immediately.
func (s *Subscription) Poll(maxItems int) []Event {
	if maxItems <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(maxItems, len(s.buf))
	if n == 0 {
		return nil
	}
	out := make([]Event, n)
	copy(out, s.buf[:n])
	s.buf = append(s.buf[:0], s.buf[n:]...)
	return out
}

// Dropped reports how many events this subscription has lost to overflow.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.ch != nil {
		close(s.ch)
	}
	s.mu.Unlock()
	s.bus.unsubscribe(s.id)
}

func (s *Subscription) matches(eventType string) bool {
	if len(s.filters) == 0 {
		return true
	}
	for _, f := range s.filters {
		if strings.HasPrefix(eventType, f) {
			return true
		}
	}
	return false
}

func (s *Subscription) push(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.ch != nil {
		select {
		case s.ch <- e:
		default:
			s.dropped++
		}
		return
	}
	if len(s.buf) >= s.max {
		over := len(s.buf) - s.max + 1
		s.buf = append(s.buf[:0], s.buf[over:]...)
		s.dropped += uint64(over)
	}
	s.buf = append(s.buf, e)
}
