package bus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishAndPoll(t *testing.T) {
	b := NewEventBus(0)
	defer b.Close()

	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(NewEvent(EventRecordingStarted, map[string]any{"stem": "x"}))
	b.Publish(NewEvent(EventRecordingStopped, nil))

	events := sub.Poll(10)
	require.Len(t, events, 2)
	assert.Equal(t, EventRecordingStarted, events[0].Type)
	assert.Equal(t, EventRecordingStopped, events[1].Type)
	assert.Equal(t, "x", events[0].Payload["stem"])
	assert.NotEmpty(t, events[0].EventID)
	assert.False(t, events[0].Timestamp.IsZero())

	assert.Empty(t, sub.Poll(10), "polled events are consumed")
}

func TestEventBus_Filters(t *testing.T) {
	b := NewEventBus(0)
	defer b.Close()

	progress := b.Subscribe(ProgressPrefix)
	exact := b.Subscribe(EventRecordingStopped)
	defer progress.Close()
	defer exact.Close()

	b.Publish(NewEvent(EventProgressStart, nil))
	b.Publish(NewEvent(EventProgressFinish, nil))
	b.Publish(NewEvent(EventRecordingStopped, nil))
	b.Publish(NewEvent(EventRecordingStarted, nil))

	got := progress.Poll(10)
	require.Len(t, got, 2)
	assert.Equal(t, EventProgressStart, got[0].Type)
	assert.Equal(t, EventProgressFinish, got[1].Type)

	got = exact.Poll(10)
	require.Len(t, got, 1)
	assert.Equal(t, EventRecordingStopped, got[0].Type)
}

func TestEventBus_OverflowDropsOldest(t *testing.T) {
	b := NewEventBus(3)
	defer b.Close()

	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		b.Publish(NewEvent("test.event", map[string]any{"seq": i}))
	}

	events := sub.Poll(10)
	require.Len(t, events, 3)
	assert.Equal(t, 2, events[0].Payload["seq"], "oldest events dropped first")
	assert.Equal(t, 4, events[2].Payload["seq"])
	assert.Equal(t, uint64(2), sub.Dropped())

	// The next publication is still delivered.
	b.Publish(NewEvent("test.event", map[string]any{"seq": 5}))
	events = sub.Poll(10)
	require.Len(t, events, 1)
	assert.Equal(t, 5, events[0].Payload["seq"])
}

func TestEventBus_PollRespectsMax(t *testing.T) {
	b := NewEventBus(0)
	defer b.Close()

	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		b.Publish(NewEvent("test.event", map[string]any{"seq": i}))
	}

	first := sub.Poll(2)
	require.Len(t, first, 2)
	assert.Equal(t, 0, first[0].Payload["seq"])

	rest := sub.Poll(10)
	require.Len(t, rest, 3)
	assert.Equal(t, 2, rest[0].Payload["seq"], "delivery order is publish order")
}

func TestEventBus_ClosedSubscriptionReceivesNothing(t *testing.T) {
	b := NewEventBus(0)
	defer b.Close()

	sub := b.Subscribe()
	sub.Close()

	b.Publish(NewEvent("test.event", nil))
	assert.Empty(t, sub.Poll(10))
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	b := NewEventBus(4096)
	defer b.Close()

	sub := b.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				b.Publish(NewEvent(fmt.Sprintf("g%d.event", g), nil))
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	total := 0
	for {
		batch := sub.Poll(128)
		if len(batch) == 0 {
			break
		}
		total += len(batch)
	}
	assert.Equal(t, 800, total)
	assert.Equal(t, uint64(0), sub.Dropped())
}

func TestEventBus_ChannelDelivery(t *testing.T) {
	b := NewEventBus(8)
	sub := b.Subscribe("recording.")

	// Events published before C() land in the ring and move to the channel.
	b.Publish(NewEvent("recording.started", nil))
	ch := sub.C()
	b.Publish(NewEvent("recording.stopped", nil))

	e := <-ch
	assert.Equal(t, "recording.started", e.Type)
	e = <-ch
	assert.Equal(t, "recording.stopped", e.Type)

	sub.Close()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestEventBus_CloseClosesChannelFeeds(t *testing.T) {
	b := NewEventBus(8)
	sub := b.Subscribe()
	ch := sub.C()

	b.Close()
	_, ok := <-ch
	assert.False(t, ok)
}
