package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishReachesSubscribers(t *testing.T) {
	h := NewHub()

	ch1, cancel1 := h.Subscribe(10)
	defer cancel1()
	ch2, cancel2 := h.Subscribe(10)
	defer cancel2()
	other, cancelOther := h.Subscribe(11)
	defer cancelOther()

	ev := SeatEvent{Type: EventSeatHeld, ShowtimeID: 10, SeatID: 42, Status: SeatStatusHeld, HeldBy: 7}
	h.Publish(ev)

	assert.Equal(t, ev, <-ch1)
	assert.Equal(t, ev, <-ch2)
	select {
	case got := <-other:
		t.Fatalf("subscriber of another showtime received %+v", got)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe(10)
	require.Equal(t, 1, h.Subscribers(10))

	cancel()
	assert.Equal(t, 0, h.Subscribers(10))
	_, open := <-ch
	assert.False(t, open)

	// Cancelling twice is safe.
	cancel()

	// Publishing to a showtime with no subscribers is a no-op.
	h.Publish(SeatEvent{Type: EventSeatFreed, ShowtimeID: 10, SeatID: 1})
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub()

	slow, cancelSlow := h.Subscribe(10)
	defer cancelSlow()
	fast, cancelFast := h.Subscribe(10)
	defer cancelFast()

	// Fill the slow subscriber's queue, then overflow it.  The fast
	// subscriber drains as events arrive and must survive.
	for i := 0; i <= subscriberBuffer; i++ {
		h.Publish(SeatEvent{Type: EventSeatFreed, ShowtimeID: 10, SeatID: uint64(i + 1)})
		select {
		case <-fast:
		case <-time.After(time.Second):
			t.Fatal("fast subscriber did not receive event")
		}
	}

	assert.Equal(t, 1, h.Subscribers(10), "slow subscriber was dropped")

	// The dropped subscriber's channel is closed once its buffer drains.
	var closed bool
	for !closed {
		select {
		case _, open := <-slow:
			if !open {
				closed = true
			}
		case <-time.After(time.Second):
			t.Fatal("slow subscriber channel never closed")
		}
	}
}
