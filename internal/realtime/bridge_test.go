package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T) (*Bridge, *Hub) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub := NewHub()
	b := NewBridge(rdb, hub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = b.Run(ctx) }()
	// Give the pattern subscription a moment to be established before the
	// test publishes anything.
	time.Sleep(50 * time.Millisecond)

	return b, hub
}

func TestBridgeRoundTrip(t *testing.T) {
	b, hub := newTestBridge(t)

	ch, cancel := hub.Subscribe(10)
	defer cancel()

	expires := time.Now().UTC().Add(5 * time.Minute).Truncate(time.Second)
	b.SeatHeld(10, 42, 7, expires)

	select {
	case ev := <-ch:
		assert.Equal(t, EventSeatHeld, ev.Type)
		assert.Equal(t, uint64(10), ev.ShowtimeID)
		assert.Equal(t, uint64(42), ev.SeatID)
		assert.Equal(t, uint64(7), ev.HeldBy)
		assert.Equal(t, SeatStatusHeld, ev.Status)
		require.NotNil(t, ev.ExpiresAt)
		assert.True(t, ev.ExpiresAt.Equal(expires))
	case <-time.After(2 * time.Second):
		t.Fatal("seat_held event never reached the hub")
	}

	b.SeatFreed(10, 42)
	select {
	case ev := <-ch:
		assert.Equal(t, EventSeatFreed, ev.Type)
		assert.Equal(t, uint64(42), ev.SeatID)
	case <-time.After(2 * time.Second):
		t.Fatal("seat_freed event never reached the hub")
	}
}

func TestBridgeIsolatesShowtimes(t *testing.T) {
	b, hub := newTestBridge(t)

	ch, cancel := hub.Subscribe(11)
	defer cancel()

	b.SeatFreed(10, 1)
	b.SeatFreed(11, 2)

	select {
	case ev := <-ch:
		assert.Equal(t, uint64(11), ev.ShowtimeID)
		assert.Equal(t, uint64(2), ev.SeatID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the hub")
	}
	select {
	case ev := <-ch:
		t.Fatalf("subscriber received event for another showtime: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
