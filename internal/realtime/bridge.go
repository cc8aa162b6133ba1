package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces the Redis pub/sub channels carrying seat events,
// one channel per showtime.
const channelPrefix = "seatmap:"

func channelFor(showtimeID uint64) string {
	return channelPrefix + strconv.FormatUint(showtimeID, 10)
}

// Bridge connects the hold manager to the local hub through Redis pub/sub.
// The manager publishes events to Redis; every replica's bridge subscribes
// and re-publishes into its own hub, so websocket clients see seat changes
// made through any replica.  Bridge implements hold.Notifier.
type Bridge struct {
	rdb *redis.Client
	hub *Hub
}

// NewBridge builds a Bridge over the given client and hub.
func NewBridge(rdb *redis.Client, hub *Hub) *Bridge {
	return &Bridge{rdb: rdb, hub: hub}
}

// SeatHeld publishes a seat_held event for the showtime's channel.
func (b *Bridge) SeatHeld(showtimeID, seatID, holderID uint64, expiresAt time.Time) {
	b.publish(SeatEvent{
		Type:       EventSeatHeld,
		ShowtimeID: showtimeID,
		SeatID:     seatID,
		Status:     SeatStatusHeld,
		HeldBy:     holderID,
		ExpiresAt:  &expiresAt,
	})
}

// SeatFreed publishes a seat_freed event for the showtime's channel.
func (b *Bridge) SeatFreed(showtimeID, seatID uint64) {
	b.publish(SeatEvent{
		Type:       EventSeatFreed,
		ShowtimeID: showtimeID,
		SeatID:     seatID,
		Status:     SeatStatusFree,
	})
}

// publish marshals and sends one event.  Failures are logged and dropped:
// notification delivery is best effort, the hold TTL backstops correctness.
func (b *Bridge) publish(ev SeatEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("seatmap-bridge: marshal event showtime=%d seat=%d: %v", ev.ShowtimeID, ev.SeatID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, channelFor(ev.ShowtimeID), body).Err(); err != nil {
		log.Printf("seatmap-bridge: publish showtime=%d seat=%d: %v", ev.ShowtimeID, ev.SeatID, err)
	}
}

// Run subscribes to every showtime channel and pumps incoming events into
// the hub until the context is cancelled.  It returns only on cancellation
// or when the subscription is torn down underneath it; main restarts it in
// the latter case.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			var ev SeatEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("seatmap-bridge: bad payload on %s: %v", msg.Channel, err)
				continue
			}
			if ev.ShowtimeID == 0 {
				// Recover the showtime from the channel name if the payload
				// omitted it.
				if id, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, channelPrefix), 10, 64); err == nil {
					ev.ShowtimeID = id
				}
			}
			b.hub.Publish(ev)
		}
	}
}

// StartBridge runs the bridge in a reconnect loop with backoff, mirroring
// the queue consumer's behaviour: transient Redis failures must not take
// the notifier down for good.
func StartBridge(ctx context.Context, b *Bridge) {
	backoff := time.Second
	for {
		err := b.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("seatmap-bridge: run ended: %v; reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
