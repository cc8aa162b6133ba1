package realtime

import "sync"

// subscriberBuffer is the per-subscriber event queue length.  A subscriber
// that falls this far behind is dropped rather than allowed to stall the
// fan-out; its connection handler observes the closed channel and ends the
// session, and the client reconnects to a fresh snapshot.
const subscriberBuffer = 16

type subscriber struct {
	ch   chan SeatEvent
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub is the in-process subscriber registry, keyed by showtime.  The bridge
// is its only publisher, so events reach every subscriber of a showtime in
// the order they arrived from Redis – which preserves per-seat ordering as
// applied by the hold store.
type Hub struct {
	mu   sync.Mutex
	subs map[uint64]map[*subscriber]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]map[*subscriber]struct{})}
}

// Subscribe registers interest in one showtime's seat events.  The returned
// cancel function must be called when the consumer goes away; it is safe to
// call more than once.  The event channel is closed on cancel and when the
// hub drops a subscriber that stopped draining it.
func (h *Hub) Subscribe(showtimeID uint64) (<-chan SeatEvent, func()) {
	sub := &subscriber{ch: make(chan SeatEvent, subscriberBuffer)}
	h.mu.Lock()
	set, ok := h.subs[showtimeID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[showtimeID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.remove(showtimeID, sub)
	}
	return sub.ch, cancel
}

func (h *Hub) remove(showtimeID uint64, sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[showtimeID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, showtimeID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Publish fans the event out to every subscriber of its showtime without
// blocking: a subscriber with a full queue is dropped.
func (h *Hub) Publish(ev SeatEvent) {
	h.mu.Lock()
	set := h.subs[ev.ShowtimeID]
	targets := make([]*subscriber, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- ev:
		default:
			h.remove(ev.ShowtimeID, sub)
		}
	}
}

// Subscribers reports how many consumers are watching a showtime.
func (h *Hub) Subscribers(showtimeID uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[showtimeID])
}
