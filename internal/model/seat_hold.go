package model

import "time"

// SeatHold represents a temporary, exclusive claim on one seat for one
// showtime during checkout.  Holds live only in the hold store (Redis) and
// expire automatically at ExpiresAt; they are never persisted to the
// database.  A hold is not a commitment to pay – it only guarantees that no
// other user can book the seat while it is live.
type SeatHold struct {
	ShowtimeID uint64    // showtime the seat belongs to
	SeatID     uint64    // seat being held
	HolderID   uint64    // customer who owns the hold
	ExpiresAt  time.Time // when the hold lapses without renewal
}

// Remaining returns the time left on the hold at the given instant, never
// negative.  Clients display this as a checkout countdown.
func (h *SeatHold) Remaining(now time.Time) time.Duration {
	d := h.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
