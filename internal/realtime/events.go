// Package realtime bridges interactive clients to the hold manager and
// broadcasts seat-state changes to everyone viewing the same showtime.
// Events flow hold manager -> Redis pub/sub -> local hub -> websocket
// clients, so every replica's clients observe every event in the order the
// hold store applied them for a given seat.  Delivery is best effort: the
// hold TTL, not the event stream, is the correctness backstop.
package realtime

import "time"

// Event types carried on the seat-map channel.
const (
	EventSeatHeld  = "seat_held"
	EventSeatFreed = "seat_freed"
	EventSnapshot  = "snapshot"
	EventError     = "error"
)

// Seat status values as rendered on a seat map.
const (
	SeatStatusFree = "FREE"
	SeatStatusHeld = "HELD"
	SeatStatusSold = "SOLD"
)

// SeatState is one seat's position in a snapshot.
type SeatState struct {
	SeatID    uint64     `json:"seat_id"`
	Label     string     `json:"label"`
	Status    string     `json:"status"`
	HeldBy    uint64     `json:"held_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SeatEvent is the wire format for everything sent to seat-map subscribers:
// individual hold/release events, the initial snapshot on connect and
// request-scoped errors.  Unused fields are omitted from the JSON.
type SeatEvent struct {
	Type       string      `json:"type"`
	ShowtimeID uint64      `json:"showtime_id"`
	SeatID     uint64      `json:"seat_id,omitempty"`
	Status     string      `json:"status,omitempty"`
	HeldBy     uint64      `json:"held_by,omitempty"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Seats      []SeatState `json:"seats,omitempty"`
}
