package model

import "strconv"

// Seat types recognised by the pricing rules.  The premium for a type is
// applied on top of the showtime's base price when a ticket is created.
const (
	SeatTypeStandard = "STANDARD"
	SeatTypeVIP      = "VIP"
	SeatTypeCouple   = "COUPLE"
)

// Seat is one physical seat in a hall.  Seats belong to the hall layout
// maintained by the catalog service; the booking core treats them as
// read-only reference data when validating hold and booking requests.
//
// Fields:
//
//	ID         – primary key identifier.
//	HallID     – hall to which the seat belongs.
//	RowLabel   – alphabetical row label (A, B, ... AA).
//	SeatNumber – position within the row, starting at 1.
//	SeatType   – STANDARD, VIP or COUPLE.
//	IsActive   – inactive seats are excluded from sale (broken, removed).
type Seat struct {
	ID         uint64 // seats.id
	HallID     uint64 // seats.hall_id
	RowLabel   string // seats.row_label
	SeatNumber uint32 // seats.seat_number
	SeatType   string // seats.seat_type
	IsActive   bool   // seats.is_active
}

// Label returns the human-readable seat label, e.g. "A1".
func (s *Seat) Label() string {
	return s.RowLabel + strconv.FormatUint(uint64(s.SeatNumber), 10)
}

// TicketPriceCents computes the price of a ticket for the seat given the
// showtime's base price.  VIP seats carry a 50% premium and couple seats
// are double; unknown types fall back to the base price.
func (s *Seat) TicketPriceCents(baseCents uint32) uint32 {
	switch s.SeatType {
	case SeatTypeVIP:
		return baseCents + baseCents/2
	case SeatTypeCouple:
		return baseCents * 2
	default:
		return baseCents
	}
}
