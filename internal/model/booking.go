package model

import "time"

// Booking status values.  PENDING is the initial state after commit;
// CONFIRMED is reached on payment success; CANCELLED and REFUNDED are
// terminal.  See the lifecycle manager for the permitted transitions.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
	BookingRefunded  = "REFUNDED"
)

// Payment status values tracked alongside the booking status.  The payment
// provider owns its own state machine; this field only mirrors the outcome
// it reported.
const (
	PaymentUnpaid   = "UNPAID"
	PaymentPaid     = "PAID"
	PaymentFailed   = "FAILED"
	PaymentRefunded = "REFUNDED"
)

// Booking is a durable, billable record committing a customer to one or
// more seats on one showtime.  Its ticket set is immutable after creation;
// only status, payment fields and the updated_at timestamp change
// afterwards.
//
// Fields:
//
//	ID               – primary key identifier.
//	ShowtimeID       – showtime being booked.
//	CustomerID       – customer who committed the booking.
//	Status           – PENDING, CONFIRMED, CANCELLED or REFUNDED.
//	PaymentStatus    – UNPAID, PAID, FAILED or REFUNDED.
//	PaymentRef       – external payment reference, if any.
//	PromotionCode    – promotion code supplied at checkout, if any.
//	DiscountCents    – discount applied by the promotion collaborator.
//	FinalAmountCents – tickets plus concessions minus discount, in cents.
type Booking struct {
	ID               uint64       // bookings.id
	ShowtimeID       uint64       // bookings.showtime_id
	CustomerID       uint64       // bookings.customer_id
	Status           string       // bookings.status
	PaymentStatus    string       // bookings.payment_status
	PaymentRef       *string      // bookings.payment_ref (nullable)
	PromotionCode    *string      // bookings.promotion_code (nullable)
	DiscountCents    uint32       // bookings.discount_cents
	FinalAmountCents uint32       // bookings.final_amount_cents
	CreatedAt        time.Time    // bookings.created_at
	UpdatedAt        time.Time    // bookings.updated_at
	Tickets          []Ticket     // one per seat, created atomically with the booking
	Concessions      []Concession // snack/drink line items, excluded from refunds
}

// TicketTotalCents sums the ticket prices of the booking.  This is the
// refundable value; concessions are excluded.
func (b *Booking) TicketTotalCents() uint32 {
	var total uint32
	for _, t := range b.Tickets {
		total += t.PriceCents
	}
	return total
}

// Terminal reports whether the booking is in a state with no outgoing
// transitions.
func (b *Booking) Terminal() bool {
	return b.Status == BookingCancelled || b.Status == BookingRefunded
}

// Ticket is one seat within a booking.  Tickets are owned exclusively by
// their parent booking and are never created or deleted independently.
type Ticket struct {
	ID         uint64    // tickets.id
	BookingID  uint64    // tickets.booking_id
	ShowtimeID uint64    // tickets.showtime_id
	SeatID     uint64    // tickets.seat_id
	SeatLabel  string    // denormalized label for display ("A1")
	TicketType string    // seat type at time of sale (STANDARD, VIP, COUPLE)
	PriceCents uint32    // tickets.price_cents
	CreatedAt  time.Time // tickets.created_at
}

// Concession is a snack or drink line item sold with a booking.  Prices are
// supplied by the catalog collaborator at commit time and frozen on the row.
type Concession struct {
	ID             uint64 // booking_concessions.id
	BookingID      uint64 // booking_concessions.booking_id
	ItemID         uint64 // booking_concessions.item_id
	Name           string // booking_concessions.name
	Quantity       uint32 // booking_concessions.quantity
	UnitPriceCents uint32 // booking_concessions.unit_price_cents
}

// TotalCents returns quantity times unit price for the line item.
func (c *Concession) TotalCents() uint32 {
	return c.Quantity * c.UnitPriceCents
}
