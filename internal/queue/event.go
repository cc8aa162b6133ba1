// Package queue defines message payloads exchanged over the message broker
// and the background consumer that processes them.
package queue

// BookingConfirmedEvent is published when a payment callback moves a
// booking to CONFIRMED.  It carries enough information for downstream
// consumers to log, notify or trigger analytics without querying the
// primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64   `json:"booking_id"`
	CustomerID       uint64   `json:"customer_id"`
	ShowtimeID       uint64   `json:"showtime_id"`
	MovieTitle       string   `json:"movie_title"`
	StartsAt         string   `json:"starts_at"`
	SeatLabels       []string `json:"seats"`
	FinalAmountCents uint32   `json:"final_amount_cents"`
	PaymentRef       string   `json:"payment_ref"`
	ConfirmedAt      string   `json:"confirmed_at"`
}

// BookingRefundedEvent is published when a CONFIRMED booking is refunded
// and a voucher issued in place of a cash refund.
type BookingRefundedEvent struct {
	BookingID    uint64 `json:"booking_id"`
	CustomerID   uint64 `json:"customer_id"`
	ShowtimeID   uint64 `json:"showtime_id"`
	VoucherCode  string `json:"voucher_code"`
	VoucherCents uint32 `json:"voucher_cents"`
	RefundedAt   string `json:"refunded_at"`
}
