package model

import "time"

// Voucher is a redeemable credit issued in place of a cash refund when a
// CONFIRMED booking is refunded.  Exactly one voucher may exist per booking;
// the amount covers tickets only, never concessions.
type Voucher struct {
	ID          uint64    // vouchers.id
	BookingID   uint64    // vouchers.booking_id (unique)
	Code        string    // vouchers.code – opaque redemption code
	AmountCents uint32    // vouchers.amount_cents
	IssuedAt    time.Time // vouchers.issued_at
}
