package repository

import (
	"context"
	"crypto/rand"  // secure random bytes for voucher codes
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// VoucherRepo provides data access to the vouchers table.  Vouchers are
// written once, inside the refund transition's transaction, and read back
// for display.  The UNIQUE constraint on booking_id is the durable backstop
// for refund idempotency.
type VoucherRepo struct {
	db *sql.DB
}

// NewVoucherRepo returns a VoucherRepo bound to the provided database.
func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{db: db} }

// NewVoucherCode generates a random hexadecimal redemption code.  The
// underlying call to crypto/rand ensures cryptographically secure bytes.
func NewVoucherCode() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateTx inserts a voucher within the provided transaction.  The caller
// must commit or roll back.  The generated ID is populated on v.
func (r *VoucherRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Voucher) error {
	const q = `INSERT INTO vouchers (booking_id, code, amount_cents) VALUES (?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, v.BookingID, v.Code, v.AmountCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// GetByBookingID returns the voucher issued for a booking, or
// ErrVoucherNotFound when the booking was never refunded.
func (r *VoucherRepo) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Voucher, error) {
	const q = `SELECT id, booking_id, code, amount_cents, issued_at FROM vouchers WHERE booking_id = ?`
	var v model.Voucher
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(&v.ID, &v.BookingID, &v.Code, &v.AmountCents, &v.IssuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByBookingIDTx is the transactional variant of GetByBookingID, used by
// the idempotent refund path to return the already-issued voucher.
func (r *VoucherRepo) GetByBookingIDTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Voucher, error) {
	const q = `SELECT id, booking_id, code, amount_cents, issued_at FROM vouchers WHERE booking_id = ?`
	var v model.Voucher
	err := tx.QueryRowContext(ctx, q, bookingID).Scan(&v.ID, &v.BookingID, &v.Code, &v.AmountCents, &v.IssuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
