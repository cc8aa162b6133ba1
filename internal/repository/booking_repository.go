package repository

import (
	"context"      // context for query lifetimes
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons
	"strings"      // strings builds IN (...) placeholder lists

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// BookingRepo provides data access to the bookings, tickets and
// booking_concessions tables.  A booking and its tickets are always written
// together in one transaction; tickets are never inserted or deleted on
// their own.  All timestamps are UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB for callers that need to begin
// transactions spanning multiple repositories.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// placeholders returns a "?, ?, ?" list of length n for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// CreateTx inserts the booking, its tickets and its concession line items
// within the provided transaction.  The caller must commit or roll back.
// On success the generated booking ID is populated on b and mirrored onto
// the ticket and concession rows.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const ins = `INSERT INTO bookings
	             (showtime_id, customer_id, status, payment_status, promotion_code, discount_cents, final_amount_cents)
	             VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins,
		b.ShowtimeID, b.CustomerID, b.Status, b.PaymentStatus, b.PromotionCode, b.DiscountCents, b.FinalAmountCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	// Tickets: one multi-row INSERT for the whole seat list.
	if len(b.Tickets) > 0 {
		q := `INSERT INTO tickets (booking_id, showtime_id, seat_id, seat_label, ticket_type, price_cents) VALUES `
		args := make([]interface{}, 0, len(b.Tickets)*6)
		for i := range b.Tickets {
			t := &b.Tickets[i]
			t.BookingID = b.ID
			if i > 0 {
				q += ","
			}
			q += "(?, ?, ?, ?, ?, ?)"
			args = append(args, t.BookingID, t.ShowtimeID, t.SeatID, t.SeatLabel, t.TicketType, t.PriceCents)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}

	if len(b.Concessions) > 0 {
		q := `INSERT INTO booking_concessions (booking_id, item_id, name, quantity, unit_price_cents) VALUES `
		args := make([]interface{}, 0, len(b.Concessions)*5)
		for i := range b.Concessions {
			c := &b.Concessions[i]
			c.BookingID = b.ID
			if i > 0 {
				q += ","
			}
			q += "(?, ?, ?, ?, ?)"
			args = append(args, c.BookingID, c.ItemID, c.Name, c.Quantity, c.UnitPriceCents)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

// liveStatuses are booking states whose tickets keep a seat off the market.
// CANCELLED and REFUNDED bookings release their seats back for sale.
const liveStatuses = `'PENDING', 'CONFIRMED'`

// TicketedSeatIDs returns the subset of seatIDs that already belong to a
// live (PENDING or CONFIRMED) booking on the given showtime.  An empty
// seatIDs slice returns an empty result.
func (r *BookingRepo) TicketedSeatIDs(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]uint64, error) {
	return ticketedSeatIDs(ctx, r.db, showtimeID, seatIDs, false)
}

// TicketedSeatIDsTx is like TicketedSeatIDs but runs inside the provided
// transaction and locks the matched ticket rows with FOR UPDATE.  The
// committer uses it as the defense-in-depth re-check before writing a new
// booking.
func (r *BookingRepo) TicketedSeatIDsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) ([]uint64, error) {
	return ticketedSeatIDs(ctx, tx, showtimeID, seatIDs, true)
}

// querier abstracts *sql.DB and *sql.Tx for read helpers shared between
// transactional and non-transactional call sites.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func ticketedSeatIDs(ctx context.Context, q querier, showtimeID uint64, seatIDs []uint64, forUpdate bool) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT t.seat_id
	          FROM tickets t
	          JOIN bookings b ON b.id = t.booking_id
	          WHERE t.showtime_id = ? AND b.status IN (` + liveStatuses + `)
	            AND t.seat_id IN (` + placeholders(len(seatIDs)) + `)`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for _, sid := range seatIDs {
		args = append(args, sid)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var taken []uint64
	for rows.Next() {
		var sid uint64
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		taken = append(taken, sid)
	}
	return taken, rows.Err()
}

// TicketedSeatSet returns every seat of the showtime that belongs to a live
// booking, keyed by seat ID.  The seat-map snapshot uses it to mark seats
// SOLD for newly connecting clients.
func (r *BookingRepo) TicketedSeatSet(ctx context.Context, showtimeID uint64) (map[uint64]struct{}, error) {
	const q = `SELECT t.seat_id
	           FROM tickets t
	           JOIN bookings b ON b.id = t.booking_id
	           WHERE t.showtime_id = ? AND b.status IN (` + liveStatuses + `)`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(map[uint64]struct{})
	for rows.Next() {
		var sid uint64
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		set[sid] = struct{}{}
	}
	return set, rows.Err()
}

const bookingColumns = `id, showtime_id, customer_id, status, payment_status, payment_ref, promotion_code, discount_cents, final_amount_cents, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.ShowtimeID, &b.CustomerID, &b.Status, &b.PaymentStatus,
		&b.PaymentRef, &b.PromotionCode, &b.DiscountCents, &b.FinalAmountCents, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByID retrieves one booking with its tickets and concessions.  Returns
// ErrBookingNotFound when no row exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, r.db, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetByIDForCustomer is like GetByID but additionally enforces ownership:
// a booking belonging to a different customer yields ErrForbidden.
func (r *BookingRepo) GetByIDForCustomer(ctx context.Context, id, customerID uint64) (*model.Booking, error) {
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != customerID {
		return nil, ErrForbidden
	}
	return b, nil
}

// GetByIDTx loads a booking inside the provided transaction with FOR
// UPDATE, serializing lifecycle transitions on the same row.  Tickets are
// loaded as well since transitions need the ticket count and value.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, tx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// loadLines populates Tickets and Concessions on the booking.
func (r *BookingRepo) loadLines(ctx context.Context, q querier, b *model.Booking) error {
	const tq = `SELECT id, booking_id, showtime_id, seat_id, seat_label, ticket_type, price_cents, created_at
	            FROM tickets WHERE booking_id = ? ORDER BY seat_label`
	rows, err := q.QueryContext(ctx, tq, b.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.BookingID, &t.ShowtimeID, &t.SeatID, &t.SeatLabel, &t.TicketType, &t.PriceCents, &t.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		b.Tickets = append(b.Tickets, t)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	const cq = `SELECT id, booking_id, item_id, name, quantity, unit_price_cents
	            FROM booking_concessions WHERE booking_id = ?`
	rows, err = q.QueryContext(ctx, cq, b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Concession
		if err := rows.Scan(&c.ID, &c.BookingID, &c.ItemID, &c.Name, &c.Quantity, &c.UnitPriceCents); err != nil {
			return err
		}
		b.Concessions = append(b.Concessions, c)
	}
	return rows.Err()
}

// ListByCustomer returns all bookings of a customer, newest first, each
// with its tickets loaded.
func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, err
	}
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadLines(ctx, r.db, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateStatusTx performs the guarded lifecycle transition
// from -> to on one booking row inside the provided transaction.  The WHERE
// clause carries the expected source status, so a row whose status has
// already moved on is simply not matched; the boolean result reports
// whether the transition was applied.  paymentStatus and paymentRef are
// written alongside the status when non-zero.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to, paymentStatus string, paymentRef *string) (bool, error) {
	q := `UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP()`
	args := []interface{}{to}
	if paymentStatus != "" {
		q += `, payment_status = ?`
		args = append(args, paymentStatus)
	}
	if paymentRef != nil {
		q += `, payment_ref = ?`
		args = append(args, *paymentRef)
	}
	q += ` WHERE id = ? AND status = ?`
	args = append(args, id, from)
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
