// Package repository contains data access logic for the booking core.  This
// file covers showtimes.  The catalog service creates and edits showtimes;
// the booking core reads them as reference data and maintains only the
// seat-availability counters.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// ShowtimeRepo manages persistence for showtimes.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a ShowtimeRepo bound to the provided database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *ShowtimeRepo) DB() *sql.DB { return r.db }

const showtimeColumns = `id, hall_id, movie_title, starts_at, base_price_cents, status, total_seats, available_seats, created_at, updated_at`

// scanShowtime reads one showtime row from the given scanner.
func scanShowtime(row interface{ Scan(...any) error }) (*model.Showtime, error) {
	var s model.Showtime
	err := row.Scan(&s.ID, &s.HallID, &s.MovieTitle, &s.StartsAt, &s.BasePriceCents,
		&s.Status, &s.TotalSeats, &s.AvailableSeats, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a showtime by its ID.  It returns ErrShowtimeNotFound
// when no row exists.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT ` + showtimeColumns + ` FROM showtimes WHERE id = ?`
	s, err := scanShowtime(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	return s, err
}

// GetByIDTx is like GetByID but runs inside the provided transaction and
// locks the row with FOR UPDATE so that concurrent lifecycle transitions on
// bookings of the same showtime serialize their counter updates.
func (r *ShowtimeRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Showtime, error) {
	const q = `SELECT ` + showtimeColumns + ` FROM showtimes WHERE id = ? FOR UPDATE`
	s, err := scanShowtime(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	return s, err
}

// AdjustAvailableSeatsTx adds delta (which may be negative) to the
// showtime's available_seats counter inside the provided transaction.  The
// UPDATE is guarded so the counter can never leave the [0, total_seats]
// range; a guard miss returns ErrCounterConflict without modifying the row.
func (r *ShowtimeRepo) AdjustAvailableSeatsTx(ctx context.Context, tx *sql.Tx, id uint64, delta int32) error {
	const q = `UPDATE showtimes
	           SET available_seats = available_seats + ?
	           WHERE id = ?
	             AND available_seats + ? >= 0
	             AND available_seats + ? <= total_seats`
	res, err := tx.ExecContext(ctx, q, delta, id, delta, delta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCounterConflict
	}
	return nil
}
