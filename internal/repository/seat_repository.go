package repository // repository for hall seat reference data

import (
	"context"      // context for managing deadlines
	"database/sql" // sql provides DB interfaces

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// SeatRepo encapsulates read access to the seats table.  Hall layouts are
// owned by the catalog service; the booking core only reads them to
// validate that requested seats exist and are active, and to price tickets
// by seat type.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo given a DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// ListByHall returns all active seats of a hall ordered by row and number.
func (r *SeatRepo) ListByHall(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	const q = `SELECT id, hall_id, row_label, seat_number, seat_type, is_active
	           FROM seats
	           WHERE hall_id = ? AND is_active = 1
	           ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, hallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.HallID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.IsActive); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// MapByHall returns the active seats of a hall keyed by seat ID.  Callers
// use the map to validate seat membership in a hall layout and to look up
// labels and types when building tickets.
func (r *SeatRepo) MapByHall(ctx context.Context, hallID uint64) (map[uint64]model.Seat, error) {
	seats, err := r.ListByHall(ctx, hallID)
	if err != nil {
		return nil, err
	}
	m := make(map[uint64]model.Seat, len(seats))
	for _, s := range seats {
		m[s.ID] = s
	}
	return m, nil
}
