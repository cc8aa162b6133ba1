package hold

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// ShowtimeSource supplies showtime reference data.  *repository.ShowtimeRepo
// satisfies it.
type ShowtimeSource interface {
	GetByID(ctx context.Context, id uint64) (*model.Showtime, error)
}

// SeatSource supplies hall layouts.  *repository.SeatRepo satisfies it.
type SeatSource interface {
	MapByHall(ctx context.Context, hallID uint64) (map[uint64]model.Seat, error)
}

// TicketSource answers which seats are already ticketed under a live
// booking.  *repository.BookingRepo satisfies it.
type TicketSource interface {
	TicketedSeatIDs(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]uint64, error)
}

// Notifier receives hold state changes for fan-out to clients watching the
// showtime's seat map.  Implementations must not block; delivery is best
// effort and the TTL remains the correctness backstop.
type Notifier interface {
	SeatHeld(showtimeID, seatID, holderID uint64, expiresAt time.Time)
	SeatFreed(showtimeID, seatID uint64)
}

// Manager mediates all seat-hold state changes; it is the single source of
// truth for "who currently may book seat X on showtime Y".  The manager
// holds no state of its own – every mutation is delegated to the store's
// atomic conditional write – so it is safe to run on any number of
// replicas.
type Manager struct {
	store     *Store
	showtimes ShowtimeSource
	seats     SeatSource
	tickets   TicketSource
	notifier  Notifier
	now       func() time.Time
}

// NewManager constructs a Manager.  notifier may be nil when no real-time
// fan-out is wanted (tests, batch tools).
func NewManager(store *Store, showtimes ShowtimeSource, seats SeatSource, tickets TicketSource, notifier Notifier) *Manager {
	if store == nil || showtimes == nil || seats == nil || tickets == nil {
		panic("nil dependency passed to hold.NewManager")
	}
	return &Manager{
		store:     store,
		showtimes: showtimes,
		seats:     seats,
		tickets:   tickets,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TTL returns the configured hold duration, used by handlers to report the
// checkout countdown.
func (m *Manager) TTL() time.Duration { return m.store.TTL() }

// Acquire takes (or renews) the hold on one seat for one user.
//
// It fails with ErrShowtimeNotSellable when the showtime has started or is
// not SCHEDULED, ErrSeatUnknown when the seat is not part of the hall
// layout, ErrSeatUnavailable when the seat already belongs to a live
// booking, ErrSeatAlreadyHeld when a different user holds it, and
// ErrHoldLimitExceeded at the per-user cap.  Acquiring a seat already held
// by the same user is idempotent and simply renews the TTL.
func (m *Manager) Acquire(ctx context.Context, showtimeID, seatID, userID uint64) (*model.SeatHold, error) {
	st, err := m.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if !st.Sellable(m.now()) {
		return nil, ErrShowtimeNotSellable
	}
	layout, err := m.seats.MapByHall(ctx, st.HallID)
	if err != nil {
		return nil, err
	}
	if _, ok := layout[seatID]; !ok {
		return nil, fmt.Errorf("%w: seat %d", ErrSeatUnknown, seatID)
	}
	// A sold seat must fail with SeatUnavailable, not SeatAlreadyHeld: it
	// will not free up when a TTL lapses, and the client should stop
	// retrying it.
	taken, err := m.tickets.TicketedSeatIDs(ctx, showtimeID, []uint64{seatID})
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, ErrSeatUnavailable
	}

	outcome, h, err := m.store.Acquire(ctx, showtimeID, seatID, userID)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case OutcomeConflict:
		return nil, ErrSeatAlreadyHeld
	case OutcomeCapExceeded:
		return nil, ErrHoldLimitExceeded
	}
	if m.notifier != nil {
		m.notifier.SeatHeld(showtimeID, seatID, userID, h.ExpiresAt)
	}
	return h, nil
}

// Release drops the user's hold on one seat.  It reports false when there
// was nothing to release (no hold, or held by someone else); that is a
// no-op, not an error.  Subscribers are notified that the seat is free.
func (m *Manager) Release(ctx context.Context, showtimeID, seatID, userID uint64) (bool, error) {
	released, err := m.store.Release(ctx, showtimeID, seatID, userID)
	if err != nil {
		return false, err
	}
	if released && m.notifier != nil {
		m.notifier.SeatFreed(showtimeID, seatID)
	}
	return released, nil
}

// ReleaseAll drops every hold the user owns on the showtime, returning the
// released seat IDs.  Used on disconnect, cancel and checkout abandonment.
func (m *Manager) ReleaseAll(ctx context.Context, showtimeID, userID uint64) ([]uint64, error) {
	released, err := m.store.ReleaseAll(ctx, showtimeID, userID)
	if err != nil {
		return nil, err
	}
	if m.notifier != nil {
		for _, sid := range released {
			m.notifier.SeatFreed(showtimeID, sid)
		}
	}
	return released, nil
}

// ReleaseCommitted clears the holds backing a just-committed booking.  No
// seat_freed events are emitted: the seats are ticketed now, and snapshots
// will report them as sold rather than free.
func (m *Manager) ReleaseCommitted(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64) error {
	for _, sid := range seatIDs {
		if _, err := m.store.Release(ctx, showtimeID, sid, userID); err != nil {
			return err
		}
	}
	return nil
}

// ListHeld returns the current holds of a showtime for rendering seat-map
// state to newly connecting clients.
func (m *Manager) ListHeld(ctx context.Context, showtimeID uint64) ([]model.SeatHold, error) {
	return m.store.ListHeld(ctx, showtimeID)
}

// HeldBy verifies that every listed seat has a live hold owned by userID.
// The check is all-or-nothing: the first seat that is unheld or held by a
// different user fails the whole call with ErrSeatNotHeld naming the seat.
func (m *Manager) HeldBy(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64) error {
	holders, err := m.store.HoldersFor(ctx, showtimeID, seatIDs)
	if err != nil {
		return err
	}
	for _, sid := range seatIDs {
		if holders[sid] != userID {
			return fmt.Errorf("%w: seat %d", ErrSeatNotHeld, sid)
		}
	}
	return nil
}
