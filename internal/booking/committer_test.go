package booking

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-booking/internal/hold"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

type fakeHolds struct {
	heldSeats map[uint64]uint64 // seatID -> holder
	heldByErr error
	released  []uint64
}

func (f *fakeHolds) HeldBy(_ context.Context, _ uint64, seatIDs []uint64, userID uint64) error {
	if f.heldByErr != nil {
		return f.heldByErr
	}
	for _, sid := range seatIDs {
		if f.heldSeats[sid] != userID {
			return hold.ErrSeatNotHeld
		}
	}
	return nil
}

func (f *fakeHolds) ReleaseCommitted(_ context.Context, _ uint64, seatIDs []uint64, _ uint64) error {
	f.released = append(f.released, seatIDs...)
	return nil
}

type fakeCatalog struct {
	items map[uint64]struct {
		name string
		unit uint32
	}
}

func (f *fakeCatalog) Price(_ context.Context, itemID uint64) (string, uint32, error) {
	item, ok := f.items[itemID]
	if !ok {
		return "", 0, sql.ErrNoRows
	}
	return item.name, item.unit, nil
}

type fakePromotions struct {
	discount uint32
}

func (f *fakePromotions) Discount(_ context.Context, _ string, subtotal uint32) (uint32, error) {
	return f.discount, nil
}

const (
	commitShowtime = uint64(10)
	commitHall     = uint64(3)
	commitCustomer = uint64(7)
	basePrice      = uint32(1000)
)

func newCommitterFixture(t *testing.T) (*Committer, sqlmock.Sqlmock, *fakeHolds) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	holds := &fakeHolds{heldSeats: map[uint64]uint64{}}
	catalog := &fakeCatalog{items: map[uint64]struct {
		name string
		unit uint32
	}{
		1: {"Popcorn L", 650},
	}}
	promos := &fakePromotions{discount: 300}

	c := NewCommitter(db, holds,
		repository.NewShowtimeRepo(db), repository.NewSeatRepo(db), repository.NewBookingRepo(db),
		catalog, promos)
	return c, mock, holds
}

func expectShowtimeLookup(mock sqlmock.Sqlmock) {
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "hall_id", "movie_title", "starts_at", "base_price_cents",
		"status", "total_seats", "available_seats", "created_at", "updated_at",
	}).AddRow(commitShowtime, commitHall, "Blade Runner", now.Add(48*time.Hour), basePrice,
		model.ShowtimeScheduled, 100, 80, now, now)
	mock.ExpectQuery("SELECT id, hall_id, movie_title").WithArgs(commitShowtime).WillReturnRows(rows)
}

func expectSeatLookup(mock sqlmock.Sqlmock) {
	rows := sqlmock.NewRows([]string{"id", "hall_id", "row_label", "seat_number", "seat_type", "is_active"}).
		AddRow(1, commitHall, "A", 1, model.SeatTypeStandard, true).
		AddRow(2, commitHall, "A", 2, model.SeatTypeVIP, true)
	mock.ExpectQuery("SELECT id, hall_id, row_label").WithArgs(commitHall).WillReturnRows(rows)
}

func TestCommitterCreate(t *testing.T) {
	c, mock, holds := newCommitterFixture(t)
	holds.heldSeats = map[uint64]uint64{1: commitCustomer, 2: commitCustomer}

	expectShowtimeLookup(mock)
	expectSeatLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT t.seat_id").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}))
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(55, 1))
	mock.ExpectExec("INSERT INTO tickets").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec("INSERT INTO booking_concessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	orders := []ConcessionOrder{{ItemID: 1, Quantity: 2}}
	b, err := c.Create(context.Background(), commitShowtime, commitCustomer, []uint64{1, 2}, orders, "SUMMER10")
	require.NoError(t, err)

	assert.Equal(t, uint64(55), b.ID)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, model.PaymentUnpaid, b.PaymentStatus)
	require.Len(t, b.Tickets, 2)
	assert.Equal(t, basePrice, b.Tickets[0].PriceCents, "standard seat sells at base price")
	assert.Equal(t, basePrice+basePrice/2, b.Tickets[1].PriceCents, "vip seat carries the premium")
	assert.Equal(t, "A1", b.Tickets[0].SeatLabel)

	// tickets 1000+1500, concessions 2x650, minus promo 300
	assert.Equal(t, uint32(300), b.DiscountCents)
	assert.Equal(t, uint32(1000+1500+1300-300), b.FinalAmountCents)

	assert.ElementsMatch(t, []uint64{1, 2}, holds.released, "holds consumed after commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitterCreateSeatNotHeld(t *testing.T) {
	c, mock, holds := newCommitterFixture(t)
	// Seat 2 held by someone else.
	holds.heldSeats = map[uint64]uint64{1: commitCustomer, 2: 99}

	expectShowtimeLookup(mock)
	expectSeatLookup(mock)

	_, err := c.Create(context.Background(), commitShowtime, commitCustomer, []uint64{1, 2}, nil, "")
	assert.ErrorIs(t, err, hold.ErrSeatNotHeld)
	assert.Empty(t, holds.released)
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing is written when any seat lacks a hold")
}

func TestCommitterCreateValidation(t *testing.T) {
	c, _, _ := newCommitterFixture(t)
	ctx := context.Background()

	_, err := c.Create(ctx, commitShowtime, commitCustomer, nil, nil, "")
	assert.ErrorIs(t, err, ErrNoSeats)

	_, err = c.Create(ctx, commitShowtime, commitCustomer, []uint64{1, 1}, nil, "")
	assert.ErrorIs(t, err, ErrDuplicateSeat)
}

func TestCommitterCreateUnknownSeat(t *testing.T) {
	c, mock, holds := newCommitterFixture(t)
	holds.heldSeats = map[uint64]uint64{999: commitCustomer}

	expectShowtimeLookup(mock)
	expectSeatLookup(mock)

	_, err := c.Create(context.Background(), commitShowtime, commitCustomer, []uint64{999}, nil, "")
	assert.ErrorIs(t, err, hold.ErrSeatUnknown)
}

func TestCommitterCreateNotSellable(t *testing.T) {
	c, mock, _ := newCommitterFixture(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "hall_id", "movie_title", "starts_at", "base_price_cents",
		"status", "total_seats", "available_seats", "created_at", "updated_at",
	}).AddRow(commitShowtime, commitHall, "Blade Runner", now.Add(-time.Hour), basePrice,
		model.ShowtimeScheduled, 100, 80, now, now)
	mock.ExpectQuery("SELECT id, hall_id, movie_title").WithArgs(commitShowtime).WillReturnRows(rows)

	_, err := c.Create(context.Background(), commitShowtime, commitCustomer, []uint64{1}, nil, "")
	assert.ErrorIs(t, err, hold.ErrShowtimeNotSellable)
}

func TestCommitterCreateTicketedReCheck(t *testing.T) {
	c, mock, holds := newCommitterFixture(t)
	holds.heldSeats = map[uint64]uint64{1: commitCustomer, 2: commitCustomer}

	expectShowtimeLookup(mock)
	expectSeatLookup(mock)
	mock.ExpectBegin()
	// The in-transaction re-check finds seat 2 already ticketed.
	mock.ExpectQuery("SELECT t.seat_id").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}).AddRow(2))
	mock.ExpectRollback()

	_, err := c.Create(context.Background(), commitShowtime, commitCustomer, []uint64{1, 2}, nil, "")
	assert.ErrorIs(t, err, hold.ErrSeatUnavailable)
	assert.Empty(t, holds.released, "holds stay live when the commit fails")
	assert.NoError(t, mock.ExpectationsWereMet())
}
