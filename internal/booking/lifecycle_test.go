package booking

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/queue"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

type fakeEvents struct {
	confirmed []queue.BookingConfirmedEvent
	refunded  []queue.BookingRefundedEvent
}

func (f *fakeEvents) BookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) {
	f.confirmed = append(f.confirmed, ev)
}

func (f *fakeEvents) BookingRefunded(_ context.Context, ev queue.BookingRefundedEvent) {
	f.refunded = append(f.refunded, ev)
}

const (
	lcBooking  = uint64(55)
	lcShowtime = uint64(10)
	lcCustomer = uint64(7)
)

func newLifecycleFixture(t *testing.T) (*Lifecycle, sqlmock.Sqlmock, *fakeEvents) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events := &fakeEvents{}
	l := NewLifecycle(db,
		repository.NewBookingRepo(db), repository.NewShowtimeRepo(db), repository.NewVoucherRepo(db),
		events, 24*time.Hour)
	return l, mock, events
}

var bookingCols = []string{
	"id", "showtime_id", "customer_id", "status", "payment_status", "payment_ref",
	"promotion_code", "discount_cents", "final_amount_cents", "created_at", "updated_at",
}

var ticketCols = []string{
	"id", "booking_id", "showtime_id", "seat_id", "seat_label", "ticket_type", "price_cents", "created_at",
}

var concessionCols = []string{
	"id", "booking_id", "item_id", "name", "quantity", "unit_price_cents",
}

// expectBookingLoad mocks the FOR UPDATE booking read with two tickets and
// one concession line.
func expectBookingLoad(mock sqlmock.Sqlmock, status, payment string) {
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, showtime_id, customer_id").WithArgs(lcBooking).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(lcBooking, lcShowtime, lcCustomer, status, payment, nil, nil, 0, 3800, now, now))
	mock.ExpectQuery("SELECT id, booking_id, showtime_id, seat_id").WithArgs(lcBooking).
		WillReturnRows(sqlmock.NewRows(ticketCols).
			AddRow(1, lcBooking, lcShowtime, 1, "A1", model.SeatTypeStandard, 1000, now).
			AddRow(2, lcBooking, lcShowtime, 2, "A2", model.SeatTypeVIP, 1500, now))
	mock.ExpectQuery("SELECT id, booking_id, item_id").WithArgs(lcBooking).
		WillReturnRows(sqlmock.NewRows(concessionCols).
			AddRow(1, lcBooking, 1, "Popcorn L", 2, 650))
}

func expectShowtimeRow(mock sqlmock.Sqlmock, startsAt time.Time) {
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, hall_id, movie_title").WithArgs(lcShowtime).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "hall_id", "movie_title", "starts_at", "base_price_cents",
			"status", "total_seats", "available_seats", "created_at", "updated_at",
		}).AddRow(lcShowtime, 3, "Blade Runner", startsAt, 1000,
			model.ShowtimeScheduled, 100, 80, now, now))
}

func TestLifecycleConfirmPayment(t *testing.T) {
	l, mock, events := newLifecycleFixture(t)

	mock.ExpectBegin()
	expectBookingLoad(mock, model.BookingPending, model.PaymentUnpaid)
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Two tickets: available_seats goes down by 2.
	mock.ExpectExec("UPDATE showtimes").
		WithArgs(int32(-2), lcShowtime, int32(-2), int32(-2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// Post-commit showtime read enriches the published event.
	expectShowtimeRow(mock, time.Now().UTC().Add(48*time.Hour))

	b, err := l.ConfirmPayment(context.Background(), lcBooking, "pay_123")
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, model.PaymentPaid, b.PaymentStatus)
	require.NotNil(t, b.PaymentRef)
	assert.Equal(t, "pay_123", *b.PaymentRef)

	require.Len(t, events.confirmed, 1)
	ev := events.confirmed[0]
	assert.Equal(t, lcBooking, ev.BookingID)
	assert.Equal(t, []string{"A1", "A2"}, ev.SeatLabels)
	assert.Equal(t, "Blade Runner", ev.MovieTitle)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycleConfirmPaymentReplay(t *testing.T) {
	l, mock, events := newLifecycleFixture(t)

	mock.ExpectBegin()
	expectBookingLoad(mock, model.BookingConfirmed, model.PaymentPaid)
	// The guarded UPDATE matches no PENDING row.
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := l.ConfirmPayment(context.Background(), lcBooking, "pay_123")
	assert.ErrorIs(t, err, ErrInvalidBookingState)
	assert.Empty(t, events.confirmed, "a replayed callback publishes nothing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycleCancelOwnership(t *testing.T) {
	l, mock, _ := newLifecycleFixture(t)

	mock.ExpectBegin()
	expectBookingLoad(mock, model.BookingPending, model.PaymentUnpaid)
	mock.ExpectRollback()

	_, err := l.Cancel(context.Background(), lcBooking, 999)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycleCancelPending(t *testing.T) {
	l, mock, _ := newLifecycleFixture(t)

	mock.ExpectBegin()
	expectBookingLoad(mock, model.BookingPending, model.PaymentUnpaid)
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := l.Cancel(context.Background(), lcBooking, lcCustomer)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet(), "cancelling before payment never touches seat counters")
}

func TestLifecycleRefundWithVoucher(t *testing.T) {
	l, mock, events := newLifecycleFixture(t)

	mock.ExpectBegin()
	expectBookingLoad(mock, model.BookingConfirmed, model.PaymentPaid)
	expectShowtimeRow(mock, time.Now().UTC().Add(48*time.Hour))
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE showtimes").
		WithArgs(int32(2), lcShowtime, int32(2), int32(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO vouchers").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	b, v, err := l.RefundWithVoucher(context.Background(), lcBooking, lcCustomer)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRefunded, b.Status)
	require.NotNil(t, v)
	assert.Equal(t, uint32(2500), v.AmountCents, "voucher covers tickets only, never concessions")
	assert.NotEmpty(t, v.Code)

	require.Len(t, events.refunded, 1)
	assert.Equal(t, v.Code, events.refunded[0].VoucherCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycleRefundIdempotent(t *testing.T) {
	l, mock, events := newLifecycleFixture(t)

	issued := time.Now().UTC().Add(-time.Hour)
	mock.ExpectBegin()
	expectBookingLoad(mock, model.BookingRefunded, model.PaymentRefunded)
	mock.ExpectQuery("SELECT id, booking_id, code").WithArgs(lcBooking).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "code", "amount_cents", "issued_at"}).
			AddRow(9, lcBooking, "abcdef0123456789", 2500, issued))
	mock.ExpectRollback()

	b, v, err := l.RefundWithVoucher(context.Background(), lcBooking, lcCustomer)
	require.NoError(t, err)
	assert.Equal(t, model.BookingRefunded, b.Status)
	assert.Equal(t, "abcdef0123456789", v.Code)
	assert.Empty(t, events.refunded, "the repeat request publishes no second event")
	assert.NoError(t, mock.ExpectationsWereMet(), "no second voucher is written")
}

func TestLifecycleRefundTooLate(t *testing.T) {
	l, mock, _ := newLifecycleFixture(t)

	mock.ExpectBegin()
	expectBookingLoad(mock, model.BookingConfirmed, model.PaymentPaid)
	// Showtime starts within the 24h cutoff.
	expectShowtimeRow(mock, time.Now().UTC().Add(2*time.Hour))
	mock.ExpectRollback()

	_, _, err := l.RefundWithVoucher(context.Background(), lcBooking, lcCustomer)
	assert.ErrorIs(t, err, ErrRefundTooLate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycleAdminCancel(t *testing.T) {
	l, mock, _ := newLifecycleFixture(t)

	mock.ExpectBegin()
	expectBookingLoad(mock, model.BookingConfirmed, model.PaymentPaid)
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE showtimes").
		WithArgs(int32(2), lcShowtime, int32(2), int32(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := l.AdminCancel(context.Background(), lcBooking)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLifecycleCounterConflict(t *testing.T) {
	l, mock, _ := newLifecycleFixture(t)

	mock.ExpectBegin()
	expectBookingLoad(mock, model.BookingConfirmed, model.PaymentPaid)
	mock.ExpectExec("UPDATE bookings SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The guarded counter UPDATE matches no row (counter would overflow).
	mock.ExpectExec("UPDATE showtimes").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := l.AdminCancel(context.Background(), lcBooking)
	assert.ErrorIs(t, err, repository.ErrCounterConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
