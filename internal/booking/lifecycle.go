package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/queue"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// Events receives booking lifecycle events for publication to the message
// broker.  Delivery is best effort and happens after the durable
// transition commits; *queue_publisher.Publisher satisfies it.
type Events interface {
	BookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent)
	BookingRefunded(ctx context.Context, ev queue.BookingRefundedEvent)
}

// Lifecycle drives bookings through their state machine:
//
//	PENDING   -> CONFIRMED  (payment success; available_seats -= tickets)
//	PENDING   -> CANCELLED  (payment failure or user cancel; no counter change)
//	CONFIRMED -> REFUNDED   (user refund before cutoff; counter restored, voucher issued)
//	CONFIRMED -> CANCELLED  (administrative cancel; counter restored, no voucher)
//
// CANCELLED and REFUNDED are terminal.  Every transition is one durable
// read-modify-write guarded by the booking's current status: the UPDATE
// carries the expected source state, so double-processing the same payment
// callback or refund request finds zero matching rows and fails with
// ErrInvalidBookingState (refunding an already-REFUNDED booking is the one
// deliberate exception – it is an idempotent no-op success).
type Lifecycle struct {
	db           *sql.DB
	bookings     *repository.BookingRepo
	showtimes    *repository.ShowtimeRepo
	vouchers     *repository.VoucherRepo
	events       Events
	refundCutoff time.Duration
	now          func() time.Time
}

// NewLifecycle constructs a Lifecycle.  events may be nil when no broker is
// wired (tests).
func NewLifecycle(db *sql.DB, bookings *repository.BookingRepo, showtimes *repository.ShowtimeRepo, vouchers *repository.VoucherRepo, events Events, refundCutoff time.Duration) *Lifecycle {
	if db == nil || bookings == nil || showtimes == nil || vouchers == nil {
		panic("nil dependency passed to booking.NewLifecycle")
	}
	return &Lifecycle{
		db:           db,
		bookings:     bookings,
		showtimes:    showtimes,
		vouchers:     vouchers,
		events:       events,
		refundCutoff: refundCutoff,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// begin opens a transaction with the teacher-standard rollback-unless-
// committed cleanup and hands both to the caller.
func (l *Lifecycle) begin(ctx context.Context) (*sql.Tx, func(*bool), error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin lifecycle tx: %w", err)
	}
	cleanup := func(committed *bool) {
		if !*committed {
			_ = tx.Rollback()
		}
	}
	return tx, cleanup, nil
}

// ConfirmPayment moves a booking PENDING -> CONFIRMED in response to a
// payment-success callback and decrements the showtime's available seats by
// the ticket count.  A second callback for the same booking fails with
// ErrInvalidBookingState.
func (l *Lifecycle) ConfirmPayment(ctx context.Context, bookingID uint64, paymentRef string) (*model.Booking, error) {
	tx, cleanup, err := l.begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer cleanup(&committed)

	b, err := l.bookings.GetByIDTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	ok, err := l.bookings.UpdateStatusTx(ctx, tx, bookingID, model.BookingPending, model.BookingConfirmed, model.PaymentPaid, &paymentRef)
	if err != nil {
		return nil, fmt.Errorf("confirm booking=%d: %w", bookingID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking %d is %s, expected %s", ErrInvalidBookingState, bookingID, b.Status, model.BookingPending)
	}
	if err := l.showtimes.AdjustAvailableSeatsTx(ctx, tx, b.ShowtimeID, -int32(len(b.Tickets))); err != nil {
		return nil, fmt.Errorf("confirm booking=%d showtime=%d: %w", bookingID, b.ShowtimeID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("confirm booking=%d: commit: %w", bookingID, err)
	}
	committed = true

	b.Status = model.BookingConfirmed
	b.PaymentStatus = model.PaymentPaid
	b.PaymentRef = &paymentRef

	if l.events != nil {
		st, err := l.showtimes.GetByID(ctx, b.ShowtimeID)
		ev := queue.BookingConfirmedEvent{
			BookingID:        b.ID,
			CustomerID:       b.CustomerID,
			ShowtimeID:       b.ShowtimeID,
			SeatLabels:       seatLabels(b),
			FinalAmountCents: b.FinalAmountCents,
			PaymentRef:       paymentRef,
			ConfirmedAt:      l.now().Format(time.RFC3339),
		}
		if err == nil {
			ev.MovieTitle = st.MovieTitle
			ev.StartsAt = st.StartsAt.Format(time.RFC3339)
		}
		l.events.BookingConfirmed(ctx, ev)
	}
	return b, nil
}

// FailPayment moves a booking PENDING -> CANCELLED when the payment
// provider reports failure or timeout.  Seat counters are untouched since
// the booking never reached CONFIRMED.
func (l *Lifecycle) FailPayment(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	return l.cancelPending(ctx, bookingID, 0)
}

// Cancel moves a booking PENDING -> CANCELLED on explicit user request
// before payment.  The booking must belong to the customer.
func (l *Lifecycle) Cancel(ctx context.Context, bookingID, customerID uint64) (*model.Booking, error) {
	return l.cancelPending(ctx, bookingID, customerID)
}

// cancelPending implements the shared PENDING -> CANCELLED transition.  A
// zero customerID skips the ownership check (payment-provider path).
func (l *Lifecycle) cancelPending(ctx context.Context, bookingID, customerID uint64) (*model.Booking, error) {
	tx, cleanup, err := l.begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer cleanup(&committed)

	b, err := l.bookings.GetByIDTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if customerID != 0 && b.CustomerID != customerID {
		return nil, repository.ErrForbidden
	}
	ok, err := l.bookings.UpdateStatusTx(ctx, tx, bookingID, model.BookingPending, model.BookingCancelled, model.PaymentFailed, nil)
	if err != nil {
		return nil, fmt.Errorf("cancel booking=%d: %w", bookingID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking %d is %s, expected %s", ErrInvalidBookingState, bookingID, b.Status, model.BookingPending)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cancel booking=%d: commit: %w", bookingID, err)
	}
	committed = true

	b.Status = model.BookingCancelled
	b.PaymentStatus = model.PaymentFailed
	return b, nil
}

// RefundWithVoucher moves a booking CONFIRMED -> REFUNDED on user request,
// restores the showtime's available seats and issues a voucher for the
// ticket value (concessions excluded).  Refunds are allowed only while the
// showtime start is more than the configured cutoff away.
//
// The operation is idempotent: refunding an already-REFUNDED booking
// returns the original voucher and no error.
func (l *Lifecycle) RefundWithVoucher(ctx context.Context, bookingID, customerID uint64) (*model.Booking, *model.Voucher, error) {
	tx, cleanup, err := l.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer cleanup(&committed)

	b, err := l.bookings.GetByIDTx(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if customerID != 0 && b.CustomerID != customerID {
		return nil, nil, repository.ErrForbidden
	}
	if b.Status == model.BookingRefunded {
		// Second refund request: report the terminal state that is already
		// in place, with the voucher issued the first time round.
		v, err := l.vouchers.GetByBookingIDTx(ctx, tx, bookingID)
		if err != nil {
			return nil, nil, fmt.Errorf("refund booking=%d: load voucher: %w", bookingID, err)
		}
		return b, v, nil
	}

	st, err := l.showtimes.GetByIDTx(ctx, tx, b.ShowtimeID)
	if err != nil {
		return nil, nil, err
	}
	if !st.StartsAt.After(l.now().Add(l.refundCutoff)) {
		return nil, nil, fmt.Errorf("%w: showtime starts %s, cutoff %s", ErrRefundTooLate, st.StartsAt.Format(time.RFC3339), l.refundCutoff)
	}

	ok, err := l.bookings.UpdateStatusTx(ctx, tx, bookingID, model.BookingConfirmed, model.BookingRefunded, model.PaymentRefunded, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("refund booking=%d: %w", bookingID, err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: booking %d is %s, expected %s", ErrInvalidBookingState, bookingID, b.Status, model.BookingConfirmed)
	}
	if err := l.showtimes.AdjustAvailableSeatsTx(ctx, tx, b.ShowtimeID, int32(len(b.Tickets))); err != nil {
		return nil, nil, fmt.Errorf("refund booking=%d showtime=%d: %w", bookingID, b.ShowtimeID, err)
	}
	code, err := repository.NewVoucherCode()
	if err != nil {
		return nil, nil, fmt.Errorf("refund booking=%d: voucher code: %w", bookingID, err)
	}
	v := &model.Voucher{
		BookingID:   bookingID,
		Code:        code,
		AmountCents: b.TicketTotalCents(),
	}
	if err := l.vouchers.CreateTx(ctx, tx, v); err != nil {
		return nil, nil, fmt.Errorf("refund booking=%d: create voucher: %w", bookingID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("refund booking=%d: commit: %w", bookingID, err)
	}
	committed = true

	b.Status = model.BookingRefunded
	b.PaymentStatus = model.PaymentRefunded
	v.IssuedAt = l.now()

	if l.events != nil {
		l.events.BookingRefunded(ctx, queue.BookingRefundedEvent{
			BookingID:    b.ID,
			CustomerID:   b.CustomerID,
			ShowtimeID:   b.ShowtimeID,
			VoucherCode:  v.Code,
			VoucherCents: v.AmountCents,
			RefundedAt:   l.now().Format(time.RFC3339),
		})
	}
	return b, v, nil
}

// AdminCancel moves a booking CONFIRMED -> CANCELLED on the administrative
// path (e.g. the operator cancelled the showtime).  Seat counters are
// restored exactly as for a refund, but no voucher is issued here – the
// operator's compensation flow is out of scope.
func (l *Lifecycle) AdminCancel(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	tx, cleanup, err := l.begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer cleanup(&committed)

	b, err := l.bookings.GetByIDTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	ok, err := l.bookings.UpdateStatusTx(ctx, tx, bookingID, model.BookingConfirmed, model.BookingCancelled, "", nil)
	if err != nil {
		return nil, fmt.Errorf("admin-cancel booking=%d: %w", bookingID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking %d is %s, expected %s", ErrInvalidBookingState, bookingID, b.Status, model.BookingConfirmed)
	}
	if err := l.showtimes.AdjustAvailableSeatsTx(ctx, tx, b.ShowtimeID, int32(len(b.Tickets))); err != nil {
		return nil, fmt.Errorf("admin-cancel booking=%d showtime=%d: %w", bookingID, b.ShowtimeID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("admin-cancel booking=%d: commit: %w", bookingID, err)
	}
	committed = true

	b.Status = model.BookingCancelled
	return b, nil
}

// seatLabels collects the ticket labels of a booking for event payloads.
func seatLabels(b *model.Booking) []string {
	labels := make([]string, 0, len(b.Tickets))
	for _, t := range b.Tickets {
		labels = append(labels, t.SeatLabel)
	}
	return labels
}
