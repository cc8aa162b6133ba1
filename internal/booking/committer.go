package booking

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/hold"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// Holds is the slice of the hold manager the committer depends on.
// *hold.Manager satisfies it.
type Holds interface {
	HeldBy(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64) error
	ReleaseCommitted(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64) error
}

// ConcessionCatalog prices snack/drink items.  The catalog service owns the
// item list; the committer only snapshots name and unit price onto the
// booking's line items.
type ConcessionCatalog interface {
	Price(ctx context.Context, itemID uint64) (name string, unitPriceCents uint32, err error)
}

// PromotionEvaluator turns a promotion code into a discount for the given
// subtotal.  Evaluation rules live with the promotions service; a nil
// evaluator means codes are accepted but never discounted.
type PromotionEvaluator interface {
	Discount(ctx context.Context, code string, subtotalCents uint32) (uint32, error)
}

// ConcessionOrder is one requested concession line.
type ConcessionOrder struct {
	ItemID   uint64 `json:"item_id"`
	Quantity uint32 `json:"quantity"`
}

// Committer is the single place where an ephemeral hold becomes a durable,
// billable booking.  Creation is all-or-nothing across the seat list: if
// any one seat lacks a live hold owned by the caller, nothing is persisted.
type Committer struct {
	db          *sql.DB
	holds       Holds
	showtimes   *repository.ShowtimeRepo
	seats       *repository.SeatRepo
	bookings    *repository.BookingRepo
	concessions ConcessionCatalog
	promotions  PromotionEvaluator
	now         func() time.Time
}

// NewCommitter constructs a Committer.  concessions and promotions may be
// nil; requests using the corresponding feature then fail (concessions) or
// pass through undiscounted (promotions).
func NewCommitter(db *sql.DB, holds Holds, showtimes *repository.ShowtimeRepo, seats *repository.SeatRepo, bookings *repository.BookingRepo, concessions ConcessionCatalog, promotions PromotionEvaluator) *Committer {
	if db == nil || holds == nil || showtimes == nil || seats == nil || bookings == nil {
		panic("nil dependency passed to booking.NewCommitter")
	}
	return &Committer{
		db:          db,
		holds:       holds,
		showtimes:   showtimes,
		seats:       seats,
		bookings:    bookings,
		concessions: concessions,
		promotions:  promotions,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create validates that every requested seat is currently held by the
// customer, persists the booking (status PENDING) with one ticket per seat
// in a single transaction, then releases the corresponding holds.
//
// Failure modes: ErrNoSeats / ErrDuplicateSeat / hold.ErrSeatUnknown on bad
// input, hold.ErrShowtimeNotSellable when sales are closed,
// hold.ErrSeatNotHeld when any seat lacks a live hold owned by the caller,
// and hold.ErrSeatUnavailable when the in-transaction re-check finds a seat
// already ticketed.  Database errors are transient and safe to retry: the
// hold check makes a retry of a failed commit idempotent.
func (c *Committer) Create(ctx context.Context, showtimeID, customerID uint64, seatIDs []uint64, orders []ConcessionOrder, promoCode string) (*model.Booking, error) {
	if len(seatIDs) == 0 {
		return nil, ErrNoSeats
	}
	seen := make(map[uint64]struct{}, len(seatIDs))
	for _, sid := range seatIDs {
		if _, dup := seen[sid]; dup {
			return nil, fmt.Errorf("%w: seat %d", ErrDuplicateSeat, sid)
		}
		seen[sid] = struct{}{}
	}

	st, err := c.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if !st.Sellable(c.now()) {
		return nil, hold.ErrShowtimeNotSellable
	}
	layout, err := c.seats.MapByHall(ctx, st.HallID)
	if err != nil {
		return nil, err
	}
	for _, sid := range seatIDs {
		if _, ok := layout[sid]; !ok {
			return nil, fmt.Errorf("%w: seat %d", hold.ErrSeatUnknown, sid)
		}
	}

	// Every seat must be held by the requester right now.  This is the
	// primary guarantee; the in-transaction ticket check below is defense
	// in depth against a hold acquired before an earlier commit landed.
	if err := c.holds.HeldBy(ctx, showtimeID, seatIDs, customerID); err != nil {
		return nil, err
	}

	b := &model.Booking{
		ShowtimeID:    showtimeID,
		CustomerID:    customerID,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentUnpaid,
	}
	var subtotal uint32
	for _, sid := range seatIDs {
		seat := layout[sid]
		price := seat.TicketPriceCents(st.BasePriceCents)
		subtotal += price
		b.Tickets = append(b.Tickets, model.Ticket{
			ShowtimeID: showtimeID,
			SeatID:     sid,
			SeatLabel:  seat.Label(),
			TicketType: seat.SeatType,
			PriceCents: price,
		})
	}
	for _, o := range orders {
		if o.Quantity == 0 {
			continue
		}
		if c.concessions == nil {
			return nil, fmt.Errorf("concession item %d: no catalog configured", o.ItemID)
		}
		name, unit, err := c.concessions.Price(ctx, o.ItemID)
		if err != nil {
			return nil, fmt.Errorf("concession item %d: %w", o.ItemID, err)
		}
		subtotal += unit * o.Quantity
		b.Concessions = append(b.Concessions, model.Concession{
			ItemID:         o.ItemID,
			Name:           name,
			Quantity:       o.Quantity,
			UnitPriceCents: unit,
		})
	}
	if promoCode != "" {
		b.PromotionCode = &promoCode
		if c.promotions != nil {
			discount, err := c.promotions.Discount(ctx, promoCode, subtotal)
			if err != nil {
				return nil, fmt.Errorf("promotion %q: %w", promoCode, err)
			}
			if discount > subtotal {
				discount = subtotal
			}
			b.DiscountCents = discount
		}
	}
	b.FinalAmountCents = subtotal - b.DiscountCents

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx showtime=%d: %w", showtimeID, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	taken, err := c.bookings.TicketedSeatIDsTx(ctx, tx, showtimeID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("ticket re-check showtime=%d: %w", showtimeID, err)
	}
	if len(taken) > 0 {
		return nil, fmt.Errorf("%w: seat %d", hold.ErrSeatUnavailable, taken[0])
	}
	if err := c.bookings.CreateTx(ctx, tx, b); err != nil {
		return nil, fmt.Errorf("create booking showtime=%d customer=%d: %w", showtimeID, customerID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit booking showtime=%d customer=%d: %w", showtimeID, customerID, err)
	}
	committed = true

	// The durable booking is the authoritative fact; holds are cleared as a
	// closely-following step.  If this fails the stale holds self-heal at
	// TTL, and any re-acquire of these seats fails the ticketed-seat check.
	if err := c.holds.ReleaseCommitted(ctx, showtimeID, seatIDs, customerID); err != nil {
		log.Printf("booking-commit: release holds booking=%d showtime=%d: %v", b.ID, showtimeID, err)
	}

	b.CreatedAt = c.now()
	b.UpdatedAt = b.CreatedAt
	return b, nil
}
