package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/booking"
	"github.com/iliyamo/cinema-ticket-booking/internal/hold"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// BookingHandler exposes booking commit and lifecycle operations.  Commit
// converts the caller's holds into a PENDING booking; the lifecycle
// endpoints move an existing booking between states.
type BookingHandler struct {
	Committer *booking.Committer
	Lifecycle *booking.Lifecycle
	Bookings  *repository.BookingRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(committer *booking.Committer, lifecycle *booking.Lifecycle, bookings *repository.BookingRepo) *BookingHandler {
	if committer == nil || lifecycle == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Committer: committer, Lifecycle: lifecycle, Bookings: bookings}
}

// createBookingRequest is the payload for POST /v1/bookings.
type createBookingRequest struct {
	ShowtimeID  uint64   `json:"showtime_id"`
	SeatIDs     []uint64 `json:"seat_ids"`
	Concessions []struct {
		ItemID   uint64 `json:"item_id"`
		Quantity uint32 `json:"quantity"`
	} `json:"concessions"`
	PromotionCode string `json:"promotion_code"`
}

// ticketView is one ticket row in a booking response.
type ticketView struct {
	SeatID     uint64 `json:"seat_id"`
	SeatLabel  string `json:"seat_label"`
	TicketType string `json:"ticket_type"`
	PriceCents uint32 `json:"price_cents"`
}

// concessionView is one concession line in a booking response.
type concessionView struct {
	ItemID         uint64 `json:"item_id"`
	Name           string `json:"name"`
	Quantity       uint32 `json:"quantity"`
	UnitPriceCents uint32 `json:"unit_price_cents"`
}

// bookingView is the JSON shape returned for a booking.
type bookingView struct {
	ID               uint64           `json:"id"`
	ShowtimeID       uint64           `json:"showtime_id"`
	Status           string           `json:"status"`
	PaymentStatus    string           `json:"payment_status"`
	PromotionCode    *string          `json:"promotion_code,omitempty"`
	DiscountCents    uint32           `json:"discount_cents"`
	FinalAmountCents uint32           `json:"final_amount_cents"`
	CreatedAt        string           `json:"created_at"`
	Tickets          []ticketView     `json:"tickets"`
	Concessions      []concessionView `json:"concessions,omitempty"`
}

// newBookingView maps a model.Booking onto its response shape.
func newBookingView(b *model.Booking) bookingView {
	v := bookingView{
		ID:               b.ID,
		ShowtimeID:       b.ShowtimeID,
		Status:           b.Status,
		PaymentStatus:    b.PaymentStatus,
		PromotionCode:    b.PromotionCode,
		DiscountCents:    b.DiscountCents,
		FinalAmountCents: b.FinalAmountCents,
		CreatedAt:        b.CreatedAt.UTC().Format(time.RFC3339),
		Tickets:          make([]ticketView, 0, len(b.Tickets)),
	}
	for _, t := range b.Tickets {
		v.Tickets = append(v.Tickets, ticketView{
			SeatID:     t.SeatID,
			SeatLabel:  t.SeatLabel,
			TicketType: t.TicketType,
			PriceCents: t.PriceCents,
		})
	}
	for _, cn := range b.Concessions {
		v.Concessions = append(v.Concessions, concessionView{
			ItemID:         cn.ItemID,
			Name:           cn.Name,
			Quantity:       cn.Quantity,
			UnitPriceCents: cn.UnitPriceCents,
		})
	}
	return v
}

// bookingErrorStatus maps commit and lifecycle sentinels to HTTP status
// codes.  Hold-contention sentinels surface here too because the committer
// re-validates every seat against the hold store.
func bookingErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, booking.ErrNoSeats):
		return http.StatusBadRequest, "seat_ids is required"
	case errors.Is(err, booking.ErrDuplicateSeat):
		return http.StatusBadRequest, "duplicate seat in request"
	case errors.Is(err, booking.ErrInvalidBookingState):
		return http.StatusConflict, "invalid booking state"
	case errors.Is(err, booking.ErrRefundTooLate):
		return http.StatusUnprocessableEntity, "refund window has closed"
	case errors.Is(err, repository.ErrBookingNotFound):
		return http.StatusNotFound, "booking not found"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "not your booking"
	case errors.Is(err, hold.ErrSeatNotHeld),
		errors.Is(err, hold.ErrSeatAlreadyHeld),
		errors.Is(err, hold.ErrSeatUnavailable),
		errors.Is(err, hold.ErrSeatUnknown),
		errors.Is(err, hold.ErrShowtimeNotSellable),
		errors.Is(err, repository.ErrShowtimeNotFound):
		return holdErrorStatus(err)
	}
	return http.StatusInternalServerError, "booking operation failed"
}

// Create handles POST /v1/bookings.  Every requested seat must currently be
// held by the caller; the commit is all or nothing.  On success the holds
// are consumed and a PENDING booking is returned for the payment step.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.ShowtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id is required"})
	}
	orders := make([]booking.ConcessionOrder, 0, len(req.Concessions))
	for _, cn := range req.Concessions {
		if cn.ItemID == 0 || cn.Quantity == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concession line"})
		}
		orders = append(orders, booking.ConcessionOrder{ItemID: cn.ItemID, Quantity: cn.Quantity})
	}
	b, err := h.Committer.Create(c.Request().Context(), req.ShowtimeID, userID, req.SeatIDs, orders, req.PromotionCode)
	if err != nil {
		status, msg := bookingErrorStatus(err)
		if status == http.StatusInternalServerError {
			c.Logger().Errorf("booking create showtime=%d user=%d: %v", req.ShowtimeID, userID, err)
		}
		return c.JSON(status, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusCreated, newBookingView(b))
}

// Get handles GET /v1/bookings/:id.  Customers can only read their own
// bookings.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.GetByIDForCustomer(c.Request().Context(), id, userID)
	if err != nil {
		status, msg := bookingErrorStatus(err)
		if status == http.StatusInternalServerError {
			c.Logger().Errorf("booking get id=%d user=%d: %v", id, userID, err)
		}
		return c.JSON(status, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusOK, newBookingView(b))
}

// List handles GET /v1/my-bookings and returns the caller's bookings,
// newest first.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bs, err := h.Bookings.ListByCustomer(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("booking list user=%d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	views := make([]bookingView, 0, len(bs))
	for i := range bs {
		views = append(views, newBookingView(&bs[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": views})
}

// Cancel handles POST /v1/bookings/:id/cancel.  Only a PENDING booking can
// be cancelled this way; a paid booking goes through the refund endpoint.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Lifecycle.Cancel(c.Request().Context(), id, userID)
	if err != nil {
		status, msg := bookingErrorStatus(err)
		if status == http.StatusInternalServerError {
			c.Logger().Errorf("booking cancel id=%d user=%d: %v", id, userID, err)
		}
		return c.JSON(status, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusOK, newBookingView(b))
}

// Refund handles POST /v1/bookings/:id/cancel-with-refund.  A CONFIRMED
// booking is refunded to a voucher worth the ticket total; repeating the
// call returns the voucher already issued.
func (h *BookingHandler) Refund(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, v, err := h.Lifecycle.RefundWithVoucher(c.Request().Context(), id, userID)
	if err != nil {
		status, msg := bookingErrorStatus(err)
		if status == http.StatusInternalServerError {
			c.Logger().Errorf("booking refund id=%d user=%d: %v", id, userID, err)
		}
		return c.JSON(status, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking": newBookingView(b),
		"voucher": echo.Map{
			"code":         v.Code,
			"amount_cents": v.AmountCents,
			"issued_at":    v.IssuedAt.UTC().Format(time.RFC3339),
		},
	})
}

// AdminCancel handles POST /v1/admin/bookings/:id/cancel.  Admins may
// cancel a booking in any non-terminal state, for example when a showtime
// is withdrawn.
func (h *BookingHandler) AdminCancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Lifecycle.AdminCancel(c.Request().Context(), id)
	if err != nil {
		status, msg := bookingErrorStatus(err)
		if status == http.StatusInternalServerError {
			c.Logger().Errorf("admin cancel booking id=%d: %v", id, err)
		}
		return c.JSON(status, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusOK, newBookingView(b))
}
