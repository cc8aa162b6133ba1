package handler

import (
	"errors"   // for errors.Is comparisons against hold sentinels
	"net/http" // HTTP status codes
	"time"     // RFC3339 formatting of expiry timestamps

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/hold"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// HoldHandler exposes the REST surface of the hold manager for clients that
// do not keep a live seat-map connection.  JWT authentication and role
// validation are performed by middleware; methods return 401 when the user
// ID cannot be extracted from the context.
type HoldHandler struct {
	Manager *hold.Manager
}

// NewHoldHandler constructs a HoldHandler.
func NewHoldHandler(m *hold.Manager) *HoldHandler {
	if m == nil {
		panic("nil manager passed to NewHoldHandler")
	}
	return &HoldHandler{Manager: m}
}

// holdErrorStatus maps hold sentinels to HTTP status codes.  Contention
// errors are surfaced directly and never retried server-side: the correct
// remedial action ("pick another seat", "re-acquire") belongs to the user.
func holdErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, hold.ErrSeatAlreadyHeld):
		return http.StatusConflict, "seat_already_held"
	case errors.Is(err, hold.ErrSeatNotHeld):
		return http.StatusPreconditionFailed, "seat_not_held"
	case errors.Is(err, hold.ErrSeatUnavailable):
		return http.StatusConflict, "seat_unavailable"
	case errors.Is(err, hold.ErrSeatUnknown):
		return http.StatusBadRequest, "seat_not_in_hall"
	case errors.Is(err, hold.ErrHoldLimitExceeded):
		return http.StatusUnprocessableEntity, "hold_limit_exceeded"
	case errors.Is(err, hold.ErrShowtimeNotSellable):
		return http.StatusUnprocessableEntity, "showtime_not_sellable"
	case errors.Is(err, repository.ErrShowtimeNotFound):
		return http.StatusNotFound, "showtime not found"
	}
	return http.StatusInternalServerError, "hold store error"
}

// Acquire handles POST /v1/showtimes/:id/hold.  The request body carries a
// single seat_id; each seat is acquired independently so the hot path stays
// one conditional write per seat.  On success it returns 201 with the hold
// expiry for the checkout countdown.  Re-acquiring a seat the user already
// holds renews the TTL and succeeds.
func (h *HoldHandler) Acquire(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body struct {
		SeatID uint64 `json:"seat_id"`
	}
	if err := c.Bind(&body); err != nil || body.SeatID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_id is required"})
	}
	sh, err := h.Manager.Acquire(c.Request().Context(), showtimeID, body.SeatID, userID)
	if err != nil {
		status, msg := holdErrorStatus(err)
		if status == http.StatusInternalServerError {
			c.Logger().Errorf("hold acquire showtime=%d seat=%d user=%d: %v", showtimeID, body.SeatID, userID, err)
		}
		return c.JSON(status, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"seat_id":    sh.SeatID,
		"expires_at": sh.ExpiresAt.Format(time.RFC3339),
	})
}

// Release handles DELETE /v1/showtimes/:id/hold.  With a seat_id query
// parameter it releases one hold; without it, every hold the user owns on
// the showtime.  Releasing a seat that is not held (or held by someone
// else) is a no-op, not an error.
func (h *HoldHandler) Release(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	ctx := c.Request().Context()
	if raw := c.QueryParam("seat_id"); raw != "" {
		seatID, err := parseUint(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat_id"})
		}
		released, err := h.Manager.Release(ctx, showtimeID, seatID, userID)
		if err != nil {
			c.Logger().Errorf("hold release showtime=%d seat=%d user=%d: %v", showtimeID, seatID, userID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hold store error"})
		}
		n := 0
		if released {
			n = 1
		}
		return c.JSON(http.StatusOK, echo.Map{"released": n})
	}
	released, err := h.Manager.ReleaseAll(ctx, showtimeID, userID)
	if err != nil {
		c.Logger().Errorf("hold release-all showtime=%d user=%d: %v", showtimeID, userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hold store error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"released": len(released)})
}
