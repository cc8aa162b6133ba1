package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/booking"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// PaymentHandler receives callbacks from the external payment provider.
// The provider authenticates with a shared secret rather than a customer
// JWT, so the route sits outside the authenticated groups and the handler
// checks the secret itself.
type PaymentHandler struct {
	Lifecycle *booking.Lifecycle
	Secret    string
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(lifecycle *booking.Lifecycle, secret string) *PaymentHandler {
	if lifecycle == nil {
		panic("nil lifecycle passed to NewPaymentHandler")
	}
	if secret == "" {
		panic("empty payment secret passed to NewPaymentHandler")
	}
	return &PaymentHandler{Lifecycle: lifecycle, Secret: secret}
}

// paymentCallbackRequest is the provider's callback payload.
type paymentCallbackRequest struct {
	BookingID  uint64 `json:"booking_id"`
	Status     string `json:"status"` // success | failure
	PaymentRef string `json:"payment_ref"`
}

// Callback handles POST /v1/payments/callback.  A success callback moves
// the booking PENDING -> CONFIRMED, a failure callback PENDING ->
// CANCELLED.  Replayed callbacks find the booking already out of PENDING
// and are answered with 409, which providers treat as "stop retrying".
func (h *PaymentHandler) Callback(c echo.Context) error {
	token := c.Request().Header.Get("X-Payment-Signature")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.Secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "bad signature"})
	}
	var req paymentCallbackRequest
	if err := c.Bind(&req); err != nil || req.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid callback payload"})
	}

	var (
		b   *model.Booking
		err error
	)
	switch strings.ToLower(req.Status) {
	case "success":
		if req.PaymentRef == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_ref is required on success"})
		}
		b, err = h.Lifecycle.ConfirmPayment(c.Request().Context(), req.BookingID, req.PaymentRef)
	case "failure":
		b, err = h.Lifecycle.FailPayment(c.Request().Context(), req.BookingID)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be success or failure"})
	}
	if err != nil {
		status, msg := bookingErrorStatus(err)
		if status == http.StatusInternalServerError {
			c.Logger().Errorf("payment callback booking=%d status=%s: %v", req.BookingID, req.Status, err)
		}
		return c.JSON(status, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusOK, newBookingView(b))
}
