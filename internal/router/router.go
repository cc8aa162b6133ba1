package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests can
// inspect the seat map of a showtime before logging in; taking holds and
// committing bookings require a customer token.
func RegisterPublic(e *echo.Echo, s *handler.SeatMapHandler) {
	// Seat availability snapshot for a showtime.  Status values are FREE,
	// HELD or SOLD.
	e.GET("/v1/showtimes/:id/seats", s.Snapshot)
}

// RegisterCustomer registers the authenticated customer surface: the live
// seat-map socket, the hold endpoints and the booking endpoints.  The rate
// limiter wraps only the hold routes, which absorb seat-map click storms;
// booking commits are naturally throttled by the hold requirement.
func RegisterCustomer(e *echo.Echo, s *handler.SeatMapHandler, h *handler.HoldHandler, b *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("CUSTOMER", "ADMIN"))

	// Live seat map.  The connection upgrades to a websocket; holds taken
	// over it are released when the socket closes.
	g.GET("/showtimes/:id/live", s.Live)

	// REST hold surface for clients without a live connection.
	g.POST("/showtimes/:id/hold", h.Acquire, limiter)
	g.DELETE("/showtimes/:id/hold", h.Release, limiter)

	// Booking commit and lifecycle.
	g.POST("/bookings", b.Create)
	g.GET("/bookings/:id", b.Get)
	g.GET("/my-bookings", b.List)
	g.POST("/bookings/:id/cancel", b.Cancel)
	g.POST("/bookings/:id/cancel-with-refund", b.Refund)
}

// RegisterPayment registers the payment provider callback.  The provider
// authenticates with a shared secret header instead of a JWT, so the route
// stays outside the authenticated groups.
func RegisterPayment(e *echo.Echo, p *handler.PaymentHandler) {
	e.POST("/v1/payments/callback", p.Callback)
}

// RegisterAdmin registers administrative endpoints under /v1/admin.  Only
// the ADMIN role may call them.
func RegisterAdmin(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))

	g.POST("/bookings/:id/cancel", b.AdminCancel)
}
