package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"github.com/iliyamo/cinema-ticket-booking/internal/hold"
	"github.com/iliyamo/cinema-ticket-booking/internal/realtime"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// SeatMapHandler renders seat-map state and serves the live seat-map
// connection.  The snapshot endpoint is public so guests can inspect
// availability before logging in; the live endpoint requires a customer
// identity because holds are taken over it.
type SeatMapHandler struct {
	Manager   *hold.Manager
	Hub       *realtime.Hub
	Showtimes *repository.ShowtimeRepo
	Seats     *repository.SeatRepo
	Bookings  *repository.BookingRepo
}

// NewSeatMapHandler constructs a SeatMapHandler with the provided
// dependencies.  All must be non-nil.
func NewSeatMapHandler(m *hold.Manager, hub *realtime.Hub, showtimes *repository.ShowtimeRepo, seats *repository.SeatRepo, bookings *repository.BookingRepo) *SeatMapHandler {
	if m == nil || hub == nil || showtimes == nil || seats == nil || bookings == nil {
		panic("nil dependency passed to NewSeatMapHandler")
	}
	return &SeatMapHandler{Manager: m, Hub: hub, Showtimes: showtimes, Seats: seats, Bookings: bookings}
}

// snapshot assembles the current seat map: every active seat of the
// showtime's hall with status FREE, HELD (with holder and expiry) or SOLD.
func (h *SeatMapHandler) snapshot(ctx context.Context, showtimeID uint64) (*realtime.SeatEvent, error) {
	st, err := h.Showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	seats, err := h.Seats.ListByHall(ctx, st.HallID)
	if err != nil {
		return nil, err
	}
	held, err := h.Manager.ListHeld(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	holds := make(map[uint64]struct {
		holder    uint64
		expiresAt time.Time
	}, len(held))
	for _, sh := range held {
		holds[sh.SeatID] = struct {
			holder    uint64
			expiresAt time.Time
		}{sh.HolderID, sh.ExpiresAt}
	}
	sold, err := h.Bookings.TicketedSeatSet(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	states := make([]realtime.SeatState, 0, len(seats))
	for _, seat := range seats {
		state := realtime.SeatState{SeatID: seat.ID, Label: seat.Label(), Status: realtime.SeatStatusFree}
		if _, ok := sold[seat.ID]; ok {
			state.Status = realtime.SeatStatusSold
		} else if hld, ok := holds[seat.ID]; ok {
			state.Status = realtime.SeatStatusHeld
			state.HeldBy = hld.holder
			exp := hld.expiresAt
			state.ExpiresAt = &exp
		}
		states = append(states, state)
	}
	return &realtime.SeatEvent{
		Type:       realtime.EventSnapshot,
		ShowtimeID: showtimeID,
		Seats:      states,
	}, nil
}

// Snapshot handles GET /v1/showtimes/:id/seats.  It returns the seat map
// as a JSON snapshot for clients that poll instead of subscribing.
func (h *SeatMapHandler) Snapshot(c echo.Context) error {
	showtimeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	snap, err := h.snapshot(c.Request().Context(), showtimeID)
	if err != nil {
		if err == repository.ErrShowtimeNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		c.Logger().Errorf("seatmap snapshot showtime=%d: %v", showtimeID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seat map"})
	}
	return c.JSON(http.StatusOK, snap)
}

// inboundMessage is what a live client may send over the socket.
type inboundMessage struct {
	Action string `json:"action"` // request_hold | release_hold
	SeatID uint64 `json:"seat_id"`
}

// Live handles GET /v1/showtimes/:id/live and upgrades the request to a
// websocket.  On connect the client receives the current snapshot, then a
// stream of seat_held/seat_freed events for the showtime.  Inbound
// request_hold/release_hold messages are forwarded to the hold manager; a
// failed request is answered with an error event to this client only, while
// successful changes reach every subscriber through the event bridge.  On
// disconnect all of the connection's holds are released (best effort; the
// TTL remains the backstop when that release is lost).
func (h *SeatMapHandler) Live(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	if _, err := h.Showtimes.GetByID(c.Request().Context(), showtimeID); err != nil {
		if err == repository.ErrShowtimeNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	websocket.Handler(func(ws *websocket.Conn) {
		h.serve(ws, c, showtimeID, userID)
	}).ServeHTTP(c.Response(), c.Request())
	return nil
}

// serve runs one live connection until the client goes away.
func (h *SeatMapHandler) serve(ws *websocket.Conn, c echo.Context, showtimeID, userID uint64) {
	defer ws.Close()
	ctx := c.Request().Context()

	// Sends are serialized: the event relay goroutine and the inbound loop
	// both write to the socket.
	var wmu sync.Mutex
	send := func(v interface{}) error {
		wmu.Lock()
		defer wmu.Unlock()
		return websocket.JSON.Send(ws, v)
	}

	snap, err := h.snapshot(ctx, showtimeID)
	if err != nil {
		c.Logger().Errorf("seatmap live showtime=%d user=%d: snapshot: %v", showtimeID, userID, err)
		_ = send(realtime.SeatEvent{Type: realtime.EventError, ShowtimeID: showtimeID, Reason: "failed to load seat map"})
		return
	}
	if err := send(snap); err != nil {
		return
	}

	events, cancel := h.Hub.Subscribe(showtimeID)
	defer cancel()
	go func() {
		for ev := range events {
			if err := send(ev); err != nil {
				return
			}
		}
	}()

	for {
		var msg inboundMessage
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			break // disconnect (io.EOF) or protocol error; either way the session ends
		}
		if msg.SeatID == 0 {
			_ = send(realtime.SeatEvent{Type: realtime.EventError, ShowtimeID: showtimeID, Reason: "seat_id is required"})
			continue
		}
		switch msg.Action {
		case "request_hold":
			if _, err := h.Manager.Acquire(ctx, showtimeID, msg.SeatID, userID); err != nil {
				_, reason := holdErrorStatus(err)
				_ = send(realtime.SeatEvent{Type: realtime.EventError, ShowtimeID: showtimeID, SeatID: msg.SeatID, Reason: reason})
			}
		case "release_hold":
			if _, err := h.Manager.Release(ctx, showtimeID, msg.SeatID, userID); err != nil {
				_ = send(realtime.SeatEvent{Type: realtime.EventError, ShowtimeID: showtimeID, SeatID: msg.SeatID, Reason: "hold store error"})
			}
		default:
			_ = send(realtime.SeatEvent{Type: realtime.EventError, ShowtimeID: showtimeID, Reason: "unknown action"})
		}
	}

	// Abandoned sessions must not squat seats for the full TTL.  The
	// request context is gone once the client disconnects, so use a fresh
	// one for the cleanup call.
	cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCleanup()
	if _, err := h.Manager.ReleaseAll(cleanupCtx, showtimeID, userID); err != nil {
		c.Logger().Errorf("seatmap live showtime=%d user=%d: release on disconnect: %v", showtimeID, userID, err)
	}
}
