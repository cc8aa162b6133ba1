// Package hold implements the seat-hold subsystem: a Redis-backed store of
// ephemeral "this seat is reserved by this user until T" facts, and the
// manager that mediates every hold state change.  Per-seat mutual exclusion
// rests entirely on Redis's atomic conditional write; the manager itself is
// stateless and may run on any number of replicas.
package hold

import "errors"

// Contention errors are expected and user-recoverable; handlers surface
// them directly and never retry, since the remedial action belongs to the
// user ("pick another seat", "re-acquire and try again").

// ErrSeatAlreadyHeld is returned when a live hold by a different user
// exists for the seat.
var ErrSeatAlreadyHeld = errors.New("seat already held")

// ErrSeatNotHeld is returned when an operation requires the caller to hold
// a seat and no live hold owned by the caller exists.
var ErrSeatNotHeld = errors.New("seat not held")

// ErrSeatUnavailable is returned when the seat is already ticketed under a
// live booking: it is sold, not merely held, and will not free up when a
// TTL lapses.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrSeatUnknown is returned when the seat does not belong to the
// showtime's hall layout or is inactive.
var ErrSeatUnknown = errors.New("seat not in hall layout")

// ErrHoldLimitExceeded is returned when acquiring one more seat would push
// the user past the per-showtime hold cap.
var ErrHoldLimitExceeded = errors.New("hold limit exceeded")

// ErrShowtimeNotSellable is returned when the showtime has started, finished
// or been cancelled, so no holds or bookings may be taken for it.
var ErrShowtimeNotSellable = errors.New("showtime not sellable")
