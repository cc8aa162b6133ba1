// Package booking contains the two services that drive durable booking
// state: the committer, which turns a set of live holds into a booking with
// tickets, and the lifecycle manager, which moves bookings through their
// state machine in response to payment and refund events.
package booking

import "errors"

// ErrNoSeats is returned when a booking request names no seats.
var ErrNoSeats = errors.New("no seats requested")

// ErrDuplicateSeat is returned when the same seat appears twice in one
// booking request.
var ErrDuplicateSeat = errors.New("duplicate seat in request")

// ErrInvalidBookingState is returned when a lifecycle transition finds the
// booking in a different state than the transition expects.  It usually
// means the same payment callback or refund request was processed twice, or
// the client acted on a stale view.
var ErrInvalidBookingState = errors.New("invalid booking state")

// ErrRefundTooLate is returned when a refund is requested closer to the
// showtime start than the configured cutoff allows.
var ErrRefundTooLate = errors.New("too late to refund")
