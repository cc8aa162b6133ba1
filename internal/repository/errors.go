// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// booking services and handlers to distinguish between failure scenarios
// without inspecting driver-specific errors.
package repository

import "errors"

// ErrShowtimeNotFound indicates that a showtime was not located in the DB.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrBookingNotFound indicates that a booking was not located in the DB, or
// that it is not visible to the requesting customer.
var ErrBookingNotFound = errors.New("booking not found")

// ErrVoucherNotFound indicates that no voucher exists for a booking.
var ErrVoucherNotFound = errors.New("voucher not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers should translate this into an HTTP
// 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrCounterConflict is returned when a seat-availability counter update
// would push available_seats below zero or above total_seats.  It signals a
// bookkeeping bug or a double-processed transition rather than user error.
var ErrCounterConflict = errors.New("seat counter conflict")
