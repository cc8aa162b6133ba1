package model

import "time"

// Showtime status values.  SCHEDULED showtimes are sellable until their
// start time; CANCELLED and FINISHED showtimes reject holds and bookings.
const (
	ShowtimeScheduled = "SCHEDULED"
	ShowtimeCancelled = "CANCELLED"
	ShowtimeFinished  = "FINISHED"
)

// Showtime represents one scheduled screening of a movie in one hall at one
// start time.  The catalog service owns creation and editing of showtimes;
// the booking core reads them and maintains only the availability counters.
//
// Fields:
//
//	ID             – primary key identifier.
//	HallID         – hall in which the screening takes place.
//	MovieTitle     – title of the movie being screened.
//	StartsAt       – UTC start time of the screening.
//	BasePriceCents – base ticket price in cents before seat-type premiums.
//	Status         – SCHEDULED, CANCELLED or FINISHED.
//	TotalSeats     – number of active seats in the hall layout.
//	AvailableSeats – seats not committed to a CONFIRMED booking; decremented
//	                 on confirm, restored on refund or administrative cancel.
type Showtime struct {
	ID             uint64    // showtimes.id
	HallID         uint64    // showtimes.hall_id
	MovieTitle     string    // showtimes.movie_title
	StartsAt       time.Time // showtimes.starts_at (UTC)
	BasePriceCents uint32    // showtimes.base_price_cents
	Status         string    // showtimes.status
	TotalSeats     uint32    // showtimes.total_seats
	AvailableSeats uint32    // showtimes.available_seats
	CreatedAt      time.Time // showtimes.created_at
	UpdatedAt      time.Time // showtimes.updated_at
}

// Sellable reports whether holds and bookings may still be taken for the
// showtime at the given instant: it must be SCHEDULED and not yet started.
func (s *Showtime) Sellable(now time.Time) bool {
	return s.Status == ShowtimeScheduled && s.StartsAt.After(now)
}
