package config

import "time"

// HoldConfig defines settings for the seat-hold subsystem.  TTL is the
// lifetime of a hold from acquisition (or renewal); MaxSeatsPerUser caps how
// many seats a single user may hold at once on one showtime.  A cap of zero
// disables the limit.
type HoldConfig struct {
	TTL             time.Duration
	MaxSeatsPerUser int
}

// LoadHoldConfig reads environment variables to build a HoldConfig.
// Defaults match the checkout UI: five minutes to pay, at most six seats
// selected at a time.
func LoadHoldConfig() HoldConfig {
	cfg := HoldConfig{
		TTL:             envDur("HOLD_TTL", 5*time.Minute),
		MaxSeatsPerUser: envInt("HOLD_MAX_SEATS_PER_USER", 6),
	}
	if cfg.TTL < time.Second {
		cfg.TTL = time.Second
	}
	if cfg.MaxSeatsPerUser < 0 {
		cfg.MaxSeatsPerUser = 0
	}
	return cfg
}
