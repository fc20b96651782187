package model

import "time"

// RateState is the slice of a user row the rate limiter reads and writes.
// Pointers mirror the nullable columns: a nil RemainingHits means the user
// was never metered, a nil LastHitAt means no window has been started.
type RateState struct {
	RemainingHits *int
	WindowMillis  *int64
	LastHitAt     *time.Time
}

// StateOf extracts the rate-limit fields from a user row.
func StateOf(u User) RateState {
	return RateState{
		RemainingHits: u.RemainingHits,
		WindowMillis:  u.WindowMillis,
		LastHitAt:     u.LastHitAt,
	}
}
