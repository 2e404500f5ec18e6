package subscription

import "time"

// Lease is the validity window granted by the camera in the last
// subscribe or renew response.
type Lease struct {
	// StartedAt is the local time of the last successful subscribe/renew.
	StartedAt time.Time
	// Duration is the validity window the camera granted.
	Duration time.Duration
}

// Remaining returns how much of the lease is left at the given time,
// clamped at zero.
func (l Lease) Remaining(now time.Time) time.Duration {
	remaining := l.Duration - now.Sub(l.StartedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RenewalDue reports whether the remaining lease time has dropped to or
// below the threshold. A lease granted shorter than the threshold is due
// for renewal immediately.
func (l Lease) RenewalDue(now time.Time, threshold time.Duration) bool {
	return l.Remaining(now) <= threshold
}
