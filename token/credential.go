package token

import "time"

// Credential is a signed, short-lived token for one identity.
type Credential struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	SubjectID string
}

// ExpiringSoon reports whether c must no longer be served at now.
func (c *Credential) ExpiringSoon(now time.Time, safetyMargin time.Duration) bool {
	return !now.Before(c.ExpiresAt.Add(-safetyMargin))
}

// RateWindow is a fixed-duration request counter for one identity.
type RateWindow struct {
	Count          int
	WindowStart    time.Time
	WindowDuration time.Duration
	MaxRequests    int
}

func (w *RateWindow) expired(now time.Time) bool {
	return now.After(w.WindowStart.Add(w.WindowDuration))
}

func (w *RateWindow) reset() time.Time {
	return w.WindowStart.Add(w.WindowDuration)
}

// Quota is the caller-facing view of a RateWindow, used for X-RateLimit headers.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
}
