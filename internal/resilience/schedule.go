package resilience

import (
	"time"
)

// SyncSchedule computes deterministic next_retry_at times for failed telemetry
// sync items. Unlike RetryConfig it has no jitter, so the same failure always
// maps to the same retry time.
type SyncSchedule struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	MaxRetries int
}

// DefaultSyncSchedule retries after 30s, 1m, 2m, ... capped at one hour, five times.
func DefaultSyncSchedule() SyncSchedule {
	return SyncSchedule{
		Base:       30 * time.Second,
		Max:        time.Hour,
		Multiplier: 2,
		MaxRetries: 5,
	}
}

// Delay returns the wait before retry number retryCount (zero-based).
func (s SyncSchedule) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	d := expBackoff(retryCount, s.Base, s.Max, s.Multiplier)
	if d <= 0 {
		d = time.Second
	}
	return d
}

// NextRetryAt returns the retry time after now, or nil when the retry budget
// is spent. The returned time is always strictly after now.
func (s SyncSchedule) NextRetryAt(now time.Time, retryCount int) *time.Time {
	if retryCount >= s.MaxRetries {
		return nil
	}
	t := now.Add(s.Delay(retryCount))
	return &t
}
