package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects requests per origin key using a fixed window.
//
// The algorithm is deliberately a coarse fixed window, not a sliding window
// or leaky bucket: a burst of up to 2x capacity can pass across a window
// boundary. Callers depend on the exact boundary behavior (reset on the
// first request after ResetAt, reject without counting once at capacity),
// so this is a documented limitation, not a bug to fix.
type Limiter interface {
	Admit(ctx context.Context, originKey string) (Decision, error)
}

// Config holds fixed-window parameters shared by all backends.
type Config struct {
	Capacity int
	Window   time.Duration
}

// DefaultConfig matches the service-wide policy of 10 requests per origin
// per minute.
func DefaultConfig() Config {
	return Config{
		Capacity: 10,
		Window:   time.Minute,
	}
}
