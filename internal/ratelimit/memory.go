package ratelimit

import (
	"context"
	"sync"
	"time"
)

var _ Limiter = (*MemoryLimiter)(nil)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps fixed windows in a mutex-guarded map. Window state is
// process-local and not persisted across restarts. A janitor goroutine
// reclaims stale windows to bound memory; reclamation is best-effort only,
// since Admit treats an expired window the same as a missing one.
type MemoryLimiter struct {
	cfg Config

	mu      sync.Mutex
	windows map[string]*window

	nowFunc       func() time.Time
	janitorCancel context.CancelFunc
}

// NewMemoryLimiter builds an in-process limiter and starts its janitor.
func NewMemoryLimiter(cfg Config, cleanupInterval time.Duration) *MemoryLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	l := &MemoryLimiter{
		cfg:           cfg,
		windows:       make(map[string]*window),
		nowFunc:       time.Now,
		janitorCancel: cancel,
	}
	if cleanupInterval > 0 {
		go l.janitorLoop(ctx, cleanupInterval)
	}
	return l
}

// Admit applies the fixed-window rule for originKey. The whole
// check-and-set runs under one lock so two concurrent requests can never
// both pass at count == capacity-1 and overshoot.
func (l *MemoryLimiter) Admit(_ context.Context, originKey string) (Decision, error) {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[originKey]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(l.cfg.Window)}
		l.windows[originKey] = w
		return Decision{
			Allowed:   true,
			Remaining: l.cfg.Capacity - 1,
			ResetAt:   w.resetAt,
		}, nil
	}

	if w.count >= l.cfg.Capacity {
		// Rejected requests do not consume the counter.
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   w.resetAt,
		}, nil
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: l.cfg.Capacity - w.count,
		ResetAt:   w.resetAt,
	}, nil
}

// Close stops the janitor goroutine.
func (l *MemoryLimiter) Close() {
	l.janitorCancel()
}

func (l *MemoryLimiter) janitorLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.reclaim()
		}
	}
}

func (l *MemoryLimiter) reclaim() {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
