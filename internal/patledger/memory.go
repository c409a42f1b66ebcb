package patledger

import (
	"context"
	"sync"
)

var (
	_ Ledger    = (*MemoryLedger)(nil)
	_ Forgetter = (*MemoryLedger)(nil)
)

// MemoryLedger keeps pat registrations in a mutex-guarded two-level map,
// worry id -> set of origins. Entries never expire on their own, so the
// ledger implements Forgetter and the sweeper drops state for each purged
// worry.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]map[string]struct{}
}

// NewMemoryLedger builds an empty in-process ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]map[string]struct{})}
}

// TryRegister records the pair if unseen, under a single lock.
func (l *MemoryLedger) TryRegister(_ context.Context, worryID, originKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	origins, ok := l.entries[worryID]
	if !ok {
		origins = make(map[string]struct{})
		l.entries[worryID] = origins
	}
	if _, seen := origins[originKey]; seen {
		return false, nil
	}
	origins[originKey] = struct{}{}
	return true, nil
}

// Forget drops all registrations for a worry. Safe to call for ids the
// ledger never saw.
func (l *MemoryLedger) Forget(worryID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, worryID)
}
