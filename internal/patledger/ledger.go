package patledger

import "context"

// Ledger records which origin has already patted which worry. Registration
// succeeds exactly once per (worryID, originKey) pair; every later attempt
// reports false with no side effect. The ledger never touches the pat
// counter itself: on a successful registration the caller issues the
// increment against the store, and an increment failure after registration
// is surfaced by the caller rather than retried (a blind retry could count
// the pat twice if the first increment actually landed).
type Ledger interface {
	// TryRegister returns true iff this is the first registration for the
	// pair. The check-and-set is atomic with respect to concurrent callers.
	TryRegister(ctx context.Context, worryID, originKey string) (bool, error)
}

// Forgetter is implemented by backings whose entries do not expire on
// their own. The sweeper calls Forget for every purged worry so ledger
// state cannot outlive its record; the Redis backing does not need it,
// its keys carry a TTL.
type Forgetter interface {
	Forget(worryID string)
}
