package model

import "time"

// MaxContentLength is the upper bound on worry content, counted in Unicode
// code points after trimming.
const MaxContentLength = 500

// DefaultTTL is how long a worry stays reachable after creation.
const DefaultTTL = 24 * time.Hour

// Worry is the core entity stored in Postgres. The id is both the primary
// key and the sole access credential, so it never appears in logs.
//
// Invariants: ExpiresAt is CreatedAt plus the TTL, fixed at creation and
// never recomputed. BurnedAt is set exactly once, when IsBurned flips to
// true. PatCount only grows. Once burned the row is frozen until the sweep
// deletes it; "expired" is never a stored state, it is derived by comparing
// ExpiresAt against the clock.
type Worry struct {
	ID        string     `db:"id" gorm:"primaryKey;size:10"`
	Content   string     `db:"content" gorm:"type:text;not null"`
	ExpiresAt time.Time  `db:"expires_at" gorm:"not null;index"`
	IsBurned  bool       `db:"is_burned" gorm:"not null;default:false"`
	BurnedAt  *time.Time `db:"burned_at"`
	PatCount  int        `db:"pat_count" gorm:"not null;default:0"`
	CreatedAt time.Time  `db:"created_at" gorm:"autoCreateTime"`
}

// Expired reports whether the worry is past its expiry at the given instant.
func (w *Worry) Expired(now time.Time) bool {
	return now.After(w.ExpiresAt)
}
