package model

import "time"

// Lifecycle event kinds.
const (
	EventWorryCreated = "worry_created"
	EventWorryBurned  = "worry_burned"
	EventWorryPatted  = "worry_patted"
	EventSweepPurged  = "sweep_purged"
)

// LifecycleEvent is the audit record published to NATS whenever a worry
// changes state. It deliberately carries no content and no raw client
// address; WorryID is enough to correlate and Count carries the pat total
// or the purge count depending on Kind.
type LifecycleEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	WorryID   string    `json:"worry_id" gorm:"size:10;index"`
	Kind      string    `json:"kind" gorm:"size:32;not null;index"`
	Count     int64     `json:"count"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
}

const (
	LifecycleStreamName     = "LIFECYCLE"
	LifecycleStreamSubject  = "lifecycle.events"
	LifecycleConsumerName   = "lifecycle-logger"
	LifecycleStreamMaxBytes = 1024 * 1024 * 50 // 50MB
)
