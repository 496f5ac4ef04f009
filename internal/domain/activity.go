package domain

import "time"

// SyncStatus mirrors the outbox resolution for a manual activity log.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// ManualActivityLog is a user-entered exercise session pending or already
// replayed to the health store.
type ManualActivityLog struct {
	ID             string
	StartedAt      time.Time
	EndedAt        time.Time
	ActivityType   string
	Exertion       int
	Calories       int
	Source         string
	SyncStatus     SyncStatus
	HealthRecordID *string
	CreatedAt      time.Time
	SyncedAt       *time.Time
}

// DurationMinutes returns the session length in whole minutes, clamped at zero.
func (a ManualActivityLog) DurationMinutes() int {
	d := a.EndedAt.Sub(a.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d.Minutes())
}
