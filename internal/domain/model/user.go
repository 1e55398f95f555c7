package model

import "time"

// User is a dashboard account. APIToken is the bearer token presented on
// interactive requests; LastSyncedAt is the durable record of the most
// recent sync attempt and is nil until the first run completes.
type User struct {
	ID           int64
	Email        string
	Name         string
	Picture      string
	APIToken     string
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NeedsSync reports whether the user's mirror is due for a refresh: never
// synced, or last synced longer than window ago. This is the durable half of
// the scheduler's de-duplication check and works without the broker.
func (u User) NeedsSync(window time.Duration, now time.Time) bool {
	if u.LastSyncedAt == nil {
		return true
	}
	return now.Sub(*u.LastSyncedAt) >= window
}
