package model

import "time"

// CalendarEvent is a locally mirrored copy of an upstream calendar entry.
// Rows are unique per (UserID, UpstreamID).
//
// Field ownership: Title, Location, StartsAt, EndsAt, and Attendees are owned
// by the background sync. Dismissed is owned by user actions and never
// touched by sync.
type CalendarEvent struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	UpstreamID string    `json:"upstream_id"`
	Title      string    `json:"title"`
	Location   string    `json:"location"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Attendees  []string  `json:"attendees"`
	Dismissed  bool      `json:"dismissed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StartsWithin reports whether the event begins between now and now+d.
// Used to decide whether an imminent-meeting reminder is warranted.
func (e CalendarEvent) StartsWithin(d time.Duration, now time.Time) bool {
	return e.StartsAt.After(now) && e.StartsAt.Sub(now) <= d
}

// SyncedFieldsEqual reports whether the sync-owned field set of two events
// matches.
func (e CalendarEvent) SyncedFieldsEqual(other CalendarEvent) bool {
	if e.Title != other.Title || e.Location != other.Location {
		return false
	}
	if !e.StartsAt.Equal(other.StartsAt) || !e.EndsAt.Equal(other.EndsAt) {
		return false
	}
	if len(e.Attendees) != len(other.Attendees) {
		return false
	}
	for i := range e.Attendees {
		if e.Attendees[i] != other.Attendees[i] {
			return false
		}
	}
	return true
}
