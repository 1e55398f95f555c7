package model

import "time"

// Message is a locally mirrored copy of an upstream mail message.
// UpstreamID is the provider's stable identifier; rows are unique per
// (UserID, UpstreamID).
//
// Field ownership: Sender, Subject, Preview, Priority, Unread, and ReceivedAt
// are owned by the background sync and overwritten on every upsert. Archived
// and Starred are owned by user actions and never touched by sync.
type Message struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	UpstreamID string    `json:"upstream_id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Preview    string    `json:"preview"`
	Priority   Priority  `json:"priority"`
	Unread     bool      `json:"unread"`
	ReceivedAt time.Time `json:"received_at"`
	Archived   bool      `json:"archived"`
	Starred    bool      `json:"starred"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SyncedFieldsEqual reports whether the sync-owned field set of two messages
// matches. Used by the sync worker to skip no-op upserts.
func (m Message) SyncedFieldsEqual(other Message) bool {
	return m.Sender == other.Sender &&
		m.Subject == other.Subject &&
		m.Preview == other.Preview &&
		m.Priority == other.Priority &&
		m.Unread == other.Unread &&
		m.ReceivedAt.Equal(other.ReceivedAt)
}
