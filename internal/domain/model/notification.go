package model

import "time"

// Notification is an in-app alert produced either by a user action or by the
// background sync (high-priority mail, imminent meetings). RelatedID carries
// the upstream id of the item the notification refers to, when there is one.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	RelatedID string           `json:"related_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
