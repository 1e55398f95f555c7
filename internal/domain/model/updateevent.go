package model

import "time"

// Update event and stream status types. EventRefreshDashboard is the
// application event published on updates:{uid} after a sync observes changes;
// the remaining types are synthesized by the realtime layer itself.
const (
	EventRefreshDashboard = "REFRESH_DASHBOARD"
	EventStatus           = "status"
	EventHeartbeat        = "heartbeat"
	EventError            = "error"

	StreamConnected = "connected"
	StreamDegraded  = "degraded"
)

// UpdateEvent is the structured payload carried on the per-user pub/sub
// channel and forwarded verbatim to live client streams.
type UpdateEvent struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type"`
	UserID    int64     `json:"user_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}
