package model

// Priority classifies messages and tasks.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NotificationType identifies what kind of item a notification refers to.
type NotificationType string

const (
	NotificationEmail    NotificationType = "email"
	NotificationMeeting  NotificationType = "meeting"
	NotificationReminder NotificationType = "reminder"
)

// Provenance tags a cached snapshot with how its contents were produced.
// Placeholder snapshots never satisfy a freshness check, even inside TTL.
type Provenance string

const (
	ProvenanceFresh       Provenance = "fresh"
	ProvenancePlaceholder Provenance = "placeholder"
)
