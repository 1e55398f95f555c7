package driven

import (
	"context"

	"github.com/evanhall/daybrief/internal/domain/model"
)

// NotificationStore defines the driven port for notification persistence.
type NotificationStore interface {
	// Create inserts a new notification and returns it with the assigned ID.
	Create(ctx context.Context, n model.Notification) (model.Notification, error)

	// Exists reports whether a notification of the given type already exists
	// for the user and related upstream id. Used by the sync worker to avoid
	// duplicate alerts across runs.
	Exists(ctx context.Context, userID int64, typ model.NotificationType, relatedID string) (bool, error)

	// ListByUser returns the user's notifications ordered by creation time
	// descending, limited to limit rows.
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error)

	// ListUnreadByUser returns the user's unread notifications ordered by
	// creation time descending, limited to limit rows.
	ListUnreadByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error)

	// MarkRead flags the notification as read. Returns ErrNotFound if no
	// notification with the given id belongs to the user.
	MarkRead(ctx context.Context, userID, id int64) error
}
