package driven

import (
	"context"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
)

// EventStore defines the driven port for mirrored calendar persistence.
type EventStore interface {
	// Upsert inserts the event or, if a row already exists for
	// (UserID, UpstreamID), updates only the sync-owned field set. Dismissed
	// is never modified by Upsert. Mirrored rows are never deleted by sync.
	Upsert(ctx context.Context, ev model.CalendarEvent) error

	// GetByUpstreamID returns the mirrored event for the given user and
	// upstream id, or nil if none exists.
	GetByUpstreamID(ctx context.Context, userID int64, upstreamID string) (*model.CalendarEvent, error)

	// ListUpcoming returns the user's non-dismissed events starting at or
	// after from, ordered by start time, limited to limit rows.
	ListUpcoming(ctx context.Context, userID int64, from time.Time, limit int) ([]model.CalendarEvent, error)

	// CountByUser returns the total number of mirrored events for the user.
	CountByUser(ctx context.Context, userID int64) (int, error)

	// SetDismissed updates the user-owned dismissed flag.
	SetDismissed(ctx context.Context, userID, id int64, dismissed bool) error
}
