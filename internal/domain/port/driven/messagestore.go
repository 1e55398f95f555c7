package driven

import (
	"context"

	"github.com/evanhall/daybrief/internal/domain/model"
)

// MessageStore defines the driven port for mirrored mail persistence.
type MessageStore interface {
	// Upsert inserts the message or, if a row already exists for
	// (UserID, UpstreamID), updates only the sync-owned field set. Archived
	// and Starred are never modified by Upsert. Mirrored rows are never
	// deleted by sync.
	Upsert(ctx context.Context, msg model.Message) error

	// GetByUpstreamID returns the mirrored message for the given user and
	// upstream id, or nil if none exists.
	GetByUpstreamID(ctx context.Context, userID int64, upstreamID string) (*model.Message, error)

	// GetByID returns the message with the given row id scoped to the user,
	// or nil if none exists.
	GetByID(ctx context.Context, userID, id int64) (*model.Message, error)

	// ListByUser returns the user's non-archived messages ordered by
	// received_at descending, limited to limit rows.
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Message, error)

	// CountByUser returns the total number of mirrored messages for the user.
	CountByUser(ctx context.Context, userID int64) (int, error)

	// SetArchived updates the user-owned archived flag.
	SetArchived(ctx context.Context, userID, id int64, archived bool) error

	// SetStarred updates the user-owned starred flag.
	SetStarred(ctx context.Context, userID, id int64, starred bool) error
}
