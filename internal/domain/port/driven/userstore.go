package driven

import (
	"context"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
)

// UserStore defines the driven port for user account persistence.
type UserStore interface {
	// Create inserts a new user and returns it with the assigned ID.
	Create(ctx context.Context, user model.User) (model.User, error)

	// GetByID returns the user with the given id, or nil if none exists.
	GetByID(ctx context.Context, id int64) (*model.User, error)

	// GetByAPIToken resolves a bearer token to its user, or nil if the token
	// is unknown.
	GetByAPIToken(ctx context.Context, token string) (*model.User, error)

	// ListWithCredential returns all users holding a stored credential for
	// the given service. Used by the periodic sync sweep.
	ListWithCredential(ctx context.Context, service string) ([]model.User, error)

	// SetLastSyncedAt records the completion time of a sync attempt. This is
	// the durable de-duplication signal for the sync scheduler and is updated
	// after every run, successful or not.
	SetLastSyncedAt(ctx context.Context, userID int64, at time.Time) error
}
