package driven

import (
	"context"

	"github.com/evanhall/daybrief/internal/domain/model"
)

// TaskStore defines the driven port for user task persistence.
type TaskStore interface {
	// Create inserts a new task and returns it with the assigned ID.
	Create(ctx context.Context, task model.Task) (model.Task, error)

	// GetByID returns the task with the given id scoped to the user, or nil
	// if none exists.
	GetByID(ctx context.Context, userID, id int64) (*model.Task, error)

	// ListOpenByUser returns the user's incomplete tasks ordered by creation
	// time descending, limited to limit rows.
	ListOpenByUser(ctx context.Context, userID int64, limit int) ([]model.Task, error)

	// Update replaces the mutable fields of the task (title, priority,
	// due date, category, completed).
	Update(ctx context.Context, task model.Task) error
}
