package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TaskStore = (*TaskRepo)(nil)

// TaskRepo is the SQLite implementation of the TaskStore port interface.
type TaskRepo struct {
	db *DB
}

// NewTaskRepo creates a new TaskRepo backed by the given DB.
func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

const taskColumns = `id, user_id, title, priority, due_date, category, completed, created_at, updated_at`

// Create inserts a new task and returns it with the assigned ID.
func (r *TaskRepo) Create(ctx context.Context, task model.Task) (model.Task, error) {
	const query = `INSERT INTO tasks (user_id, title, priority, due_date, category) VALUES (?, ?, ?, ?, ?)`

	res, err := r.db.Writer.ExecContext(ctx, query,
		task.UserID, task.Title, string(task.Priority), task.DueDate, task.Category)
	if err != nil {
		return model.Task{}, fmt.Errorf("create task for user %d: %w", task.UserID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: last insert id: %w", err)
	}
	task.ID = id

	return task, nil
}

// GetByID returns the task with the given id scoped to the user, or nil if
// none exists.
func (r *TaskRepo) GetByID(ctx context.Context, userID, id int64) (*model.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? AND id = ?`

	row := r.db.Reader.QueryRowContext(ctx, query, userID, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListOpenByUser returns the user's incomplete tasks, newest first.
func (r *TaskRepo) ListOpenByUser(ctx context.Context, userID int64, limit int) ([]model.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = ? AND completed = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list open tasks for user %d: %w", userID, err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// Update replaces the mutable fields of the task.
func (r *TaskRepo) Update(ctx context.Context, task model.Task) error {
	const query = `
		UPDATE tasks
		SET title = ?, priority = ?, due_date = ?, category = ?, completed = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND id = ?
	`

	completed := 0
	if task.Completed {
		completed = 1
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		task.Title, string(task.Priority), task.DueDate, task.Category, completed,
		task.UserID, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %d for user %d: %w", task.ID, task.UserID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows affected: %w", err)
	}
	if affected == 0 {
		return driven.ErrNotFound
	}
	return nil
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		task      model.Task
		priority  string
		completed int
		createdAt string
		updatedAt string
	)

	err := row.Scan(&task.ID, &task.UserID, &task.Title, &priority,
		&task.DueDate, &task.Category, &completed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Priority = model.Priority(priority)
	task.Completed = completed != 0

	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &task, nil
}
