package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port interface.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, name, picture, api_token, last_synced_at, created_at, updated_at`

// Create inserts a new user and returns it with the assigned ID.
func (r *UserRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	const query = `INSERT INTO users (email, name, picture, api_token) VALUES (?, ?, ?, ?)`

	res, err := r.db.Writer.ExecContext(ctx, query, user.Email, user.Name, user.Picture, user.APIToken)
	if err != nil {
		return model.User{}, fmt.Errorf("create user %q: %w", user.Email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("create user %q: last insert id: %w", user.Email, err)
	}
	user.ID = id

	return user, nil
}

// GetByID returns the user with the given id, or nil if none exists.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.queryUser(ctx, query, id)
}

// GetByAPIToken resolves a bearer token to its user, or nil if the token is unknown.
func (r *UserRepo) GetByAPIToken(ctx context.Context, token string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE api_token = ?`
	return r.queryUser(ctx, query, token)
}

// ListWithCredential returns all users holding a stored credential for the
// given service, ordered by id.
func (r *UserRepo) ListWithCredential(ctx context.Context, service string) ([]model.User, error) {
	const query = `
		SELECT u.id, u.email, u.name, u.picture, u.api_token, u.last_synced_at, u.created_at, u.updated_at
		FROM users u
		JOIN service_tokens st ON st.user_id = u.id
		WHERE st.service_name = ?
		ORDER BY u.id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, service)
	if err != nil {
		return nil, fmt.Errorf("list users with %q credential: %w", service, err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// SetLastSyncedAt records the completion time of a sync attempt.
func (r *UserRepo) SetLastSyncedAt(ctx context.Context, userID int64, at time.Time) error {
	const query = `UPDATE users SET last_synced_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.db.Writer.ExecContext(ctx, query, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("set last_synced_at for user %d: %w", userID, err)
	}
	return nil
}

// queryUser runs a single-row user query. Returns (nil, nil) on no rows.
func (r *UserRepo) queryUser(ctx context.Context, query string, arg any) (*model.User, error) {
	row := r.db.Reader.QueryRowContext(ctx, query, arg)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user         model.User
		lastSyncedAt sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Picture, &user.APIToken,
		&lastSyncedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if lastSyncedAt.Valid {
		t, err := parseTime(lastSyncedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_synced_at: %w", err)
		}
		user.LastSyncedAt = &t
	}

	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &user, nil
}

// parseTime parses SQLite timestamp strings, which vary in format depending
// on whether the value came from CURRENT_TIMESTAMP or a Go time.Time bind.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
