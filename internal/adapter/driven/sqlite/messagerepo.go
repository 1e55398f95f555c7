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
var _ driven.MessageStore = (*MessageRepo)(nil)

// MessageRepo is the SQLite implementation of the MessageStore port interface.
type MessageRepo struct {
	db *DB
}

// NewMessageRepo creates a new MessageRepo backed by the given DB.
func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, user_id, upstream_id, sender, subject, preview, priority, unread, received_at, archived, starred, created_at, updated_at`

// Upsert inserts the message or updates the sync-owned field set of an
// existing (user_id, upstream_id) row. The user-owned archived and starred
// flags are deliberately absent from the conflict clause.
func (r *MessageRepo) Upsert(ctx context.Context, msg model.Message) error {
	const query = `
		INSERT INTO messages (user_id, upstream_id, sender, subject, preview, priority, unread, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, upstream_id) DO UPDATE SET
			sender = excluded.sender,
			subject = excluded.subject,
			preview = excluded.preview,
			priority = excluded.priority,
			unread = excluded.unread,
			received_at = excluded.received_at,
			updated_at = CURRENT_TIMESTAMP
	`

	unread := 0
	if msg.Unread {
		unread = 1
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		msg.UserID, msg.UpstreamID, msg.Sender, msg.Subject, msg.Preview,
		string(msg.Priority), unread, msg.ReceivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert message %q for user %d: %w", msg.UpstreamID, msg.UserID, err)
	}

	return nil
}

// GetByUpstreamID returns the mirrored message for the given user and
// upstream id, or nil if none exists.
func (r *MessageRepo) GetByUpstreamID(ctx context.Context, userID int64, upstreamID string) (*model.Message, error) {
	const query = `SELECT ` + messageColumns + ` FROM messages WHERE user_id = ? AND upstream_id = ?`
	return r.queryOne(ctx, query, userID, upstreamID)
}

// GetByID returns the message with the given row id scoped to the user, or
// nil if none exists.
func (r *MessageRepo) GetByID(ctx context.Context, userID, id int64) (*model.Message, error) {
	const query = `SELECT ` + messageColumns + ` FROM messages WHERE user_id = ? AND id = ?`
	return r.queryOne(ctx, query, userID, id)
}

// ListByUser returns the user's non-archived messages, newest first.
func (r *MessageRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	const query = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE user_id = ? AND archived = 0
		ORDER BY received_at DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages for user %d: %w", userID, err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return msgs, nil
}

// CountByUser returns the total number of mirrored messages for the user.
func (r *MessageRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE user_id = ?`

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages for user %d: %w", userID, err)
	}
	return count, nil
}

// SetArchived updates the user-owned archived flag.
func (r *MessageRepo) SetArchived(ctx context.Context, userID, id int64, archived bool) error {
	return r.setFlag(ctx, "archived", userID, id, archived)
}

// SetStarred updates the user-owned starred flag.
func (r *MessageRepo) SetStarred(ctx context.Context, userID, id int64, starred bool) error {
	return r.setFlag(ctx, "starred", userID, id, starred)
}

func (r *MessageRepo) setFlag(ctx context.Context, column string, userID, id int64, value bool) error {
	// column comes from a fixed caller-side set, never user input.
	query := fmt.Sprintf(`UPDATE messages SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND id = ?`, column)

	v := 0
	if value {
		v = 1
	}

	res, err := r.db.Writer.ExecContext(ctx, query, v, userID, id)
	if err != nil {
		return fmt.Errorf("set message %s for user %d id %d: %w", column, userID, id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set message %s rows affected: %w", column, err)
	}
	if affected == 0 {
		return driven.ErrNotFound
	}
	return nil
}

func (r *MessageRepo) queryOne(ctx context.Context, query string, args ...any) (*model.Message, error) {
	row := r.db.Reader.QueryRowContext(ctx, query, args...)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var (
		msg        model.Message
		priority   string
		unread     int
		archived   int
		starred    int
		receivedAt string
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(&msg.ID, &msg.UserID, &msg.UpstreamID, &msg.Sender, &msg.Subject,
		&msg.Preview, &priority, &unread, &receivedAt, &archived, &starred, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}

	msg.Priority = model.Priority(priority)
	msg.Unread = unread != 0
	msg.Archived = archived != 0
	msg.Starred = starred != 0

	if msg.ReceivedAt, err = parseTime(receivedAt); err != nil {
		return nil, fmt.Errorf("parse received_at: %w", err)
	}
	if msg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if msg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &msg, nil
}
