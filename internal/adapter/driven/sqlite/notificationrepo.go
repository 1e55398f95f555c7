package sqlite

import (
	"context"
	"errors"
	"fmt"

	"database/sql"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NotificationStore = (*NotificationRepo)(nil)

// NotificationRepo is the SQLite implementation of the NotificationStore port
// interface.
type NotificationRepo struct {
	db *DB
}

// NewNotificationRepo creates a new NotificationRepo backed by the given DB.
func NewNotificationRepo(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, message, read, related_id, created_at`

// Create inserts a new notification and returns it with the assigned ID.
func (r *NotificationRepo) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	const query = `INSERT INTO notifications (user_id, type, message, related_id) VALUES (?, ?, ?, ?)`

	res, err := r.db.Writer.ExecContext(ctx, query, n.UserID, string(n.Type), n.Message, n.RelatedID)
	if err != nil {
		return model.Notification{}, fmt.Errorf("create notification for user %d: %w", n.UserID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Notification{}, fmt.Errorf("create notification: last insert id: %w", err)
	}
	n.ID = id

	return n, nil
}

// Exists reports whether a notification of the given type already exists for
// the user and related upstream id.
func (r *NotificationRepo) Exists(ctx context.Context, userID int64, typ model.NotificationType, relatedID string) (bool, error) {
	const query = `SELECT 1 FROM notifications WHERE user_id = ? AND type = ? AND related_id = ? LIMIT 1`

	var one int
	err := r.db.Reader.QueryRowContext(ctx, query, userID, string(typ), relatedID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("notification exists for user %d: %w", userID, err)
	}
	return true, nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	return r.queryList(ctx, query, userID, limit)
}

// ListUnreadByUser returns the user's unread notifications, newest first.
func (r *NotificationRepo) ListUnreadByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = ? AND read = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	return r.queryList(ctx, query, userID, limit)
}

// MarkRead flags the notification as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id int64) error {
	const query = `UPDATE notifications SET read = 1 WHERE user_id = ? AND id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, userID, id)
	if err != nil {
		return fmt.Errorf("mark notification %d read for user %d: %w", id, userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read rows affected: %w", err)
	}
	if affected == 0 {
		return driven.ErrNotFound
	}
	return nil
}

func (r *NotificationRepo) queryList(ctx context.Context, query string, args ...any) ([]model.Notification, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var (
			n         model.Notification
			typ       string
			read      int
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Message, &read, &n.RelatedID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}

		n.Type = model.NotificationType(typ)
		n.Read = read != 0

		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}

		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}
