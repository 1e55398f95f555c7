package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventStore = (*EventRepo)(nil)

// EventRepo is the SQLite implementation of the EventStore port interface.
// Attendees are serialized as a JSON array in the TEXT column.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo backed by the given DB.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

const eventColumns = `id, user_id, upstream_id, title, location, starts_at, ends_at, attendees, dismissed, created_at, updated_at`

// Upsert inserts the event or updates the sync-owned field set of an existing
// (user_id, upstream_id) row. The user-owned dismissed flag is deliberately
// absent from the conflict clause.
func (r *EventRepo) Upsert(ctx context.Context, ev model.CalendarEvent) error {
	const query = `
		INSERT INTO calendar_events (user_id, upstream_id, title, location, starts_at, ends_at, attendees)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, upstream_id) DO UPDATE SET
			title = excluded.title,
			location = excluded.location,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at,
			attendees = excluded.attendees,
			updated_at = CURRENT_TIMESTAMP
	`

	attendees := ev.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	attendeesJSON, err := json.Marshal(attendees)
	if err != nil {
		return fmt.Errorf("marshal attendees: %w", err)
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		ev.UserID, ev.UpstreamID, ev.Title, ev.Location,
		ev.StartsAt.UTC(), ev.EndsAt.UTC(), string(attendeesJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert event %q for user %d: %w", ev.UpstreamID, ev.UserID, err)
	}

	return nil
}

// GetByUpstreamID returns the mirrored event for the given user and upstream
// id, or nil if none exists.
func (r *EventRepo) GetByUpstreamID(ctx context.Context, userID int64, upstreamID string) (*model.CalendarEvent, error) {
	const query = `SELECT ` + eventColumns + ` FROM calendar_events WHERE user_id = ? AND upstream_id = ?`

	row := r.db.Reader.QueryRowContext(ctx, query, userID, upstreamID)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ListUpcoming returns the user's non-dismissed events starting at or after
// from, ordered by start time.
func (r *EventRepo) ListUpcoming(ctx context.Context, userID int64, from time.Time, limit int) ([]model.CalendarEvent, error) {
	const query = `
		SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE user_id = ? AND dismissed = 0 AND starts_at >= ?
		ORDER BY starts_at
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID, from.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events for user %d: %w", userID, err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// CountByUser returns the total number of mirrored events for the user.
func (r *EventRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM calendar_events WHERE user_id = ?`

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events for user %d: %w", userID, err)
	}
	return count, nil
}

// SetDismissed updates the user-owned dismissed flag.
func (r *EventRepo) SetDismissed(ctx context.Context, userID, id int64, dismissed bool) error {
	const query = `UPDATE calendar_events SET dismissed = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND id = ?`

	v := 0
	if dismissed {
		v = 1
	}

	res, err := r.db.Writer.ExecContext(ctx, query, v, userID, id)
	if err != nil {
		return fmt.Errorf("set event dismissed for user %d id %d: %w", userID, id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set event dismissed rows affected: %w", err)
	}
	if affected == 0 {
		return driven.ErrNotFound
	}
	return nil
}

func scanEvent(row rowScanner) (*model.CalendarEvent, error) {
	var (
		ev            model.CalendarEvent
		startsAt      string
		endsAt        string
		attendeesJSON string
		dismissed     int
		createdAt     string
		updatedAt     string
	)

	err := row.Scan(&ev.ID, &ev.UserID, &ev.UpstreamID, &ev.Title, &ev.Location,
		&startsAt, &endsAt, &attendeesJSON, &dismissed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}

	ev.Dismissed = dismissed != 0

	if err := json.Unmarshal([]byte(attendeesJSON), &ev.Attendees); err != nil {
		return nil, fmt.Errorf("unmarshal attendees: %w", err)
	}

	if ev.StartsAt, err = parseTime(startsAt); err != nil {
		return nil, fmt.Errorf("parse starts_at: %w", err)
	}
	if ev.EndsAt, err = parseTime(endsAt); err != nil {
		return nil, fmt.Errorf("parse ends_at: %w", err)
	}
	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if ev.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &ev, nil
}
