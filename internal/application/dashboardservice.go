package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// listLimit caps how many items of each kind a dashboard view carries.
const listLimit = 10

// DashboardService serves the aggregate dashboard read path. Views are
// computed exclusively from locally mirrored data; an upstream provider is
// never contacted while a request waits. The snapshot cache fronts the
// computation, and every read ends by giving the sync scheduler a chance to
// refresh a stale mirror in the background.
type DashboardService struct {
	messages  driven.MessageStore
	events    driven.EventStore
	tasks     driven.TaskStore
	notifs    driven.NotificationStore
	creds     driven.CredentialStore
	snapshots *SnapshotService
	scheduler *SyncScheduler
	service   string
	now       func() time.Time
}

// NewDashboardService creates the dashboard read-path service.
func NewDashboardService(
	messages driven.MessageStore,
	events driven.EventStore,
	tasks driven.TaskStore,
	notifs driven.NotificationStore,
	creds driven.CredentialStore,
	snapshots *SnapshotService,
	scheduler *SyncScheduler,
	service string,
) *DashboardService {
	return &DashboardService{
		messages:  messages,
		events:    events,
		tasks:     tasks,
		notifs:    notifs,
		creds:     creds,
		snapshots: snapshots,
		scheduler: scheduler,
		service:   service,
		now:       time.Now,
	}
}

// View returns the user's dashboard, from the snapshot cache when possible
// and recomputed from the mirror otherwise. Recomputed views are cached with
// their provenance before returning.
func (s *DashboardService) View(ctx context.Context, user model.User) (model.DashboardView, error) {
	if snap, ok := s.snapshots.Read(ctx, user.ID); ok {
		s.trigger(ctx, user)
		return snap.View, nil
	}

	view, provenance, err := s.compute(ctx, user)
	if err != nil {
		return model.DashboardView{}, err
	}

	s.snapshots.Write(ctx, user.ID, view, provenance)
	s.trigger(ctx, user)
	return view, nil
}

// compute assembles a view from mirrored rows and decides its provenance:
// a view for a user with no connected service and an empty mirror is
// placeholder content by definition, since a sync has never produced data.
func (s *DashboardService) compute(ctx context.Context, user model.User) (model.DashboardView, model.Provenance, error) {
	now := s.now().UTC()

	msgs, err := s.messages.ListByUser(ctx, user.ID, listLimit)
	if err != nil {
		return model.DashboardView{}, "", fmt.Errorf("list messages: %w", err)
	}
	events, err := s.events.ListUpcoming(ctx, user.ID, now, listLimit)
	if err != nil {
		return model.DashboardView{}, "", fmt.Errorf("list events: %w", err)
	}
	tasks, err := s.tasks.ListOpenByUser(ctx, user.ID, listLimit)
	if err != nil {
		return model.DashboardView{}, "", fmt.Errorf("list tasks: %w", err)
	}
	notifs, err := s.notifs.ListUnreadByUser(ctx, user.ID, listLimit)
	if err != nil {
		return model.DashboardView{}, "", fmt.Errorf("list notifications: %w", err)
	}

	unreadHigh := 0
	for _, m := range msgs {
		if m.Unread && m.Priority == model.PriorityHigh {
			unreadHigh++
		}
	}

	// Slice fields are forced non-nil so an empty view still marshals its
	// lists as [], both in the response body and in the cached snapshot.
	view := model.DashboardView{
		DailyBrief:    model.BuildDailyBrief(len(events), unreadHigh, len(tasks), now),
		Messages:      orEmpty(msgs),
		Events:        orEmpty(events),
		Tasks:         orEmpty(tasks),
		Notifications: orEmpty(notifs),
		Suggestions:   orEmpty(buildSuggestions(msgs, events, tasks, now)),
		GeneratedAt:   now,
	}

	provenance := model.ProvenanceFresh
	if len(msgs) == 0 && len(events) == 0 && !s.hasCredential(ctx, user.ID) {
		provenance = model.ProvenancePlaceholder
	}
	return view, provenance, nil
}

// trigger gives the scheduler the mirror size it needs for its staleness
// predicate. Count failures only cost a possibly skipped trigger.
func (s *DashboardService) trigger(ctx context.Context, user model.User) {
	msgCount, err := s.messages.CountByUser(ctx, user.ID)
	if err != nil {
		slog.Error("message count failed", "user_id", user.ID, "error", err)
		return
	}
	evCount, err := s.events.CountByUser(ctx, user.ID)
	if err != nil {
		slog.Error("event count failed", "user_id", user.ID, "error", err)
		return
	}
	s.scheduler.MaybeTrigger(ctx, user, msgCount+evCount)
}

func (s *DashboardService) hasCredential(ctx context.Context, userID int64) bool {
	_, err := s.creds.Get(ctx, userID, s.service)
	if err == nil {
		return true
	}
	if !errors.Is(err, driven.ErrNotFound) && !errors.Is(err, driven.ErrDecryptionFailure) &&
		!errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		slog.Error("credential lookup failed", "user_id", userID, "error", err)
	}
	return false
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// buildSuggestions derives action prompts from the view's contents.
func buildSuggestions(msgs []model.Message, events []model.CalendarEvent, tasks []model.Task, now time.Time) []model.Suggestion {
	var suggestions []model.Suggestion

	for _, m := range msgs {
		if m.Unread && m.Priority == model.PriorityHigh {
			suggestions = append(suggestions, model.Suggestion{
				Type:    "email",
				Message: fmt.Sprintf("Reply to %s about %q", m.Sender, m.Subject),
				Action:  "open_message",
			})
			break
		}
	}

	for _, e := range events {
		if e.StartsWithin(time.Hour, now) {
			suggestions = append(suggestions, model.Suggestion{
				Type:    "meeting",
				Message: fmt.Sprintf("%s starts soon, review the agenda", e.Title),
				Action:  "open_event",
			})
			break
		}
	}

	overdue := 0
	for _, t := range tasks {
		if t.Priority == model.PriorityHigh {
			overdue++
		}
	}
	if overdue > 0 {
		suggestions = append(suggestions, model.Suggestion{
			Type:    "task",
			Message: fmt.Sprintf("You have %d high priority action items open", overdue),
			Action:  "open_tasks",
		})
	}

	return suggestions
}
