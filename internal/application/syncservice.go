package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

const (
	// imminentWindow is how far ahead a meeting may start and still warrant
	// a reminder notification.
	imminentWindow = 30 * time.Minute

	// fetchLimit caps how many items one sync run pulls per source.
	fetchLimit = 20
)

// SyncWorker mirrors upstream provider data into local storage. Jobs arrive
// on a buffered channel from the read-path scheduler; a periodic sweep also
// enqueues every user with a connected credential so mirrors stay warm
// without dashboard traffic.
//
// A sync run is the only writer of sync-owned mirror fields. It never deletes
// mirrored rows and never touches user-owned flags.
type SyncWorker struct {
	users     driven.UserStore
	messages  driven.MessageStore
	events    driven.EventStore
	notifs    driven.NotificationStore
	vault     *CredentialVault
	provider  driven.ProviderClient
	snapshots *SnapshotService
	hub       *RealtimeHub
	service   string
	interval  time.Duration
	workers   int
	jobs      chan int64
	now       func() time.Time
}

// NewSyncWorker creates a sync worker pool. workers is the number of
// concurrent sync goroutines; queueSize bounds the pending job channel.
func NewSyncWorker(
	users driven.UserStore,
	messages driven.MessageStore,
	events driven.EventStore,
	notifs driven.NotificationStore,
	vault *CredentialVault,
	provider driven.ProviderClient,
	snapshots *SnapshotService,
	hub *RealtimeHub,
	service string,
	interval time.Duration,
	workers, queueSize int,
) *SyncWorker {
	return &SyncWorker{
		users:     users,
		messages:  messages,
		events:    events,
		notifs:    notifs,
		vault:     vault,
		provider:  provider,
		snapshots: snapshots,
		hub:       hub,
		service:   service,
		interval:  interval,
		workers:   workers,
		jobs:      make(chan int64, queueSize),
		now:       time.Now,
	}
}

// Enqueue offers a sync job for the user without blocking. It reports false
// when the queue is full; callers decide whether that matters.
func (w *SyncWorker) Enqueue(userID int64) bool {
	select {
	case w.jobs <- userID:
		return true
	default:
		return false
	}
}

// Start launches the worker pool and the periodic sweep, runs an immediate
// sweep, and blocks until the context is canceled.
func (w *SyncWorker) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case userID := <-w.jobs:
					w.SyncUser(ctx, userID)
				}
			}
		}()
	}

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			slog.Info("sync worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep enqueues every connected user whose mirror is due for a refresh.
func (w *SyncWorker) sweep(ctx context.Context) {
	users, err := w.users.ListWithCredential(ctx, w.service)
	if err != nil {
		slog.Error("sync sweep: list users failed", "error", err)
		return
	}

	enqueued := 0
	for _, u := range users {
		if !u.NeedsSync(w.interval, w.now()) {
			continue
		}
		if w.Enqueue(u.ID) {
			enqueued++
		} else {
			slog.Warn("sync queue full during sweep", "user_id", u.ID)
		}
	}
	if enqueued > 0 {
		slog.Info("sync sweep enqueued users", "count", enqueued)
	}
}

// SyncUser runs one full sync for the user: resolve a token, mirror each
// source independently, record the attempt, and on any change invalidate the
// snapshot before announcing it. Failures are contained here; nothing
// propagates to the caller.
func (w *SyncWorker) SyncUser(ctx context.Context, userID int64) {
	started := w.now()
	updates := 0

	token, err := w.vault.AccessToken(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, driven.ErrNotFound):
			slog.Info("sync skipped, no credential", "user_id", userID)
		case errors.Is(err, driven.ErrAuthExpired):
			slog.Warn("sync skipped, user must reconnect service", "user_id", userID)
		default:
			slog.Error("sync token resolution failed", "user_id", userID, "error", err)
		}
	} else {
		// One source failing must not stop the other from being mirrored.
		n, err := w.syncMessages(ctx, userID, token)
		if err != nil {
			slog.Error("message sync failed", "user_id", userID, "error", err)
		}
		updates += n

		n, err = w.syncEvents(ctx, userID, token)
		if err != nil {
			slog.Error("calendar sync failed", "user_id", userID, "error", err)
		}
		updates += n
	}

	// Recorded after every attempt, successful or not. Together with the
	// sync lock this is what keeps a persistently failing upstream from
	// being hammered once per read.
	if err := w.users.SetLastSyncedAt(ctx, userID, w.now().UTC()); err != nil {
		slog.Error("record sync attempt failed", "user_id", userID, "error", err)
	}

	if updates > 0 {
		// Invalidate before publishing: a client reacting to the event must
		// not be able to read the snapshot the event made obsolete.
		w.snapshots.Invalidate(ctx, userID)
		if err := w.hub.PublishRefresh(ctx, userID); err != nil {
			slog.Warn("refresh publish failed", "user_id", userID, "error", err)
		}
	}

	slog.Info("sync run finished",
		"user_id", userID, "updates", updates, "elapsed", w.now().Sub(started))
}

// syncMessages mirrors unread mail and returns how many rows changed.
func (w *SyncWorker) syncMessages(ctx context.Context, userID int64, token string) (int, error) {
	fetched, err := w.provider.FetchUnreadMessages(ctx, token, fetchLimit)
	if err != nil {
		return 0, fmt.Errorf("fetch messages: %w", err)
	}

	updates := 0
	for _, msg := range fetched {
		msg.UserID = userID

		existing, err := w.messages.GetByUpstreamID(ctx, userID, msg.UpstreamID)
		if err != nil {
			slog.Error("message lookup failed", "user_id", userID, "upstream_id", msg.UpstreamID, "error", err)
			continue
		}
		if existing != nil && existing.SyncedFieldsEqual(msg) {
			continue
		}

		if err := w.messages.Upsert(ctx, msg); err != nil {
			slog.Error("message upsert failed", "user_id", userID, "upstream_id", msg.UpstreamID, "error", err)
			continue
		}
		updates++

		if existing == nil && msg.Priority == model.PriorityHigh {
			w.notify(ctx, model.Notification{
				UserID:    userID,
				Type:      model.NotificationEmail,
				Message:   fmt.Sprintf("High priority email from %s: %s", msg.Sender, msg.Subject),
				RelatedID: msg.UpstreamID,
			})
		}
	}
	return updates, nil
}

// syncEvents mirrors upcoming calendar entries and returns how many rows
// changed.
func (w *SyncWorker) syncEvents(ctx context.Context, userID int64, token string) (int, error) {
	fetched, err := w.provider.FetchUpcomingEvents(ctx, token, fetchLimit)
	if err != nil {
		return 0, fmt.Errorf("fetch events: %w", err)
	}

	updates := 0
	for _, ev := range fetched {
		ev.UserID = userID

		existing, err := w.events.GetByUpstreamID(ctx, userID, ev.UpstreamID)
		if err != nil {
			slog.Error("event lookup failed", "user_id", userID, "upstream_id", ev.UpstreamID, "error", err)
			continue
		}
		if existing != nil && existing.SyncedFieldsEqual(ev) {
			continue
		}

		if err := w.events.Upsert(ctx, ev); err != nil {
			slog.Error("event upsert failed", "user_id", userID, "upstream_id", ev.UpstreamID, "error", err)
			continue
		}
		updates++

		if ev.StartsWithin(imminentWindow, w.now()) {
			w.notify(ctx, model.Notification{
				UserID:    userID,
				Type:      model.NotificationMeeting,
				Message:   fmt.Sprintf("%s starts at %s", ev.Title, ev.StartsAt.Local().Format("3:04 PM")),
				RelatedID: ev.UpstreamID,
			})
		}
	}
	return updates, nil
}

// notify creates the notification unless an identical alert already exists
// for the same item, so repeated sync runs do not spam the user.
func (w *SyncWorker) notify(ctx context.Context, n model.Notification) {
	exists, err := w.notifs.Exists(ctx, n.UserID, n.Type, n.RelatedID)
	if err != nil {
		slog.Error("notification dedup check failed", "user_id", n.UserID, "error", err)
		return
	}
	if exists {
		return
	}
	if _, err := w.notifs.Create(ctx, n); err != nil {
		slog.Error("create notification failed", "user_id", n.UserID, "error", err)
	}
}
