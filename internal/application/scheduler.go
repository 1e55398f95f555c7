package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// enqueuer is the slice of the sync worker the scheduler needs: a
// non-blocking hand-off onto the job queue.
type enqueuer interface {
	Enqueue(userID int64) bool
}

// SyncScheduler decides, on the read path, whether a user's mirror is due
// for a background refresh, and triggers at most one sync per staleness
// window across all serving processes.
//
// Two signals are consulted: the shared sync:locked marker in the broker
// (fast, cross-process) and the durable last_synced_at column (survives a
// broker outage). The lock has TTL equal to the staleness window and is set
// whenever a job is triggered, regardless of how that job turns out, so a
// failing upstream cannot cause a retry storm.
type SyncScheduler struct {
	lock   driven.SyncLock
	worker enqueuer
	window time.Duration
	now    func() time.Time
}

// NewSyncScheduler creates a scheduler over the given lock and worker queue.
func NewSyncScheduler(lock driven.SyncLock, worker enqueuer, window time.Duration) *SyncScheduler {
	return &SyncScheduler{
		lock:   lock,
		worker: worker,
		window: window,
		now:    time.Now,
	}
}

// MaybeTrigger enqueues a background sync for the user when the mirror looks
// stale: no mirrored items yet, never synced, or last synced outside the
// staleness window. It never blocks and never returns an error; a read must
// not fail because a refresh could not be scheduled.
func (s *SyncScheduler) MaybeTrigger(ctx context.Context, user model.User, mirrorCount int) {
	if mirrorCount > 0 && !user.NeedsSync(s.window, s.now()) {
		return
	}

	acquired, err := s.lock.Acquire(ctx, user.ID, s.window)
	if err != nil {
		if !errors.Is(err, driven.ErrBrokerUnavailable) {
			slog.Error("sync lock acquire failed", "user_id", user.ID, "error", err)
			return
		}
		// Broker down: the durable check above already passed, so trigger
		// anyway. Concurrent processes may duplicate the sync; upserts make
		// that harmless.
		slog.Warn("sync lock unavailable, falling back to durable staleness check",
			"user_id", user.ID)
	} else if !acquired {
		return
	}

	if !s.worker.Enqueue(user.ID) {
		// The lock stays set, so the user retries no sooner than the next
		// window. Dropping here beats blocking a read on a saturated queue.
		slog.Warn("sync queue full, dropping trigger", "user_id", user.ID)
	}
}
