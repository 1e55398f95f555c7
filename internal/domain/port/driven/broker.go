package driven

import (
	"context"
	"time"
)

// SnapshotStore defines the driven port for the shared snapshot cache. Keys
// are dashboard:summary:{userID}; payloads are opaque serialized envelopes.
// All operations return ErrBrokerUnavailable when the broker cannot be
// reached; Get returns ErrNotFound on a plain miss.
type SnapshotStore interface {
	Get(ctx context.Context, userID int64) ([]byte, error)
	Set(ctx context.Context, userID int64, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, userID int64) error
}

// SyncLock defines the driven port for the ephemeral sync:locked:{userID}
// circuit-breaker marker. The lock auto-expires after its TTL; there is no
// explicit release, since the lock intentionally outlives the job it guards.
type SyncLock interface {
	// Acquire atomically sets the lock if absent and reports whether this
	// caller obtained it. Returns ErrBrokerUnavailable when the broker is
	// down, in which case the caller falls back to the durable signal.
	Acquire(ctx context.Context, userID int64, ttl time.Duration) (bool, error)
}

// Publisher defines the driven port for fan-out on per-user update channels.
type Publisher interface {
	// Publish delivers payload to every subscriber of updates:{userID},
	// including subscribers on other serving processes.
	Publish(ctx context.Context, userID int64, payload []byte) error
}

// Subscriber defines the driven port for attaching to a per-user update
// channel. Returns ErrBrokerUnavailable when the broker cannot be reached at
// subscribe time; callers then degrade to a heartbeat-only stream.
type Subscriber interface {
	// Subscribe opens a subscription on updates:{userID}. The returned
	// channel is closed after cancel is called or the connection drops.
	// cancel promptly releases the underlying channel handle and is safe to
	// call more than once.
	Subscribe(ctx context.Context, userID int64) (events <-chan []byte, cancel func(), err error)
}

// RateWindow defines the driven port for the shared sliding-window counter
// backing the rate limiter. Trim, add, count, and expire run atomically.
type RateWindow interface {
	// Add records a request under key at time now, drops entries older than
	// now-window, and returns the resulting count inside the window.
	// Returns ErrBrokerUnavailable when the broker is down; callers fall
	// back to a process-local window.
	Add(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
}
