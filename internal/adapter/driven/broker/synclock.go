package broker

import (
	"context"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SyncLock = (*SyncLock)(nil)

// SyncLock implements the ephemeral sync:locked:{userID} circuit-breaker
// marker with SET NX PX. The lock expires on its own; it is never released
// early, since it must suppress re-triggers for the full staleness window
// even when the guarded job stalls.
type SyncLock struct {
	pool *redis.Pool
}

// NewSyncLock creates a SyncLock backed by the given pool.
func NewSyncLock(pool *redis.Pool) *SyncLock {
	return &SyncLock{pool: pool}
}

// Acquire atomically sets the lock if absent and reports whether this caller
// obtained it.
func (l *SyncLock) Acquire(ctx context.Context, userID int64, ttl time.Duration) (bool, error) {
	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return false, brokerErr(err)
	}
	defer conn.Close()

	reply, err := redis.String(redis.DoContext(conn, ctx, "SET", lockKey(userID), "1", "NX", "PX", ttl.Milliseconds()))
	if errors.Is(err, redis.ErrNil) {
		// Key already present: another trigger is in flight or recently completed.
		return false, nil
	}
	if err != nil {
		return false, brokerErr(err)
	}
	return reply == "OK", nil
}
