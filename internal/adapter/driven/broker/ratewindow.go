package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"

	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RateWindow = (*RateWindow)(nil)

// RateWindow implements the shared sliding-window counter as a Redis sorted
// set: scores are request timestamps, members are unique per request. Trim,
// add, count, and expire run in one MULTI/EXEC transaction.
type RateWindow struct {
	pool *redis.Pool
}

// NewRateWindow creates a RateWindow backed by the given pool.
func NewRateWindow(pool *redis.Pool) *RateWindow {
	return &RateWindow{pool: pool}
}

// Add records a request under key at time now, drops entries older than
// now-window, and returns the resulting count inside the window.
func (w *RateWindow) Add(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	conn, err := w.pool.GetContext(ctx)
	if err != nil {
		return 0, brokerErr(err)
	}
	defer conn.Close()

	score := now.UnixNano()
	cutoff := now.Add(-window).UnixNano()
	// Nanosecond scores still collide under concurrency; a uuid member keeps
	// every request distinct in the set.
	member := fmt.Sprintf("%d-%s", score, uuid.NewString())

	if err := conn.Send("MULTI"); err != nil {
		return 0, brokerErr(err)
	}
	if err := conn.Send("ZREMRANGEBYSCORE", key, "-inf", cutoff); err != nil {
		return 0, brokerErr(err)
	}
	if err := conn.Send("ZADD", key, score, member); err != nil {
		return 0, brokerErr(err)
	}
	if err := conn.Send("ZCARD", key); err != nil {
		return 0, brokerErr(err)
	}
	if err := conn.Send("EXPIRE", key, int64(window.Seconds())+10); err != nil {
		return 0, brokerErr(err)
	}

	replies, err := redis.Values(redis.DoContext(conn, ctx, "EXEC"))
	if err != nil {
		return 0, brokerErr(err)
	}
	if len(replies) != 4 {
		return 0, brokerErr(fmt.Errorf("unexpected EXEC reply length %d", len(replies)))
	}

	count, err := redis.Int(replies[2], nil)
	if err != nil {
		return 0, brokerErr(err)
	}
	return count, nil
}
