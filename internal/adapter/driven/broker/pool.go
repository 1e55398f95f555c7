// Package broker implements the shared-broker driven ports (snapshot cache,
// sync lock, update pub/sub, rate window) on Redis via redigo. Every
// operation maps transport failures to driven.ErrBrokerUnavailable so the
// application layer can degrade without inspecting redigo internals.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// NewPool creates a redigo connection pool for the given address. The pool is
// lazy; a dead broker at startup is tolerated and every caller degrades per
// its own fallback policy.
func NewPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     3,
		MaxActive:   16,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Ping reports whether the broker is reachable. Used by the health endpoint
// and by the realtime hub to decide between live and degraded streams.
func Ping(ctx context.Context, pool *redis.Pool) error {
	conn, err := pool.GetContext(ctx)
	if err != nil {
		return brokerErr(err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "PING"); err != nil {
		return brokerErr(err)
	}
	return nil
}

func brokerErr(err error) error {
	return fmt.Errorf("%w: %v", driven.ErrBrokerUnavailable, err)
}

func snapshotKey(userID int64) string {
	return fmt.Sprintf("dashboard:summary:%d", userID)
}

func lockKey(userID int64) string {
	return fmt.Sprintf("sync:locked:%d", userID)
}

func updatesChannel(userID int64) string {
	return fmt.Sprintf("updates:%d", userID)
}
