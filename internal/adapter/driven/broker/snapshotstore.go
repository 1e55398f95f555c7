package broker

import (
	"context"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore stores serialized dashboard snapshots under
// dashboard:summary:{userID} with a broker-side TTL.
type SnapshotStore struct {
	pool *redis.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *redis.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Get returns the stored payload for the user. A plain miss is
// driven.ErrNotFound; an unreachable broker is driven.ErrBrokerUnavailable.
func (s *SnapshotStore) Get(ctx context.Context, userID int64) ([]byte, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, brokerErr(err)
	}
	defer conn.Close()

	payload, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", snapshotKey(userID)))
	if errors.Is(err, redis.ErrNil) {
		return nil, driven.ErrNotFound
	}
	if err != nil {
		return nil, brokerErr(err)
	}
	return payload, nil
}

// Set stores the payload with the given TTL, replacing any previous entry so
// at most one snapshot is live per user.
func (s *SnapshotStore) Set(ctx context.Context, userID int64, payload []byte, ttl time.Duration) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return brokerErr(err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "SET", snapshotKey(userID), payload, "PX", ttl.Milliseconds()); err != nil {
		return brokerErr(err)
	}
	return nil
}

// Delete evicts the user's snapshot. Deleting a missing entry is not an error.
func (s *SnapshotStore) Delete(ctx context.Context, userID int64) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return brokerErr(err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "DEL", snapshotKey(userID)); err != nil {
		return brokerErr(err)
	}
	return nil
}
