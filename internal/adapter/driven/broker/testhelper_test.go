package broker

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"
)

// setupBroker starts an in-process Redis and returns it with a pool dialing
// it. The server and pool are torn down with the test.
func setupBroker(t *testing.T) (*miniredis.Miniredis, *redis.Pool) {
	t.Helper()

	s := miniredis.RunT(t)
	pool := NewPool(s.Addr())
	t.Cleanup(func() { _ = pool.Close() })

	return s, pool
}

// deadPool returns a pool dialing an address nothing listens on.
func deadPool(t *testing.T) *redis.Pool {
	t.Helper()

	pool := NewPool("127.0.0.1:1")
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}
