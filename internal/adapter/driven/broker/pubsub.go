package broker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gomodule/redigo/redis"

	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Publisher  = (*PubSub)(nil)
	_ driven.Subscriber = (*PubSub)(nil)
)

// PubSub implements update fan-out on per-user updates:{userID} channels.
// Publishing borrows a pooled connection; each subscription holds a dedicated
// connection for the lifetime of the stream, since a Redis connection in
// subscribe mode cannot be returned to the pool.
type PubSub struct {
	pool *redis.Pool
}

// NewPubSub creates a PubSub backed by the given pool.
func NewPubSub(pool *redis.Pool) *PubSub {
	return &PubSub{pool: pool}
}

// Publish delivers payload to every subscriber of the user's channel,
// including subscribers on other serving processes.
func (p *PubSub) Publish(ctx context.Context, userID int64, payload []byte) error {
	conn, err := p.pool.GetContext(ctx)
	if err != nil {
		return brokerErr(err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "PUBLISH", updatesChannel(userID), payload); err != nil {
		return brokerErr(err)
	}
	return nil
}

// Subscribe opens a subscription on the user's channel. The returned channel
// is closed when cancel is called or the connection drops. cancel closes the
// underlying connection, which promptly unblocks the receive loop.
func (p *PubSub) Subscribe(ctx context.Context, userID int64) (<-chan []byte, func(), error) {
	conn, err := p.pool.DialContext(ctx)
	if err != nil {
		return nil, nil, brokerErr(err)
	}

	psc := redis.PubSubConn{Conn: conn}
	if err := psc.Subscribe(updatesChannel(userID)); err != nil {
		_ = conn.Close()
		return nil, nil, brokerErr(err)
	}

	events := make(chan []byte, 8)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			// Closing the connection unblocks a pending Receive.
			_ = conn.Close()
		})
	}

	go func() {
		defer close(events)
		defer cancel()

		for {
			switch v := psc.Receive().(type) {
			case redis.Message:
				select {
				case events <- v.Data:
				default:
					// Slow consumer: drop rather than block the receive loop.
					slog.Warn("dropping update event for slow subscriber", "user_id", userID)
				}
			case redis.Subscription:
				if v.Count == 0 {
					return
				}
			case error:
				return
			}
		}
	}()

	return events, cancel, nil
}
