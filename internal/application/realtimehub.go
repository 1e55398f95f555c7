package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// streamBuffer bounds the per-subscriber event channel. A consumer that
// cannot keep up loses events rather than stalling the hub; a dropped
// refresh event only costs one dashboard reload.
const streamBuffer = 8

// RealtimeHub connects live client streams to the per-user update channels
// in the broker. When the broker is unreachable a stream still opens, in
// degraded mode: the client learns it will not receive change events and
// keeps getting heartbeats so the connection stays provably alive.
type RealtimeHub struct {
	pub       driven.Publisher
	sub       driven.Subscriber
	heartbeat time.Duration
	now       func() time.Time
}

// NewRealtimeHub creates a hub with the given heartbeat cadence.
func NewRealtimeHub(pub driven.Publisher, sub driven.Subscriber, heartbeat time.Duration) *RealtimeHub {
	return &RealtimeHub{
		pub:       pub,
		sub:       sub,
		heartbeat: heartbeat,
		now:       time.Now,
	}
}

// PublishRefresh announces on the user's update channel that their mirror
// changed and any cached view is stale. Every subscriber on every serving
// process receives it.
func (h *RealtimeHub) PublishRefresh(ctx context.Context, userID int64) error {
	event := model.UpdateEvent{
		ID:        uuid.NewString(),
		Type:      model.EventRefreshDashboard,
		UserID:    userID,
		Timestamp: h.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal update event: %w", err)
	}
	return h.pub.Publish(ctx, userID, payload)
}

// Subscribe opens a live event stream for the user. The returned channel
// carries an initial status event, a heartbeat every heartbeat interval, and
// any events published on the user's channel. It is closed after cancel is
// called or ctx ends. cancel is safe to call more than once.
func (h *RealtimeHub) Subscribe(ctx context.Context, userID int64) (<-chan model.UpdateEvent, func()) {
	out := make(chan model.UpdateEvent, streamBuffer)

	streamCtx, stop := context.WithCancel(ctx)

	raw, rawCancel, err := h.sub.Subscribe(streamCtx, userID)
	degraded := false
	if err != nil {
		if !errors.Is(err, driven.ErrBrokerUnavailable) {
			slog.Error("subscribe failed", "user_id", userID, "error", err)
		} else {
			slog.Warn("stream degraded to heartbeat-only, broker unavailable", "user_id", userID)
		}
		degraded = true
		raw = nil
		rawCancel = func() {}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			rawCancel()
			stop()
		})
	}

	go h.pump(streamCtx, userID, raw, out, degraded)

	return out, cancel
}

// pump drives one subscriber stream until the context ends.
func (h *RealtimeHub) pump(ctx context.Context, userID int64, raw <-chan []byte, out chan<- model.UpdateEvent, degraded bool) {
	defer close(out)

	status := model.StreamConnected
	if degraded {
		status = model.StreamDegraded
	}
	h.offer(userID, out, model.UpdateEvent{
		Type:      model.EventStatus,
		Status:    status,
		Timestamp: h.now().UTC(),
	})

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.offer(userID, out, model.UpdateEvent{
				Type:      model.EventHeartbeat,
				Timestamp: h.now().UTC(),
			})
		case payload, ok := <-raw:
			if !ok {
				// The broker connection dropped mid-stream. Keep the client
				// stream open on heartbeats only; the next connect attempt
				// gets a fresh subscription.
				h.offer(userID, out, model.UpdateEvent{
					Type:      model.EventStatus,
					Status:    model.StreamDegraded,
					Timestamp: h.now().UTC(),
				})
				raw = nil
				continue
			}

			var event model.UpdateEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				slog.Warn("discarding undecodable update event", "user_id", userID, "error", err)
				continue
			}
			h.offer(userID, out, event)
		}
	}
}

// offer delivers without blocking; a full subscriber buffer drops the event.
func (h *RealtimeHub) offer(userID int64, out chan<- model.UpdateEvent, event model.UpdateEvent) {
	select {
	case out <- event:
	default:
		slog.Warn("subscriber buffer full, dropping event",
			"user_id", userID, "type", event.Type)
	}
}
