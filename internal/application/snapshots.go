package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// placeholderSentinels are strings that only ever appeared in the fixture
// data an earlier version of the system served while a user's first sync was
// still running. Snapshots written before provenance tagging existed carry no
// provenance field, so a serialized view containing any of these is treated
// as placeholder and evicted.
var placeholderSentinels = [][]byte{
	[]byte("Sarah Chen"),
	[]byte("Mike Johnson"),
}

// SnapshotService is the read-through cache for per-user dashboard views.
// The broker is an accelerator only: every failure path degrades to a miss
// or a no-op, never to a request error.
type SnapshotService struct {
	store driven.SnapshotStore
	ttl   time.Duration
	now   func() time.Time
}

// NewSnapshotService creates a snapshot cache with the given TTL.
func NewSnapshotService(store driven.SnapshotStore, ttl time.Duration) *SnapshotService {
	return &SnapshotService{store: store, ttl: ttl, now: time.Now}
}

// Read returns the user's cached snapshot if it can satisfy a read: present,
// inside the TTL, tagged fresh, and free of placeholder sentinels. Tainted
// entries are evicted so the very next read recomputes. Broker failures are
// logged and reported as a miss.
func (s *SnapshotService) Read(ctx context.Context, userID int64) (*model.Snapshot, bool) {
	payload, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, driven.ErrBrokerUnavailable) {
			slog.Warn("snapshot read degraded to miss, broker unavailable",
				"user_id", userID, "error", err)
		}
		return nil, false
	}

	var snap model.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		slog.Warn("evicting undecodable snapshot", "user_id", userID, "error", err)
		s.Invalidate(ctx, userID)
		return nil, false
	}

	// Envelopes written before provenance tagging existed carry no tag; for
	// those the sentinel scan is the only way to spot placeholder data. A
	// tagged envelope is trusted, so a real contact who happens to share a
	// fixture name cannot poison the cache forever.
	if snap.Provenance == "" {
		if tainted(payload) {
			slog.Info("evicting tainted snapshot", "user_id", userID)
			s.Invalidate(ctx, userID)
			return nil, false
		}
		snap.Provenance = model.ProvenanceFresh
	}

	if !snap.Fresh(s.ttl, s.now()) {
		return nil, false
	}
	return &snap, true
}

// Write caches the view under the user's snapshot key with the configured
// TTL. Provenance is recorded in the envelope so later reads never have to
// guess whether the view held real data. Broker failures are logged and
// swallowed.
func (s *SnapshotService) Write(ctx context.Context, userID int64, view model.DashboardView, provenance model.Provenance) {
	snap := model.Snapshot{
		UserID:     userID,
		WrittenAt:  s.now().UTC(),
		Provenance: provenance,
		View:       view,
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		slog.Error("marshal snapshot failed", "user_id", userID, "error", err)
		return
	}

	if err := s.store.Set(ctx, userID, payload, s.ttl); err != nil {
		slog.Warn("snapshot write skipped, broker unavailable",
			"user_id", userID, "error", err)
	}
}

// Invalidate removes the user's snapshot. Removing a missing snapshot and a
// broker outage are both non-events for the caller.
func (s *SnapshotService) Invalidate(ctx context.Context, userID int64) {
	err := s.store.Delete(ctx, userID)
	if err != nil && !errors.Is(err, driven.ErrNotFound) {
		slog.Warn("snapshot invalidation skipped, broker unavailable",
			"user_id", userID, "error", err)
	}
}

// tainted reports whether the serialized view contains a known placeholder
// sentinel.
func tainted(payload []byte) bool {
	for _, sentinel := range placeholderSentinels {
		if bytes.Contains(payload, sentinel) {
			return true
		}
	}
	return false
}
