package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// RateLimiter enforces a sliding-window request limit per (route class,
// identity) pair. The authoritative window lives in the broker so the limit
// holds across serving processes; when the broker is down each process
// enforces the same limit on its own local window, which is stricter than
// letting traffic through unmetered.
type RateLimiter struct {
	window driven.RateWindow
	limit  int
	period time.Duration
	now    func() time.Time

	mu    sync.Mutex
	local map[string][]time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per period.
func NewRateLimiter(window driven.RateWindow, limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		window: window,
		limit:  limit,
		period: period,
		now:    time.Now,
		local:  make(map[string][]time.Time),
	}
}

// Allow records one request for the identity under the given route class and
// returns ErrRateLimited when the window limit is exceeded. Rejected
// requests have no side effect beyond their own window entry.
func (l *RateLimiter) Allow(ctx context.Context, class, identity string) error {
	key := fmt.Sprintf("ratelimit:%s:%s", class, identity)

	count, err := l.window.Add(ctx, key, l.now(), l.period)
	if err != nil {
		if !errors.Is(err, driven.ErrBrokerUnavailable) {
			slog.Error("rate window update failed", "key", key, "error", err)
		} else {
			slog.Warn("rate limiting degraded to process-local window", "key", key)
		}
		count = l.allowLocal(key)
	}

	if count > l.limit {
		return fmt.Errorf("%w: %s", driven.ErrRateLimited, class)
	}
	return nil
}

// allowLocal records the request in the in-process window and returns the
// resulting count.
func (l *RateLimiter) allowLocal(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.period)

	kept := l.local[key][:0]
	for _, t := range l.local[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	l.local[key] = kept

	return len(kept)
}
