// internal/ratelimit/limiter.go
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned by callers of Allow when a request is
// rejected. The caller may retry after the window.
var ErrRateLimited = errors.New("rate limited")

// Allower is the contract every limiter satisfies. A shared-counter
// implementation (external store with TTL) can replace the in-process
// one behind this interface; until then limits are per instance.
type Allower interface {
	Allow(key string) bool
}

// SlidingWindow counts requests per key inside a trailing window.
// State is process-local and not persisted.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// New creates a limiter allowing max requests per key per window.
func New(max int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		max:    max,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a request for key and reports whether it is within the
// limit. Denied requests are not recorded.
func (l *SlidingWindow) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.max {
		l.hits[key] = recent
		return false
	}

	l.hits[key] = append(recent, now)
	return true
}

// RetryAfter reports how long until the oldest counted request for key
// leaves the window. Zero when the key is under the limit.
func (l *SlidingWindow) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	recent := make([]time.Time, 0, len(l.hits[key]))
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) < l.max {
		return 0
	}
	return recent[0].Add(l.window).Sub(now)
}
