package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryThrottle is a fixed-window counter local to one process.
type MemoryThrottle struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryThrottle creates a throttle allowing limit issuances per window.
func NewMemoryThrottle(limit int, win time.Duration) *MemoryThrottle {
	return &MemoryThrottle{
		limit:   limit,
		window:  win,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records an attempt for key.
func (t *MemoryThrottle) Allow(_ context.Context, key string) (bool, error) {
	key = strings.ToLower(key)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[key]
	if !ok || !now.Before(w.resetAt) {
		t.evictExpired(now)
		w = &window{resetAt: now.Add(t.window)}
		t.windows[key] = w
	}
	w.count++

	return w.count <= t.limit, nil
}

func (t *MemoryThrottle) evictExpired(now time.Time) {
	for key, w := range t.windows {
		if !now.Before(w.resetAt) {
			delete(t.windows, key)
		}
	}
}
