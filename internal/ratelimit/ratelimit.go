// Package ratelimit implements a fixed-window attempt counter keyed by an
// arbitrary identifier, such as an email address or a client IP.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Default limits for authentication attempts.
const (
	DefaultMax      = 10
	DefaultWindow   = time.Minute
	CleanupInterval = 5 * time.Minute
)

type window struct {
	count   int
	resetAt time.Time
}

// Limiter counts attempts per key inside a fixed window. The first attempt
// opens the window; it resets once the window has elapsed.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	period  time.Duration
	now     func() time.Time
}

// New creates a limiter allowing max attempts per period for each key.
func New(max int, period time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		max:     max,
		period:  period,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.period)}
		return true
	}

	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

// RetryAfter returns how long until key's window resets. Zero means the key
// is not currently limited.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.count < l.max {
		return 0
	}
	d := w.resetAt.Sub(l.now())
	if d < 0 {
		return 0
	}
	return d
}

// Reset forgets all attempts for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Sweep drops expired windows and returns how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Start runs Sweep every interval until ctx is cancelled.
func (l *Limiter) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}
