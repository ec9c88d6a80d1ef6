// Package ratelimit implements a sliding-window request limiter: at
// most Limit requests are allowed per Length, with the window resetting
// whenever more than Length has elapsed since it started.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces the sliding-window policy described in spec.md's
// "Rate-Limit Window" data model: {window_start, window_length, count,
// limit}; count resets to 1 whenever now - window_start > window_length.
type Limiter struct {
	mu sync.Mutex

	length time.Duration
	limit  int

	windowStart time.Time
	count       int

	// now is overridable in tests.
	now func() time.Time
}

// New returns a Limiter allowing at most limit requests per length. A
// nil or zero-value Limiter (limit <= 0) is unlimited.
func New(limit int, length time.Duration) *Limiter {
	return &Limiter{limit: limit, length: length, now: time.Now}
}

// Wait blocks until the caller is allowed to proceed, per the sliding
// window, or returns ctx.Err() if ctx is canceled first.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	for {
		d, ok := l.reserve()
		if ok {
			return nil
		}
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// reserve attempts to consume one slot in the current window. It
// returns (0, true) on success, or the duration the caller should wait
// before trying again.
func (l *Limiter) reserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) > l.length {
		l.windowStart = now
		l.count = 1
		return 0, true
	}
	if l.count < l.limit {
		l.count++
		return 0, true
	}
	// Window is full; caller must wait until it resets.
	wait := l.length - now.Sub(l.windowStart)
	if wait < 0 {
		wait = 0
	}
	return wait, false
}
