// Package ratelimit paces backend requests with a rolling per-minute quota.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is the span over which the quota applies.
const Window = time.Minute

// Clock abstracts time so waits can be observed in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Limiter admits at most perMinute requests in any rolling Window.
//
// Unlike a fixed bucket, the oldest admission inside the window decides how
// long the next caller waits, so bursts are smoothed per request. Slots are
// reserved under the lock and the wait happens outside it: only the calling
// goroutine is suspended.
type Limiter struct {
	perMinute int
	clock     Clock

	mu    sync.Mutex
	times []time.Time // admission times, ascending
}

// New creates a limiter. A non-positive perMinute disables limiting.
// A nil clock uses SystemClock.
func New(perMinute int, clock Clock) *Limiter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Limiter{perMinute: perMinute, clock: clock}
}

// SetClock replaces the limiter's clock.
func (l *Limiter) SetClock(c Clock) {
	l.mu.Lock()
	l.clock = c
	l.mu.Unlock()
}

// Wait blocks until the caller may issue a request and returns how long it
// waited. If ctx is cancelled during the wait the reserved slot is released
// and ctx.Err() is returned.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	if l.perMinute <= 0 {
		return 0, nil
	}

	l.mu.Lock()
	clock := l.clock
	now := clock.Now()
	l.prune(now)

	admit := now
	if len(l.times) >= l.perMinute {
		// The slot frees up one window after the admission perMinute places back.
		admit = l.times[len(l.times)-l.perMinute].Add(Window)
	}
	if n := len(l.times); n > 0 && admit.Before(l.times[n-1]) {
		admit = l.times[n-1]
	}
	l.times = append(l.times, admit)
	l.mu.Unlock()

	wait := admit.Sub(now)
	if wait <= 0 {
		return 0, nil
	}

	select {
	case <-clock.After(wait):
		return wait, nil
	case <-ctx.Done():
		l.release(admit)
		return 0, ctx.Err()
	}
}

// InWindow returns the number of admissions inside the current window,
// including reservations that have not been reached yet.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.clock.Now())
	return len(l.times)
}

// prune drops admissions older than Window. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	i := 0
	for i < len(l.times) && now.Sub(l.times[i]) >= Window {
		i++
	}
	if i > 0 {
		l.times = append(l.times[:0], l.times[i:]...)
	}
}

func (l *Limiter) release(admit time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.times) - 1; i >= 0; i-- {
		if l.times[i].Equal(admit) {
			l.times = append(l.times[:i], l.times[i+1:]...)
			return
		}
	}
}
