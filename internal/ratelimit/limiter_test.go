package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances its own time whenever a wait fires, so sleeps are
// observable without real delays. With hold set, waits never fire.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	hold   bool
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if c.hold {
		return ch
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	ch <- c.now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_UnderQuotaDoesNotWait(t *testing.T) {
	clock := newFakeClock()
	l := New(3, clock)

	for range 3 {
		waited, err := l.Wait(context.Background())
		require.NoError(t, err)
		assert.Zero(t, waited)
	}
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 3, l.InWindow())
}

func TestLimiter_WaitsForOldestToExpire(t *testing.T) {
	clock := newFakeClock()
	l := New(3, clock)
	ctx := context.Background()

	// Admissions at t=0s, 10s, 20s.
	for range 3 {
		_, err := l.Wait(ctx)
		require.NoError(t, err)
		clock.Advance(10 * time.Second)
	}

	// At t=30s the quota is full: wait 60 - (30 - 0) = 30s.
	waited, err := l.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, waited)

	// Now t=60s, admissions at 10s, 20s, 60s: wait 60 - (60 - 10) = 10s.
	waited, err = l.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, waited)

	assert.Equal(t, []time.Duration{30 * time.Second, 10 * time.Second}, clock.sleeps)
}

func TestLimiter_RollingNotFixedBucket(t *testing.T) {
	clock := newFakeClock()
	l := New(2, clock)
	ctx := context.Background()

	_, err := l.Wait(ctx) // t=0
	require.NoError(t, err)
	clock.Advance(59 * time.Second)
	_, err = l.Wait(ctx) // t=59
	require.NoError(t, err)
	clock.Advance(2 * time.Second)

	// t=61: the t=0 admission has left the window, the t=59 one has not.
	waited, err := l.Wait(ctx)
	require.NoError(t, err)
	assert.Zero(t, waited)

	// t=61 with admissions at 59 and 61: wait until 59+60 = 119.
	waited, err = l.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 58*time.Second, waited)
}

func TestLimiter_ExpiredEntriesDropped(t *testing.T) {
	clock := newFakeClock()
	l := New(5, clock)

	for range 4 {
		_, err := l.Wait(context.Background())
		require.NoError(t, err)
	}
	clock.Advance(Window)
	assert.Equal(t, 0, l.InWindow())
}

func TestLimiter_Disabled(t *testing.T) {
	clock := newFakeClock()
	l := New(0, clock)

	for range 100 {
		waited, err := l.Wait(context.Background())
		require.NoError(t, err)
		assert.Zero(t, waited)
	}
	assert.Equal(t, 0, l.InWindow())
}

func TestLimiter_CancelReleasesSlot(t *testing.T) {
	clock := newFakeClock()
	l := New(1, clock)

	_, err := l.Wait(context.Background())
	require.NoError(t, err)

	clock.hold = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = l.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.InWindow(), "cancelled reservation should be released")
}

func TestLimiter_ConcurrentCallersRespectQuota(t *testing.T) {
	clock := newFakeClock()
	clock.hold = true
	l := New(4, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Wait(ctx); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Only callers that did not need to wait were admitted before the deadline.
	assert.Equal(t, 4, admitted)
	assert.Equal(t, 4, l.InWindow())
}
