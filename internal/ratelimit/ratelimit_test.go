package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAllowWithinLimit(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(10, time.Second, clock.Now)

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(1), "event %d should be admitted", i+1)
	}
	assert.False(t, limiter.Allow(1), "11th event in the window should be rejected")
}

func TestWindowRollover(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(10, time.Second, clock.Now)

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(1))
	}
	require.False(t, limiter.Allow(1))

	clock.Advance(time.Second)
	assert.True(t, limiter.Allow(1), "budget should reset after the window lapses")
}

func TestRejectionDoesNotCarryOver(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(2, time.Second, clock.Now)

	require.True(t, limiter.Allow(1))
	require.True(t, limiter.Allow(1))
	for i := 0; i < 5; i++ {
		require.False(t, limiter.Allow(1))
	}

	clock.Advance(time.Second)
	assert.True(t, limiter.Allow(1))
	assert.True(t, limiter.Allow(1))
	assert.False(t, limiter.Allow(1))
}

func TestUsersAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(1, time.Second, clock.Now)

	require.True(t, limiter.Allow(1))
	require.False(t, limiter.Allow(1))
	assert.True(t, limiter.Allow(2), "another user's budget is untouched")
}

func TestConcurrentFirstAccess(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(100, time.Second, clock.Now)

	var wg sync.WaitGroup
	admitted := make([]bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			admitted[i] = limiter.Allow(7)
		}(i)
	}
	wg.Wait()

	for i, ok := range admitted {
		assert.True(t, ok, "event %d should be admitted under the limit", i)
	}
}

func TestConcurrentRolloverStaysWithinBudget(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(10, time.Second, clock.Now)

	// Exhaust the first window, then race many senders across the boundary.
	// Only one of them may reset the window, so the fresh budget is never
	// handed out more than once.
	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(1))
	}
	require.False(t, limiter.Allow(1))
	clock.Advance(time.Second)

	var wg sync.WaitGroup
	results := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- limiter.Allow(1)
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	assert.GreaterOrEqual(t, admitted, 1, "the window winner is always admitted")
	assert.LessOrEqual(t, admitted, 10, "rollover must not mint extra budget")
}

func TestConcurrentNeverExceedsLimit(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(10, time.Second, clock.Now)

	var wg sync.WaitGroup
	results := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- limiter.Allow(3)
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	assert.Equal(t, 10, admitted)
}
