package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// simClock is a manually advanced clock. Sleeping advances it instantly, so
// paced dispatch runs in simulated time.
type simClock struct {
	mu    sync.Mutex
	t     time.Time
	slept time.Duration
}

func newSimClock() *simClock {
	return &simClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *simClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *simClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.slept += d
	c.mu.Unlock()
	return nil
}

func (c *simClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *simClock) totalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

func newTestRegistry(config Config, clock *simClock) *Registry {
	return NewRegistryWithClock(config, zap.NewNop(), clock.now, clock.sleep)
}

// ---------------------------------------------------------------------------
// tokenBucket
// ---------------------------------------------------------------------------

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	clock := newSimClock()
	bucket := newTokenBucket(2, 1, clock.now)

	ok, _ := bucket.take()
	assert.True(t, ok)
	ok, _ = bucket.take()
	assert.True(t, ok)

	ok, wait := bucket.take()
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	clock.advance(time.Second)
	ok, _ = bucket.take()
	assert.True(t, ok)
}

func TestTokenBucket_FractionalAccrual(t *testing.T) {
	clock := newSimClock()
	bucket := newTokenBucket(1, 1, clock.now)

	ok, _ := bucket.take()
	require.True(t, ok)

	clock.advance(400 * time.Millisecond)
	ok, wait := bucket.take()
	assert.False(t, ok)
	// 0.4 tokens accrued, 0.6 still owed.
	assert.Equal(t, 600*time.Millisecond, wait)

	clock.advance(600 * time.Millisecond)
	ok, _ = bucket.take()
	assert.True(t, ok)
}

func TestTokenBucket_CapacityCapsAccrual(t *testing.T) {
	clock := newSimClock()
	bucket := newTokenBucket(3, 1, clock.now)

	clock.advance(time.Hour)
	assert.Equal(t, 3, bucket.available())
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistry_BurstWithinCapacityNeverWaits(t *testing.T) {
	clock := newSimClock()
	r := newTestRegistry(DefaultConfig(), clock)
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		err := r.Execute(ctx, "shop.example.com", TierGeneral, func(context.Context) error { return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, time.Duration(0), clock.totalSlept())
}

func TestDefaultConfigBudgets(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 40, config.GeneralCapacity)
	assert.Equal(t, float64(40), config.GeneralPerSecond)
	assert.Equal(t, 2, config.InventoryCapacity)
	assert.Equal(t, float64(2), config.InventoryPerSecond)
}

func TestRegistry_PacesBeyondCapacity(t *testing.T) {
	clock := newSimClock()
	r := newTestRegistry(DefaultConfig(), clock)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		err := r.Execute(ctx, "shop.example.com", TierGeneral, func(context.Context) error { return nil })
		require.NoError(t, err)
	}

	// 40 burst tokens, then 10 calls paced at 40 tokens per second
	// (25ms each). A burst of 50 therefore finishes well inside 1.25s.
	assert.Equal(t, 250*time.Millisecond, clock.totalSlept())
	assert.LessOrEqual(t, clock.totalSlept(), 1250*time.Millisecond)
}

func TestRegistry_TiersHaveIndependentBudgets(t *testing.T) {
	clock := newSimClock()
	r := newTestRegistry(DefaultConfig(), clock)
	ctx := context.Background()

	// Drain the inventory tier (capacity 2).
	for i := 0; i < 2; i++ {
		require.NoError(t, r.Execute(ctx, "shop.example.com", TierInventory, func(context.Context) error { return nil }))
	}
	require.Equal(t, time.Duration(0), clock.totalSlept())

	// General calls are unaffected by the drained inventory bucket.
	require.NoError(t, r.Execute(ctx, "shop.example.com", TierGeneral, func(context.Context) error { return nil }))
	assert.Equal(t, time.Duration(0), clock.totalSlept())

	// The next inventory call pays the refill wait (2 tokens/s => 500ms).
	require.NoError(t, r.Execute(ctx, "shop.example.com", TierInventory, func(context.Context) error { return nil }))
	assert.Equal(t, 500*time.Millisecond, clock.totalSlept())
}

func TestRegistry_DomainsAreIsolated(t *testing.T) {
	clock := newSimClock()
	config := Config{GeneralCapacity: 1, GeneralPerSecond: 1, InventoryCapacity: 1, InventoryPerSecond: 1, MaxQueueDepth: 10}
	r := newTestRegistry(config, clock)
	ctx := context.Background()

	require.NoError(t, r.Execute(ctx, "a.example.com", TierGeneral, func(context.Context) error { return nil }))
	require.NoError(t, r.Execute(ctx, "b.example.com", TierGeneral, func(context.Context) error { return nil }))
	assert.Equal(t, time.Duration(0), clock.totalSlept())
}

func TestRegistry_InvalidTier(t *testing.T) {
	clock := newSimClock()
	r := newTestRegistry(DefaultConfig(), clock)

	err := r.Execute(context.Background(), "shop.example.com", Tier("bulk"), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestRegistry_PropagatesCallError(t *testing.T) {
	clock := newSimClock()
	r := newTestRegistry(DefaultConfig(), clock)

	sentinel := errors.New("boom")
	err := r.Execute(context.Background(), "shop.example.com", TierGeneral, func(context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestRegistry_CancelledWhileWaitingForToken(t *testing.T) {
	clock := newSimClock()
	config := Config{GeneralCapacity: 1, GeneralPerSecond: 1, InventoryCapacity: 1, InventoryPerSecond: 1, MaxQueueDepth: 10}
	r := NewRegistryWithClock(config, zap.NewNop(), clock.now,
		func(ctx context.Context, d time.Duration) error { return context.Canceled })
	ctx := context.Background()

	require.NoError(t, r.Execute(ctx, "shop.example.com", TierGeneral, func(context.Context) error { return nil }))

	called := false
	err := r.Execute(ctx, "shop.example.com", TierGeneral, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

// ---------------------------------------------------------------------------
// dispatchQueue
// ---------------------------------------------------------------------------

func TestDispatchQueue_BoundedDepth(t *testing.T) {
	q := &dispatchQueue{
		bucket:   newTokenBucket(1, 1, nil),
		maxDepth: 1,
	}
	ctx := context.Background()

	// First caller takes the turn without queueing.
	require.NoError(t, q.acquireTurn(ctx))

	// Second caller parks as the single allowed waiter.
	waited := make(chan error, 1)
	go func() {
		waited <- q.acquireTurn(ctx)
	}()

	// Wait until the waiter is parked.
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.waiters) == 1
	}, time.Second, time.Millisecond)

	// Third caller overflows the bound.
	assert.ErrorIs(t, q.acquireTurn(ctx), ErrQueueFull)

	q.releaseTurn()
	assert.NoError(t, <-waited)
}

func TestDispatchQueue_ReleasesInArrivalOrder(t *testing.T) {
	q := &dispatchQueue{
		bucket:   newTokenBucket(1, 1, nil),
		maxDepth: 10,
	}
	ctx := context.Background()
	require.NoError(t, q.acquireTurn(ctx))

	const waiters = 5
	order := make(chan int, waiters)
	for i := 0; i < waiters; i++ {
		i := i
		// Park waiters one at a time so arrival order is deterministic.
		go func() {
			if err := q.acquireTurn(ctx); err == nil {
				order <- i
				q.releaseTurn()
			}
		}()
		require.Eventually(t, func() bool {
			q.mu.Lock()
			defer q.mu.Unlock()
			return len(q.waiters) == i+1
		}, time.Second, time.Millisecond)
	}

	q.releaseTurn()
	for i := 0; i < waiters; i++ {
		assert.Equal(t, i, <-order)
	}
}

func TestDispatchQueue_CancelledWaiterIsRemoved(t *testing.T) {
	q := &dispatchQueue{
		bucket:   newTokenBucket(1, 1, nil),
		maxDepth: 10,
	}
	require.NoError(t, q.acquireTurn(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.acquireTurn(ctx)
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.waiters) == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	q.mu.Lock()
	assert.Empty(t, q.waiters)
	q.mu.Unlock()
}

func TestQueueDepth(t *testing.T) {
	clock := newSimClock()
	r := newTestRegistry(DefaultConfig(), clock)
	assert.Equal(t, 0, r.QueueDepth("shop.example.com", TierGeneral))
}
