package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Tiers and errors
// ---------------------------------------------------------------------------

// Tier selects which token bucket of a domain gates a call.
type Tier string

const (
	// TierGeneral covers regular REST calls (search, products, collections)
	TierGeneral Tier = "general"
	// TierInventory covers inventory level calls, which destinations budget
	// far more tightly
	TierInventory Tier = "inventory"
)

// IsValid returns true if the tier is valid
func (t Tier) IsValid() bool {
	return t == TierGeneral || t == TierInventory
}

var (
	// ErrQueueFull is returned when a dispatch queue is at its bounded depth
	ErrQueueFull = errors.New("ratelimit: dispatch queue full")
	// ErrInvalidTier is returned for an unknown tier
	ErrInvalidTier = errors.New("ratelimit: invalid tier")
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds the bucket parameters per tier and the queue depth bound.
type Config struct {
	// GeneralCapacity is the burst capacity of the general tier
	GeneralCapacity int
	// GeneralPerSecond is the refill rate of the general tier
	GeneralPerSecond float64
	// InventoryCapacity is the burst capacity of the inventory tier
	InventoryCapacity int
	// InventoryPerSecond is the refill rate of the inventory tier
	InventoryPerSecond float64
	// MaxQueueDepth bounds waiters per (domain, tier) queue; submissions
	// beyond it fail immediately with ErrQueueFull
	MaxQueueDepth int
}

// DefaultConfig returns the destination API budget the engine ships with.
func DefaultConfig() Config {
	return Config{
		GeneralCapacity:    40,
		GeneralPerSecond:   40,
		InventoryCapacity:  2,
		InventoryPerSecond: 2,
		MaxQueueDepth:      1000,
	}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry owns one dispatch queue per (domain, tier) pair, created lazily
// and cached for the process lifetime. Buckets are shared by every job
// targeting the same destination domain: the quota belongs to the
// destination, not to the job.
type Registry struct {
	config Config
	logger *zap.Logger

	// now and sleep are injectable for simulated-time tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	queues map[string]*dispatchQueue
}

// NewRegistry creates a dispatcher registry with the given configuration.
func NewRegistry(config Config, logger *zap.Logger) *Registry {
	return &Registry{
		config: config,
		logger: logger,
		now:    time.Now,
		sleep:  sleepWithContext,
		queues: make(map[string]*dispatchQueue),
	}
}

// NewRegistryWithClock creates a registry with an injected clock, for tests.
func NewRegistryWithClock(config Config, logger *zap.Logger, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Registry {
	r := NewRegistry(config, logger)
	r.now = now
	r.sleep = sleep
	return r
}

// Execute runs fn once a token for (domain, tier) is available. Callers
// beyond available tokens enqueue FIFO and are released in arrival order as
// tokens refill. The dispatcher never retries; retry policy is layered
// outside it.
func (r *Registry) Execute(ctx context.Context, domain string, tier Tier, fn func(ctx context.Context) error) error {
	if !tier.IsValid() {
		return ErrInvalidTier
	}

	q := r.queue(domain, tier)

	if err := q.acquireTurn(ctx); err != nil {
		if errors.Is(err, ErrQueueFull) {
			r.logger.Warn("Dispatch queue full, rejecting call",
				zap.String("domain", domain),
				zap.String("tier", string(tier)),
			)
		}
		return err
	}

	// Hold the turn only until a token is granted, so execution of the call
	// itself does not serialize behind us.
	for {
		ok, wait := q.bucket.take()
		if ok {
			break
		}
		if err := r.sleep(ctx, wait); err != nil {
			q.releaseTurn()
			return err
		}
	}
	q.releaseTurn()

	return fn(ctx)
}

// QueueDepth reports the number of callers currently waiting on a queue.
func (r *Registry) QueueDepth(domain string, tier Tier) int {
	q := r.queue(domain, tier)
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// queue returns the lazily created dispatch queue for (domain, tier).
func (r *Registry) queue(domain string, tier Tier) *dispatchQueue {
	key := domain + "|" + string(tier)

	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[key]; ok {
		return q
	}

	var bucket *tokenBucket
	switch tier {
	case TierInventory:
		bucket = newTokenBucket(r.config.InventoryCapacity, r.config.InventoryPerSecond, r.now)
	default:
		bucket = newTokenBucket(r.config.GeneralCapacity, r.config.GeneralPerSecond, r.now)
	}

	q := &dispatchQueue{
		bucket:   bucket,
		maxDepth: r.config.MaxQueueDepth,
	}
	r.queues[key] = q

	r.logger.Debug("Created dispatch queue",
		zap.String("domain", domain),
		zap.String("tier", string(tier)),
	)

	return q
}

// ---------------------------------------------------------------------------
// dispatchQueue
// ---------------------------------------------------------------------------

// dispatchQueue hands out the token-acquisition turn in strict arrival order.
// Only one caller at a time waits on the bucket; everyone else parks in the
// FIFO waiter list, bounded by maxDepth.
type dispatchQueue struct {
	bucket   *tokenBucket
	maxDepth int

	mu      sync.Mutex
	holding bool
	waiters []chan struct{}
}

// acquireTurn blocks until the caller holds the acquisition turn.
func (q *dispatchQueue) acquireTurn(ctx context.Context) error {
	q.mu.Lock()
	if !q.holding {
		q.holding = true
		q.mu.Unlock()
		return nil
	}
	if len(q.waiters) >= q.maxDepth {
		q.mu.Unlock()
		return ErrQueueFull
	}
	w := make(chan struct{})
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, other := range q.waiters {
			if other == w {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// The turn was granted concurrently with cancellation; hand it on.
		q.releaseTurn()
		return ctx.Err()
	}
}

// releaseTurn passes the turn to the next waiter in arrival order.
func (q *dispatchQueue) releaseTurn() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	q.holding = false
}

// sleepWithContext sleeps for d or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
