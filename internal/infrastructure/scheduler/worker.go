// Package scheduler runs the background machinery of the sync engine: the
// worker loop that claims and executes jobs, and the interval trigger that
// enqueues periodic full syncs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/application/syncengine"
	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/domain/destination"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// WorkerConfig holds configuration for the worker loop
type WorkerConfig struct {
	// PollInterval is how long the worker sleeps when the queue is empty
	PollInterval time.Duration
	// FailureDelay is a fixed pause after any job failure, so a persistently
	// broken connection does not hot-loop
	FailureDelay time.Duration
}

// DefaultWorkerConfig returns default worker configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 5 * time.Second,
		FailureDelay: time.Second,
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

// Worker is the single cooperative loop claiming queued jobs and running them
// to completion, one at a time. The atomic claim in the job repository keeps
// this safe if more worker processes are ever added.
type Worker struct {
	config      WorkerConfig
	jobs        catalogsync.JobRepository
	connections catalogsync.ConnectionRepository
	fetchers    []catalogsync.SourceCatalogFetcher
	platforms   destination.Registry
	reconciler  *syncengine.Reconciler
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// sleep is injectable for tests
	sleep func(ctx context.Context, d time.Duration)
}

// NewWorker creates a new worker loop
func NewWorker(
	config WorkerConfig,
	jobs catalogsync.JobRepository,
	connections catalogsync.ConnectionRepository,
	fetchers []catalogsync.SourceCatalogFetcher,
	platforms destination.Registry,
	reconciler *syncengine.Reconciler,
	logger *zap.Logger,
) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.FailureDelay <= 0 {
		config.FailureDelay = time.Second
	}
	return &Worker{
		config:      config,
		jobs:        jobs,
		connections: connections,
		fetchers:    fetchers,
		platforms:   platforms,
		reconciler:  reconciler,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Start starts the worker loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.runLoop(ctx)

	w.logger.Info("Sync worker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("source_fetchers", len(w.fetchers)),
	)
	return nil
}

// Stop stops the worker loop, waiting for a running job to finish
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Sync worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) runLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.jobs.Claim(ctx)
		if err != nil {
			if !errors.Is(err, catalogsync.ErrNoQueuedJobs) {
				w.logger.Error("Job claim failed", zap.Error(err))
			}
			w.sleep(ctx, w.config.PollInterval)
			continue
		}

		if err := w.runJob(ctx, job); err != nil {
			w.failJob(ctx, job, err)
			w.sleep(ctx, w.config.FailureDelay)
		}
	}
}

// RunOnce claims and runs at most one job; used by tests and manual drains.
// Returns ErrNoQueuedJobs when the queue is empty.
func (w *Worker) RunOnce(ctx context.Context) error {
	job, err := w.jobs.Claim(ctx)
	if err != nil {
		return err
	}
	if err := w.runJob(ctx, job); err != nil {
		w.failJob(ctx, job, err)
		return err
	}
	return nil
}

// runJob executes one claimed job end to end.
func (w *Worker) runJob(ctx context.Context, job *catalogsync.Job) error {
	logger := w.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("connection_id", job.ConnectionID.String()),
		zap.String("type", job.Type.String()),
	)
	logger.Info("Job started", zap.Int("attempt", job.Attempts+1))

	conn, err := w.connections.FindByID(ctx, job.ConnectionID)
	if err != nil {
		return fmt.Errorf("load connection: %w", err)
	}

	// The worker operates on an immutable snapshot taken at claim time;
	// mutable connection state is never re-read mid-run.
	snap := conn.Snapshot()
	if !snap.IsActive() {
		return catalogsync.ErrConnectionNotActive
	}

	items, err := w.fetchSources(ctx)
	if err != nil {
		return fmt.Errorf("fetch source catalog: %w", err)
	}
	items = catalogsync.Deduplicate(items)

	filtered := make([]catalogsync.CatalogItem, 0, len(items))
	for _, item := range items {
		out, skip := catalogsync.Evaluate(item, snap.Rules)
		if !skip {
			filtered = append(filtered, out)
		}
	}

	var jobItems []catalogsync.JobItem
	if job.Type == catalogsync.JobTypeDelta {
		jobItems, err = w.jobs.ListItems(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("load job items: %w", err)
		}
		skus := make([]string, len(jobItems))
		for i, it := range jobItems {
			skus[i] = it.SKU
		}
		filtered = catalogsync.FilterBySKUs(filtered, skus)
	}

	platform, err := w.platforms.ForConnection(snap)
	if err != nil {
		return fmt.Errorf("build destination adapter: %w", err)
	}

	summary := w.reconciler.Reconcile(ctx, snap, platform, job.ID, filtered)
	w.recordItemOutcomes(ctx, jobItems, summary)

	if err := job.Succeed(); err != nil {
		return err
	}
	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job result: %w", err)
	}
	if err := w.connections.UpdateLastSyncedAt(ctx, snap.ID, time.Now()); err != nil {
		logger.Warn("Failed to record last synced time", zap.Error(err))
	}

	logger.Info("Job succeeded",
		zap.Int("groups", summary.Groups),
		zap.Int("groups_failed", summary.GroupsFailed),
		zap.Int("products_created", summary.ProductsCreated),
		zap.Int("variants_added", summary.VariantsAdded),
		zap.Int("prices_updated", summary.PricesUpdated),
		zap.Int("stocks_updated", summary.StocksUpdated),
	)
	return nil
}

// fetchSources pulls every configured source catalog.
func (w *Worker) fetchSources(ctx context.Context) ([]catalogsync.CatalogItem, error) {
	var items []catalogsync.CatalogItem
	for _, fetcher := range w.fetchers {
		fetched, err := fetcher.FetchSourceCatalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fetcher.SourcePlatform(), err)
		}
		items = append(items, fetched...)
	}
	return items, nil
}

// recordItemOutcomes writes per-SKU results back to the delta job's items.
// A SKU in a failed product group is failed; everything else succeeded (a SKU
// filtered out by rules or stock policy is a decision, not a failure).
func (w *Worker) recordItemOutcomes(ctx context.Context, jobItems []catalogsync.JobItem, summary syncengine.Summary) {
	for i := range jobItems {
		item := &jobItems[i]
		if groupErr, failed := summary.Failed[item.SKU]; failed {
			item.State = catalogsync.JobItemStateFailed
			item.Error = groupErr.Error()
		} else {
			item.State = catalogsync.JobItemStateSucceeded
		}
		item.UpdatedAt = time.Now()
		if err := w.jobs.UpdateItem(ctx, item); err != nil {
			w.logger.Warn("Failed to record job item outcome",
				zap.String("sku", item.SKU),
				zap.Error(err))
		}
	}
}

// failJob records a failed attempt, re-queueing or dead-lettering per the
// attempt budget.
func (w *Worker) failJob(ctx context.Context, job *catalogsync.Job, cause error) {
	if err := job.Fail(cause.Error()); err != nil {
		w.logger.Error("Illegal job transition on failure",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
		return
	}
	if err := w.jobs.Update(ctx, job); err != nil {
		w.logger.Error("Failed to persist job failure",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
		return
	}

	w.logger.Warn("Job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("state", string(job.State)),
		zap.Int("attempts", job.Attempts),
		zap.Error(cause),
	)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
