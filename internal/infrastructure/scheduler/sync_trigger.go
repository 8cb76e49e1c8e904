package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/catalogsync"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SyncTriggerConfig holds configuration for the interval sync trigger
type SyncTriggerConfig struct {
	// CheckInterval is how often connections are examined for staleness
	CheckInterval time.Duration
	// SyncInterval is how old a connection's last sync may be before a new
	// full sync is enqueued
	SyncInterval time.Duration
}

// DefaultSyncTriggerConfig returns default trigger configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		CheckInterval: time.Minute,
		SyncInterval:  6 * time.Hour,
	}
}

// ---------------------------------------------------------------------------
// SyncTrigger
// ---------------------------------------------------------------------------

// SyncTrigger periodically enqueues full sync jobs for active connections
// whose last successful sync is older than the configured interval. A
// connection with a job already queued or running is left alone so slow syncs
// never pile up behind themselves.
type SyncTrigger struct {
	config      SyncTriggerConfig
	connections catalogsync.ConnectionRepository
	jobs        catalogsync.JobRepository
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSyncTrigger creates a new interval sync trigger
func NewSyncTrigger(
	config SyncTriggerConfig,
	connections catalogsync.ConnectionRepository,
	jobs catalogsync.JobRepository,
	logger *zap.Logger,
) *SyncTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = 6 * time.Hour
	}
	return &SyncTrigger{
		config:      config,
		connections: connections,
		jobs:        jobs,
		logger:      logger,
	}
}

// Start starts the trigger loop
func (s *SyncTrigger) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Sync trigger started",
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("sync_interval", s.config.SyncInterval),
	)
	return nil
}

// Stop stops the trigger loop
func (s *SyncTrigger) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncTrigger) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs a single staleness pass over all active connections.
func (s *SyncTrigger) CheckOnce(ctx context.Context) {
	conns, err := s.connections.FindAllActive(ctx)
	if err != nil {
		s.logger.Error("Failed to list active connections", zap.Error(err))
		return
	}

	now := time.Now()
	for i := range conns {
		conn := &conns[i]
		if !s.isStale(conn, now) {
			continue
		}
		if s.hasOpenJob(ctx, conn.ID) {
			continue
		}
		s.enqueueFullSync(ctx, conn)
	}
}

func (s *SyncTrigger) isStale(conn *catalogsync.Connection, now time.Time) bool {
	if conn.LastSyncedAt == nil {
		return true
	}
	return now.Sub(*conn.LastSyncedAt) >= s.config.SyncInterval
}

// hasOpenJob reports whether the connection already has a queued or running
// job. Errors count as open so a flaky database never causes double enqueues.
func (s *SyncTrigger) hasOpenJob(ctx context.Context, connectionID uuid.UUID) bool {
	recent, err := s.jobs.ListByConnection(ctx, connectionID, recentJobWindow)
	if err != nil {
		s.logger.Error("Failed to list recent jobs",
			zap.String("connection_id", connectionID.String()),
			zap.Error(err))
		return true
	}
	for _, job := range recent {
		if job.State == catalogsync.JobStateQueued || job.State == catalogsync.JobStateRunning {
			return true
		}
	}
	return false
}

func (s *SyncTrigger) enqueueFullSync(ctx context.Context, conn *catalogsync.Connection) {
	job, err := catalogsync.NewJob(conn.ID, catalogsync.JobTypeFullSync)
	if err != nil {
		s.logger.Error("Failed to build sync job",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err))
		return
	}
	if err := s.jobs.Enqueue(ctx, job, nil); err != nil {
		s.logger.Error("Failed to enqueue sync job",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err))
		return
	}
	s.logger.Info("Enqueued interval full sync",
		zap.String("connection_id", conn.ID.String()),
		zap.String("job_id", job.ID.String()),
	)
}

// recentJobWindow bounds how far back hasOpenJob looks; queued and running
// jobs are always among the newest for a connection.
const recentJobWindow = 20
