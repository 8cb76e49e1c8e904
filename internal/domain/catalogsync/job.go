package catalogsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Job types and states
// ---------------------------------------------------------------------------

// JobType distinguishes catalog-wide syncs from SKU-scoped delta syncs.
type JobType string

const (
	// JobTypeFullSync reconciles the entire source catalog
	JobTypeFullSync JobType = "full_sync"
	// JobTypeDelta reconciles only the SKUs listed as job items
	JobTypeDelta JobType = "delta"
)

// IsValid returns true if the job type is valid
func (t JobType) IsValid() bool {
	return t == JobTypeFullSync || t == JobTypeDelta
}

// String returns the string representation of JobType
func (t JobType) String() string {
	return string(t)
}

// JobState is the lifecycle state of a sync job.
//
// queued -> running -> succeeded
//
//	-> queued (retry, attempts < max)
//	-> dead   (attempts exhausted, or cancelled while queued)
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateDead      JobState = "dead"
)

// IsValid returns true if the state is valid
func (s JobState) IsValid() bool {
	switch s {
	case JobStateQueued, JobStateRunning, JobStateSucceeded, JobStateDead:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the state admits no further automatic transition.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateDead
}

// JobItemState is the per-SKU state of a delta job item.
type JobItemState string

const (
	JobItemStateQueued    JobItemState = "queued"
	JobItemStateRunning   JobItemState = "running"
	JobItemStateSucceeded JobItemState = "succeeded"
	JobItemStateFailed    JobItemState = "failed"
)

// ---------------------------------------------------------------------------
// Job
// ---------------------------------------------------------------------------

// DefaultMaxAttempts is the attempt budget before a job is dead-lettered.
const DefaultMaxAttempts = 5

// CancelledError is the last_error text recorded when a queued job is
// cancelled by pausing its connection.
const CancelledError = "cancelled"

// Job is one sync execution request against one connection. It is created by
// an external trigger and mutated only by the worker loop; the attempt counter
// only increases.
type Job struct {
	// ID is the unique identifier of the job
	ID uuid.UUID
	// ConnectionID references the connection this job syncs
	ConnectionID uuid.UUID
	// Type is full_sync or delta
	Type JobType
	// State is the current lifecycle state
	State JobState
	// Attempts counts execution attempts so far
	Attempts int
	// MaxAttempts is the attempt budget before dead-lettering
	MaxAttempts int
	// LastError is the most recent failure text
	LastError string
	// CreatedAt orders the FIFO queue
	CreatedAt time.Time
	// UpdatedAt is when the job last changed state
	UpdatedAt time.Time
	// StartedAt is when the current (or last) attempt began
	StartedAt *time.Time
	// FinishedAt is when the job reached a terminal state
	FinishedAt *time.Time
}

// NewJob creates a queued job for the given connection.
func NewJob(connectionID uuid.UUID, jobType JobType) (*Job, error) {
	if connectionID == uuid.Nil {
		return nil, ErrConnectionInvalidID
	}
	if !jobType.IsValid() {
		return nil, ErrJobInvalidType
	}
	now := time.Now()
	return &Job{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		Type:         jobType,
		State:        JobStateQueued,
		MaxAttempts:  DefaultMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Start transitions a queued job to running. The persistence layer makes this
// atomic; the entity only enforces the legal transition.
func (j *Job) Start() error {
	if j.State != JobStateQueued {
		return ErrJobInvalidTransition
	}
	now := time.Now()
	j.State = JobStateRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// Succeed marks a running job as completed.
func (j *Job) Succeed() error {
	if j.State != JobStateRunning {
		return ErrJobInvalidTransition
	}
	now := time.Now()
	j.State = JobStateSucceeded
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail records a failed attempt. The job re-queues until the attempt budget
// is exhausted, then dead-letters. Attempts equals MaxAttempts exactly at the
// point the job goes dead.
func (j *Job) Fail(errText string) error {
	if j.State != JobStateRunning {
		return ErrJobInvalidTransition
	}
	now := time.Now()
	j.Attempts++
	j.LastError = errText
	j.UpdatedAt = now
	if j.Attempts >= j.MaxAttempts {
		j.State = JobStateDead
		j.FinishedAt = &now
		return nil
	}
	j.State = JobStateQueued
	return nil
}

// Cancel dead-letters a queued job. Running jobs are never cancelled; they
// run to completion or failure.
func (j *Job) Cancel() error {
	if j.State != JobStateQueued {
		return ErrJobInvalidTransition
	}
	now := time.Now()
	j.State = JobStateDead
	j.LastError = CancelledError
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// ResetForRetry re-queues a dead-lettered job with a fresh attempt budget.
func (j *Job) ResetForRetry() error {
	if j.State != JobStateDead {
		return ErrJobNotDead
	}
	j.State = JobStateQueued
	j.Attempts = 0
	j.LastError = ""
	j.StartedAt = nil
	j.FinishedAt = nil
	j.UpdatedAt = time.Now()
	return nil
}

// ---------------------------------------------------------------------------
// JobItem
// ---------------------------------------------------------------------------

// JobItem is one SKU scoped to a delta job, carrying its own outcome.
type JobItem struct {
	// ID is the unique identifier of the job item
	ID uuid.UUID
	// JobID references the owning job
	JobID uuid.UUID
	// SKU is the scoped stock keeping unit
	SKU string
	// State is the per-SKU outcome state
	State JobItemState
	// Error is the per-SKU failure text
	Error string
	// UpdatedAt is when the item last changed
	UpdatedAt time.Time
}

// NewJobItem creates a queued item for a delta job.
func NewJobItem(jobID uuid.UUID, sku string) (*JobItem, error) {
	if sku == "" {
		return nil, ErrCatalogItemNoSKU
	}
	return &JobItem{
		ID:        uuid.New(),
		JobID:     jobID,
		SKU:       sku,
		State:     JobItemStateQueued,
		UpdatedAt: time.Now(),
	}, nil
}

// JobProgress summarizes per-SKU completion of a delta job.
type JobProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// ---------------------------------------------------------------------------
// JobRepository
// ---------------------------------------------------------------------------

// JobRepository defines the persistence port for jobs and job items. The job
// table is the single source of truth for which worker owns a job: Claim must
// be an atomic queued->running transition.
type JobRepository interface {
	// Enqueue persists a new queued job with optional delta SKUs
	Enqueue(ctx context.Context, job *Job, skus []string) error

	// Claim atomically selects the oldest queued job and marks it running.
	// Returns ErrNoQueuedJobs when the queue is empty.
	Claim(ctx context.Context) (*Job, error)

	// Update persists a job state change
	Update(ctx context.Context, job *Job) error

	// FindByID finds a job by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// ListByConnection lists jobs for a connection, newest first
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]Job, error)

	// CancelQueued dead-letters all queued jobs of a connection and returns
	// how many were cancelled
	CancelQueued(ctx context.Context, connectionID uuid.UUID) (int64, error)

	// ListItems returns the job items of a delta job
	ListItems(ctx context.Context, jobID uuid.UUID) ([]JobItem, error)

	// UpdateItem persists a job item state change
	UpdateItem(ctx context.Context, item *JobItem) error

	// Progress derives completion counts from the job items
	Progress(ctx context.Context, jobID uuid.UUID) (JobProgress, error)

	// ListDead lists dead-lettered jobs, newest first
	ListDead(ctx context.Context, limit int) ([]Job, error)

	// CountDead counts dead-lettered jobs
	CountDead(ctx context.Context) (int64, error)

	// RetryDead re-queues a dead-lettered job
	RetryDead(ctx context.Context, id uuid.UUID) error

	// DeleteDead removes a dead-lettered job and its items
	DeleteDead(ctx context.Context, id uuid.UUID) error
}
