package catalogsync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	connID := uuid.New()

	job, err := NewJob(connID, JobTypeFullSync)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, connID, job.ConnectionID)
	assert.Equal(t, JobStateQueued, job.State)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.FinishedAt)
}

func TestNewJobValidation(t *testing.T) {
	_, err := NewJob(uuid.Nil, JobTypeFullSync)
	assert.ErrorIs(t, err, ErrConnectionInvalidID)

	_, err = NewJob(uuid.New(), JobType("bulk"))
	assert.ErrorIs(t, err, ErrJobInvalidType)
}

func TestJobHappyPath(t *testing.T) {
	job, err := NewJob(uuid.New(), JobTypeDelta)
	require.NoError(t, err)

	require.NoError(t, job.Start())
	assert.Equal(t, JobStateRunning, job.State)
	require.NotNil(t, job.StartedAt)

	require.NoError(t, job.Succeed())
	assert.Equal(t, JobStateSucceeded, job.State)
	require.NotNil(t, job.FinishedAt)
	assert.True(t, job.State.IsTerminal())
}

func TestJobFailRequeuesUntilBudgetExhausted(t *testing.T) {
	job, err := NewJob(uuid.New(), JobTypeFullSync)
	require.NoError(t, err)
	job.MaxAttempts = 3

	for attempt := 1; attempt <= 2; attempt++ {
		require.NoError(t, job.Start())
		require.NoError(t, job.Fail("destination timeout"))
		assert.Equal(t, JobStateQueued, job.State)
		assert.Equal(t, attempt, job.Attempts)
		assert.Equal(t, "destination timeout", job.LastError)
	}

	require.NoError(t, job.Start())
	require.NoError(t, job.Fail("destination timeout"))
	assert.Equal(t, JobStateDead, job.State)
	assert.Equal(t, job.MaxAttempts, job.Attempts)
	require.NotNil(t, job.FinishedAt)
}

func TestJobInvalidTransitions(t *testing.T) {
	job, err := NewJob(uuid.New(), JobTypeFullSync)
	require.NoError(t, err)

	assert.ErrorIs(t, job.Succeed(), ErrJobInvalidTransition)
	assert.ErrorIs(t, job.Fail("boom"), ErrJobInvalidTransition)

	require.NoError(t, job.Start())
	assert.ErrorIs(t, job.Start(), ErrJobInvalidTransition)
	assert.ErrorIs(t, job.Cancel(), ErrJobInvalidTransition, "running jobs are never cancelled")

	require.NoError(t, job.Succeed())
	assert.ErrorIs(t, job.Fail("boom"), ErrJobInvalidTransition)
	assert.ErrorIs(t, job.ResetForRetry(), ErrJobNotDead)
}

func TestJobCancel(t *testing.T) {
	job, err := NewJob(uuid.New(), JobTypeFullSync)
	require.NoError(t, err)

	require.NoError(t, job.Cancel())
	assert.Equal(t, JobStateDead, job.State)
	assert.Equal(t, CancelledError, job.LastError)
	require.NotNil(t, job.FinishedAt)
}

func TestJobResetForRetry(t *testing.T) {
	job, err := NewJob(uuid.New(), JobTypeFullSync)
	require.NoError(t, err)
	job.MaxAttempts = 1

	require.NoError(t, job.Start())
	require.NoError(t, job.Fail("boom"))
	require.Equal(t, JobStateDead, job.State)

	require.NoError(t, job.ResetForRetry())
	assert.Equal(t, JobStateQueued, job.State)
	assert.Equal(t, 0, job.Attempts)
	assert.Empty(t, job.LastError)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.FinishedAt)
}

func TestNewJobItem(t *testing.T) {
	jobID := uuid.New()

	item, err := NewJobItem(jobID, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, jobID, item.JobID)
	assert.Equal(t, JobItemStateQueued, item.State)

	_, err = NewJobItem(jobID, "")
	assert.ErrorIs(t, err, ErrCatalogItemNoSKU)
}
