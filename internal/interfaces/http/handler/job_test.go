package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobHandler_EnqueueFullSync(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())

	w := f.request("POST", "/api/v1/connections/"+conn.ID.String()+"/jobs", `{"type": "full_sync"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeData[JobResponse](t, w.Body.Bytes())
	assert.Equal(t, "full_sync", resp.Type)
	assert.Equal(t, "queued", resp.State)
	assert.Equal(t, conn.ID.String(), resp.ConnectionID)

	stored := f.jobs.get(uuid.MustParse(resp.ID))
	assert.Equal(t, catalogsync.JobStateQueued, stored.State)
}

func TestJobHandler_EnqueueDelta(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())

	body := `{"type": "delta", "skus": ["SKU-1", "SKU-2"]}`
	w := f.request("POST", "/api/v1/connections/"+conn.ID.String()+"/jobs", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeData[JobResponse](t, w.Body.Bytes())
	items, err := f.jobs.ListItems(context.Background(), uuid.MustParse(resp.ID))
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestJobHandler_EnqueueValidation(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())

	tests := []struct {
		name string
		body string
	}{
		{name: "missing type", body: `{}`},
		{name: "unknown type", body: `{"type": "incremental"}`},
		{name: "delta without skus", body: `{"type": "delta"}`},
		{name: "full sync with skus", body: `{"type": "full_sync", "skus": ["SKU-1"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.request("POST", "/api/v1/connections/"+conn.ID.String()+"/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestJobHandler_EnqueueUnknownConnection(t *testing.T) {
	f := newAPIFixture()

	w := f.request("POST", "/api/v1/connections/"+uuid.New().String()+"/jobs", `{"type": "full_sync"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobHandler_EnqueuePausedConnection(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())
	conn.Pause()
	require.NoError(t, f.connections.Save(context.Background(), conn))

	w := f.request("POST", "/api/v1/connections/"+conn.ID.String()+"/jobs", `{"type": "full_sync"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestJobHandler_GetByID(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())

	job, err := catalogsync.NewJob(conn.ID, catalogsync.JobTypeFullSync)
	require.NoError(t, err)
	require.NoError(t, f.jobs.Enqueue(context.Background(), job, nil))

	w := f.request("GET", "/api/v1/jobs/"+job.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeData[JobResponse](t, w.Body.Bytes())
	assert.Equal(t, job.ID.String(), resp.ID)

	w = f.request("GET", "/api/v1/jobs/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobHandler_ListByConnection(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())

	for i := 0; i < 3; i++ {
		job, err := catalogsync.NewJob(conn.ID, catalogsync.JobTypeFullSync)
		require.NoError(t, err)
		require.NoError(t, f.jobs.Enqueue(context.Background(), job, nil))
	}

	w := f.request("GET", fmt.Sprintf("/api/v1/connections/%s/jobs?limit=2", conn.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeData[[]JobResponse](t, w.Body.Bytes())
	assert.Len(t, resp, 2)
}

func TestJobHandler_ItemsAndProgress(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())

	job, err := catalogsync.NewJob(conn.ID, catalogsync.JobTypeDelta)
	require.NoError(t, err)
	require.NoError(t, f.jobs.Enqueue(context.Background(), job, []string{"SKU-1", "SKU-2", "SKU-3"}))

	items, err := f.jobs.ListItems(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	items[0].State = catalogsync.JobItemStateSucceeded
	require.NoError(t, f.jobs.UpdateItem(context.Background(), &items[0]))
	items[1].State = catalogsync.JobItemStateFailed
	items[1].Error = "variant not found"
	require.NoError(t, f.jobs.UpdateItem(context.Background(), &items[1]))

	w := f.request("GET", "/api/v1/jobs/"+job.ID.String()+"/items", "")
	require.Equal(t, http.StatusOK, w.Code)
	itemResp := decodeData[[]JobItemResponse](t, w.Body.Bytes())
	require.Len(t, itemResp, 3)

	w = f.request("GET", "/api/v1/jobs/"+job.ID.String()+"/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	progress := decodeData[JobProgressResponse](t, w.Body.Bytes())
	assert.Equal(t, 3, progress.Total)
	assert.Equal(t, 1, progress.Completed)
	assert.Equal(t, 1, progress.Failed)
}

func TestJobHandler_ProgressUnknownJob(t *testing.T) {
	f := newAPIFixture()

	w := f.request("GET", "/api/v1/jobs/"+uuid.New().String()+"/progress", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func deadJob(t *testing.T, f *apiFixture, connID uuid.UUID) catalogsync.Job {
	t.Helper()
	job, err := catalogsync.NewJob(connID, catalogsync.JobTypeFullSync)
	require.NoError(t, err)
	job.MaxAttempts = 1
	require.NoError(t, job.Start())
	require.NoError(t, job.Fail("destination unreachable"))
	require.Equal(t, catalogsync.JobStateDead, job.State)
	f.jobs.put(*job)
	return *job
}

func TestJobHandler_DeadLetterQueue(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())

	dead1 := deadJob(t, f, conn.ID)
	deadJob(t, f, conn.ID)

	w := f.request("GET", "/api/v1/jobs/dead", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeData[[]JobResponse](t, w.Body.Bytes())
	assert.Len(t, resp, 2)

	// Retry one of them: it goes back to queued with a fresh attempt budget
	w = f.request("POST", "/api/v1/jobs/dead/"+dead1.ID.String()+"/retry", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	retried := decodeData[JobResponse](t, w.Body.Bytes())
	assert.Equal(t, "queued", retried.State)
	assert.Equal(t, 0, retried.Attempts)
}

func TestJobHandler_RetryDeadRejectsNonDead(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())

	job, err := catalogsync.NewJob(conn.ID, catalogsync.JobTypeFullSync)
	require.NoError(t, err)
	require.NoError(t, f.jobs.Enqueue(context.Background(), job, nil))

	w := f.request("POST", "/api/v1/jobs/dead/"+job.ID.String()+"/retry", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestJobHandler_DeleteDead(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())
	dead := deadJob(t, f, conn.ID)

	w := f.request("DELETE", "/api/v1/jobs/dead/"+dead.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.request("GET", "/api/v1/jobs/"+dead.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobHandler_DeleteDeadRejectsQueued(t *testing.T) {
	f := newAPIFixture()
	conn := f.activeConnection(uuid.New())

	job, err := catalogsync.NewJob(conn.ID, catalogsync.JobTypeFullSync)
	require.NoError(t, err)
	require.NoError(t, f.jobs.Enqueue(context.Background(), job, nil))

	w := f.request("DELETE", "/api/v1/jobs/dead/"+job.ID.String(), "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
