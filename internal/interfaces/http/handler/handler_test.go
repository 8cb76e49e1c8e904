package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// In-memory repository fakes
// ---------------------------------------------------------------------------

type fakeConnRepo struct {
	mu    sync.Mutex
	conns map[uuid.UUID]catalogsync.Connection

	saveErr error
	findErr error
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{conns: make(map[uuid.UUID]catalogsync.Connection)}
}

func (r *fakeConnRepo) Save(_ context.Context, conn *catalogsync.Connection) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn.Snapshot()
	return nil
}

func (r *fakeConnRepo) FindByID(_ context.Context, id uuid.UUID) (*catalogsync.Connection, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, catalogsync.ErrConnectionNotFound
	}
	snap := conn.Snapshot()
	return &snap, nil
}

func (r *fakeConnRepo) FindAllActive(_ context.Context) ([]catalogsync.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalogsync.Connection
	for _, conn := range r.conns {
		if conn.IsActive() {
			out = append(out, conn.Snapshot())
		}
	}
	return out, nil
}

func (r *fakeConnRepo) FindByInstallation(_ context.Context, installationID uuid.UUID) ([]catalogsync.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalogsync.Connection
	for _, conn := range r.conns {
		if conn.InstallationID == installationID {
			out = append(out, conn.Snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeConnRepo) UpdateLastSyncedAt(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return catalogsync.ErrConnectionNotFound
	}
	conn.LastSyncedAt = &at
	r.conns[id] = conn
	return nil
}

func (r *fakeConnRepo) UpdateStatus(_ context.Context, id uuid.UUID, status catalogsync.ConnectionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return catalogsync.ErrConnectionNotFound
	}
	conn.Status = status
	r.conns[id] = conn
	return nil
}

func (r *fakeConnRepo) get(id uuid.UUID) catalogsync.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[id]
}

type fakeJobRepo struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]catalogsync.Job
	items map[uuid.UUID][]catalogsync.JobItem

	enqueueErr error
	cancelErr  error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:  make(map[uuid.UUID]catalogsync.Job),
		items: make(map[uuid.UUID][]catalogsync.JobItem),
	}
}

func (r *fakeJobRepo) Enqueue(_ context.Context, job *catalogsync.Job, skus []string) error {
	if r.enqueueErr != nil {
		return r.enqueueErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	for _, sku := range skus {
		item, err := catalogsync.NewJobItem(job.ID, sku)
		if err != nil {
			return err
		}
		r.items[job.ID] = append(r.items[job.ID], *item)
	}
	return nil
}

func (r *fakeJobRepo) Claim(_ context.Context) (*catalogsync.Job, error) {
	return nil, catalogsync.ErrNoQueuedJobs
}

func (r *fakeJobRepo) Update(_ context.Context, job *catalogsync.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeJobRepo) FindByID(_ context.Context, id uuid.UUID) (*catalogsync.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, catalogsync.ErrJobNotFound
	}
	return &job, nil
}

func (r *fakeJobRepo) ListByConnection(_ context.Context, connectionID uuid.UUID, limit int) ([]catalogsync.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalogsync.Job
	for _, job := range r.jobs {
		if job.ConnectionID == connectionID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeJobRepo) CancelQueued(_ context.Context, connectionID uuid.UUID) (int64, error) {
	if r.cancelErr != nil {
		return 0, r.cancelErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, job := range r.jobs {
		if job.ConnectionID == connectionID && job.State == catalogsync.JobStateQueued {
			if err := job.Cancel(); err != nil {
				return n, err
			}
			r.jobs[id] = job
			n++
		}
	}
	return n, nil
}

func (r *fakeJobRepo) ListItems(_ context.Context, jobID uuid.UUID) ([]catalogsync.JobItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]catalogsync.JobItem(nil), r.items[jobID]...), nil
}

func (r *fakeJobRepo) UpdateItem(_ context.Context, item *catalogsync.JobItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.items[item.JobID]
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = *item
			return nil
		}
	}
	return catalogsync.ErrJobNotFound
}

func (r *fakeJobRepo) Progress(_ context.Context, jobID uuid.UUID) (catalogsync.JobProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var p catalogsync.JobProgress
	for _, item := range r.items[jobID] {
		p.Total++
		switch item.State {
		case catalogsync.JobItemStateSucceeded:
			p.Completed++
		case catalogsync.JobItemStateFailed:
			p.Failed++
		}
	}
	return p, nil
}

func (r *fakeJobRepo) ListDead(_ context.Context, limit int) ([]catalogsync.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalogsync.Job
	for _, job := range r.jobs {
		if job.State == catalogsync.JobStateDead {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeJobRepo) CountDead(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, job := range r.jobs {
		if job.State == catalogsync.JobStateDead {
			n++
		}
	}
	return n, nil
}

func (r *fakeJobRepo) RetryDead(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return catalogsync.ErrJobNotFound
	}
	if err := job.ResetForRetry(); err != nil {
		return err
	}
	r.jobs[id] = job
	return nil
}

func (r *fakeJobRepo) DeleteDead(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return catalogsync.ErrJobNotFound
	}
	if job.State != catalogsync.JobStateDead {
		return catalogsync.ErrJobNotDead
	}
	delete(r.jobs, id)
	delete(r.items, id)
	return nil
}

func (r *fakeJobRepo) get(id uuid.UUID) catalogsync.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

func (r *fakeJobRepo) put(job catalogsync.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []catalogsync.AuditLogEntry

	deleted []uuid.UUID
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) Write(_ context.Context, entry catalogsync.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) Query(_ context.Context, filter catalogsync.AuditLogFilter) ([]catalogsync.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalogsync.AuditLogEntry
	for _, e := range r.entries {
		if filter.ConnectionID != nil && e.ConnectionID != *filter.ConnectionID {
			continue
		}
		if filter.JobID != nil && e.JobID != *filter.JobID {
			continue
		}
		if filter.SKU != "" && e.SKU != filter.SKU {
			continue
		}
		if filter.Level != nil && e.Level != *filter.Level {
			continue
		}
		if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeAuditRepo) CountByLevel(_ context.Context, connectionID uuid.UUID, since time.Time) (map[catalogsync.AuditLevel]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[catalogsync.AuditLevel]int64)
	for _, e := range r.entries {
		if e.ConnectionID == connectionID && !e.CreatedAt.Before(since) {
			counts[e.Level]++
		}
	}
	return counts, nil
}

func (r *fakeAuditRepo) DeleteByConnection(_ context.Context, connectionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []catalogsync.AuditLogEntry
	for _, e := range r.entries {
		if e.ConnectionID != connectionID {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	r.deleted = append(r.deleted, connectionID)
	return nil
}

// ---------------------------------------------------------------------------
// Test server helpers
// ---------------------------------------------------------------------------

type apiFixture struct {
	engine      *gin.Engine
	connections *fakeConnRepo
	jobs        *fakeJobRepo
	audit       *fakeAuditRepo
}

func newAPIFixture() *apiFixture {
	f := &apiFixture{
		connections: newFakeConnRepo(),
		jobs:        newFakeJobRepo(),
		audit:       newFakeAuditRepo(),
	}

	f.engine = gin.New()
	api := f.engine.Group("/api/v1")
	NewConnectionHandler(f.connections, f.jobs, f.audit).RegisterRoutes(api)
	NewJobHandler(f.jobs, f.connections).RegisterRoutes(api)
	NewAuditHandler(f.audit).RegisterRoutes(api)
	return f
}

func (f *apiFixture) request(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) activeConnection(installationID uuid.UUID) *catalogsync.Connection {
	conn, err := catalogsync.NewConnection(installationID, catalogsync.PlatformTypeShopify, "demo.myshopify.com")
	if err != nil {
		panic(err)
	}
	if err := f.connections.Save(context.Background(), conn); err != nil {
		panic(err)
	}
	return conn
}
