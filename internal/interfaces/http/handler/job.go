package handler

import (
	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// defaultJobListLimit bounds job listings when the client does not pass one
const defaultJobListLimit = 50

// JobHandler handles sync job API endpoints
type JobHandler struct {
	BaseHandler
	jobs        catalogsync.JobRepository
	connections catalogsync.ConnectionRepository
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobs catalogsync.JobRepository, connections catalogsync.ConnectionRepository) *JobHandler {
	return &JobHandler{
		jobs:        jobs,
		connections: connections,
	}
}

// EnqueueJobRequest represents a request to enqueue a sync job
type EnqueueJobRequest struct {
	Type string   `json:"type" binding:"required,oneof=full_sync delta"`
	SKUs []string `json:"skus" binding:"omitempty,max=1000,dive,min=1"`
}

// JobResponse represents a sync job in the response
type JobResponse struct {
	ID           string  `json:"id"`
	ConnectionID string  `json:"connection_id"`
	Type         string  `json:"type"`
	State        string  `json:"state"`
	Attempts     int     `json:"attempts"`
	MaxAttempts  int     `json:"max_attempts"`
	LastError    string  `json:"last_error,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	StartedAt    *string `json:"started_at,omitempty"`
	FinishedAt   *string `json:"finished_at,omitempty"`
}

// JobItemResponse represents a per-SKU work item in the response
type JobItemResponse struct {
	ID        string `json:"id"`
	SKU       string `json:"sku"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// JobProgressResponse reports per-SKU completion counts for a job
type JobProgressResponse struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func toJobResponse(job *catalogsync.Job) JobResponse {
	return JobResponse{
		ID:           job.ID.String(),
		ConnectionID: job.ConnectionID.String(),
		Type:         string(job.Type),
		State:        string(job.State),
		Attempts:     job.Attempts,
		MaxAttempts:  job.MaxAttempts,
		LastError:    job.LastError,
		CreatedAt:    job.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:    job.UpdatedAt.UTC().Format(timeFormat),
		StartedAt:    formatTimePtr(job.StartedAt),
		FinishedAt:   formatTimePtr(job.FinishedAt),
	}
}

func toJobItemResponse(item *catalogsync.JobItem) JobItemResponse {
	return JobItemResponse{
		ID:        item.ID.String(),
		SKU:       item.SKU,
		State:     string(item.State),
		Error:     item.Error,
		UpdatedAt: item.UpdatedAt.UTC().Format(timeFormat),
	}
}

// Enqueue handles POST /connections/:id/jobs
func (h *JobHandler) Enqueue(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	var req EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	jobType := catalogsync.JobType(req.Type)
	if jobType == catalogsync.JobTypeDelta && len(req.SKUs) == 0 {
		h.BadRequest(c, "Delta jobs require at least one SKU")
		return
	}
	if jobType == catalogsync.JobTypeFullSync && len(req.SKUs) > 0 {
		h.BadRequest(c, "Full sync jobs do not accept a SKU list")
		return
	}

	conn, err := h.connections.FindByID(c.Request.Context(), connectionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	if !conn.IsActive() {
		h.UnprocessableEntity(c, dto.ErrCodeInvalidState, "Connection is not active")
		return
	}

	job, err := catalogsync.NewJob(connectionID, jobType)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if err := h.jobs.Enqueue(c.Request.Context(), job, req.SKUs); err != nil {
		h.InternalError(c, "Failed to enqueue job")
		return
	}

	h.Created(c, toJobResponse(job))
}

// GetByID handles GET /jobs/:id
func (h *JobHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	job, err := h.jobs.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toJobResponse(job))
}

// ListByConnection handles GET /connections/:id/jobs
func (h *JobHandler) ListByConnection(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	limit := parseLimit(c.Query("limit"), defaultJobListLimit)
	jobs, err := h.jobs.ListByConnection(c.Request.Context(), connectionID, limit)
	if err != nil {
		h.InternalError(c, "Failed to list jobs")
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, toJobResponse(&jobs[i]))
	}
	h.Success(c, resp)
}

// Items handles GET /jobs/:id/items
func (h *JobHandler) Items(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	items, err := h.jobs.ListItems(c.Request.Context(), id)
	if err != nil {
		h.InternalError(c, "Failed to list job items")
		return
	}

	resp := make([]JobItemResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toJobItemResponse(&items[i]))
	}
	h.Success(c, resp)
}

// Progress handles GET /jobs/:id/progress
func (h *JobHandler) Progress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	if _, err := h.jobs.FindByID(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	progress, err := h.jobs.Progress(c.Request.Context(), id)
	if err != nil {
		h.InternalError(c, "Failed to compute job progress")
		return
	}

	h.Success(c, JobProgressResponse{
		Total:     progress.Total,
		Completed: progress.Completed,
		Failed:    progress.Failed,
	})
}

// ListDead handles GET /jobs/dead
func (h *JobHandler) ListDead(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), defaultJobListLimit)

	jobs, err := h.jobs.ListDead(c.Request.Context(), limit)
	if err != nil {
		h.InternalError(c, "Failed to list dead jobs")
		return
	}
	total, err := h.jobs.CountDead(c.Request.Context())
	if err != nil {
		h.InternalError(c, "Failed to count dead jobs")
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, toJobResponse(&jobs[i]))
	}
	h.SuccessWithMeta(c, resp, total, 1, limit)
}

// RetryDead handles POST /jobs/dead/:id/retry
func (h *JobHandler) RetryDead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	if err := h.jobs.RetryDead(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	job, err := h.jobs.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toJobResponse(job))
}

// DeleteDead handles DELETE /jobs/dead/:id
func (h *JobHandler) DeleteDead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	if err := h.jobs.DeleteDead(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers job routes
func (h *JobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/connections/:id/jobs", h.Enqueue)
	rg.GET("/connections/:id/jobs", h.ListByConnection)

	jobs := rg.Group("/jobs")
	{
		jobs.GET("/dead", h.ListDead)
		jobs.POST("/dead/:id/retry", h.RetryDead)
		jobs.DELETE("/dead/:id", h.DeleteDead)
		jobs.GET("/:id", h.GetByID)
		jobs.GET("/:id/items", h.Items)
		jobs.GET("/:id/progress", h.Progress)
	}
}
