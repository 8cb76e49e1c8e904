package handler

import (
	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConnectionHandler handles connection-related API endpoints
type ConnectionHandler struct {
	BaseHandler
	connections catalogsync.ConnectionRepository
	jobs        catalogsync.JobRepository
	audit       catalogsync.AuditLogRepository
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(
	connections catalogsync.ConnectionRepository,
	jobs catalogsync.JobRepository,
	audit catalogsync.AuditLogRepository,
) *ConnectionHandler {
	return &ConnectionHandler{
		connections: connections,
		jobs:        jobs,
		audit:       audit,
	}
}

// CreateConnectionRequest represents a request to create a new connection
type CreateConnectionRequest struct {
	InstallationID       string               `json:"installation_id" binding:"required,uuid"`
	PlatformType         string               `json:"platform_type" binding:"required,oneof=shopify woocommerce"`
	TargetDomain         string               `json:"target_domain" binding:"required,min=1,max=255"`
	Credentials          string               `json:"credentials"`
	LocationID           string               `json:"location_id"`
	Rules                *catalogsync.RuleSet `json:"rules"`
	SyncPrice            *bool                `json:"sync_price"`
	SyncCategories       *bool                `json:"sync_categories"`
	SyncTags             *bool                `json:"sync_tags"`
	CreateMissing        *bool                `json:"create_missing"`
	InitialPublishStatus string               `json:"initial_publish_status" binding:"omitempty,oneof=published draft"`
}

// UpdateRulesRequest represents a request to replace a connection's rule set
type UpdateRulesRequest struct {
	Rules catalogsync.RuleSet `json:"rules"`
}

// PauseConnectionResponse reports the result of pausing a connection
type PauseConnectionResponse struct {
	Connection    ConnectionResponse `json:"connection"`
	CancelledJobs int64              `json:"cancelled_jobs"`
}

// ConnectionResponse represents a connection in the response
type ConnectionResponse struct {
	ID                   string              `json:"id"`
	InstallationID       string              `json:"installation_id"`
	PlatformType         string              `json:"platform_type"`
	TargetDomain         string              `json:"target_domain"`
	LocationID           string              `json:"location_id,omitempty"`
	Rules                catalogsync.RuleSet `json:"rules"`
	SyncPrice            bool                `json:"sync_price"`
	SyncCategories       bool                `json:"sync_categories"`
	SyncTags             bool                `json:"sync_tags"`
	CreateMissing        bool                `json:"create_missing"`
	InitialPublishStatus string              `json:"initial_publish_status"`
	Status               string              `json:"status"`
	LastSyncedAt         *string             `json:"last_synced_at,omitempty"`
	CreatedAt            string              `json:"created_at"`
	UpdatedAt            string              `json:"updated_at"`
}

func toConnectionResponse(conn *catalogsync.Connection) ConnectionResponse {
	resp := ConnectionResponse{
		ID:                   conn.ID.String(),
		InstallationID:       conn.InstallationID.String(),
		PlatformType:         string(conn.PlatformType),
		TargetDomain:         conn.TargetDomain,
		LocationID:           conn.LocationID,
		Rules:                conn.Rules.Clone(),
		SyncPrice:            conn.SyncPrice,
		SyncCategories:       conn.SyncCategories,
		SyncTags:             conn.SyncTags,
		CreateMissing:        conn.CreateMissing,
		InitialPublishStatus: string(conn.InitialPublishStatus),
		Status:               string(conn.Status),
		CreatedAt:            conn.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:            conn.UpdatedAt.UTC().Format(timeFormat),
	}
	if conn.LastSyncedAt != nil {
		s := conn.LastSyncedAt.UTC().Format(timeFormat)
		resp.LastSyncedAt = &s
	}
	return resp
}

// Create handles POST /connections
func (h *ConnectionHandler) Create(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	installationID, err := uuid.Parse(req.InstallationID)
	if err != nil {
		h.BadRequest(c, "Invalid installation ID format")
		return
	}

	conn, err := catalogsync.NewConnection(installationID, catalogsync.PlatformType(req.PlatformType), req.TargetDomain)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	conn.Credentials = req.Credentials
	conn.LocationID = req.LocationID
	if req.Rules != nil {
		if err := req.Rules.Validate(); err != nil {
			h.HandleDomainError(c, err)
			return
		}
		conn.Rules = req.Rules.Clone()
	}
	if req.SyncPrice != nil {
		conn.SyncPrice = *req.SyncPrice
	}
	if req.SyncCategories != nil {
		conn.SyncCategories = *req.SyncCategories
	}
	if req.SyncTags != nil {
		conn.SyncTags = *req.SyncTags
	}
	if req.CreateMissing != nil {
		conn.CreateMissing = *req.CreateMissing
	}
	if req.InitialPublishStatus != "" {
		conn.InitialPublishStatus = catalogsync.PublishStatus(req.InitialPublishStatus)
	}

	if err := conn.Validate(); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if err := h.connections.Save(c.Request.Context(), conn); err != nil {
		h.InternalError(c, "Failed to save connection")
		return
	}

	h.Created(c, toConnectionResponse(conn))
}

// GetByID handles GET /connections/:id
func (h *ConnectionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	conn, err := h.connections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toConnectionResponse(conn))
}

// ListByInstallation handles GET /connections?installation_id=...
func (h *ConnectionHandler) ListByInstallation(c *gin.Context) {
	installationID, err := uuid.Parse(c.Query("installation_id"))
	if err != nil {
		h.BadRequest(c, "Invalid or missing installation_id query parameter")
		return
	}

	conns, err := h.connections.FindByInstallation(c.Request.Context(), installationID)
	if err != nil {
		h.InternalError(c, "Failed to list connections")
		return
	}

	resp := make([]ConnectionResponse, 0, len(conns))
	for i := range conns {
		resp = append(resp, toConnectionResponse(&conns[i]))
	}
	h.Success(c, resp)
}

// UpdateRules handles PUT /connections/:id/rules
func (h *ConnectionHandler) UpdateRules(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	var req UpdateRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if err := req.Rules.Validate(); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	conn, err := h.connections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	conn.Rules = req.Rules.Clone()
	if err := h.connections.Save(c.Request.Context(), conn); err != nil {
		h.InternalError(c, "Failed to save connection")
		return
	}

	h.Success(c, toConnectionResponse(conn))
}

// Pause handles POST /connections/:id/pause. Pausing also cancels the
// connection's queued jobs so a later resume starts from a clean queue.
func (h *ConnectionHandler) Pause(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	conn, err := h.connections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	if conn.Status == catalogsync.ConnectionStatusDisabled {
		h.UnprocessableEntity(c, dto.ErrCodeInvalidState, "Disabled connections cannot be paused")
		return
	}

	conn.Pause()
	if err := h.connections.Save(c.Request.Context(), conn); err != nil {
		h.InternalError(c, "Failed to save connection")
		return
	}

	cancelled, err := h.jobs.CancelQueued(c.Request.Context(), id)
	if err != nil {
		h.InternalError(c, "Connection paused but cancelling queued jobs failed")
		return
	}

	h.Success(c, PauseConnectionResponse{
		Connection:    toConnectionResponse(conn),
		CancelledJobs: cancelled,
	})
}

// Resume handles POST /connections/:id/resume
func (h *ConnectionHandler) Resume(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	conn, err := h.connections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	if conn.Status == catalogsync.ConnectionStatusDisabled {
		h.UnprocessableEntity(c, dto.ErrCodeInvalidState, "Disabled connections cannot be resumed")
		return
	}

	conn.Resume()
	if err := h.connections.Save(c.Request.Context(), conn); err != nil {
		h.InternalError(c, "Failed to save connection")
		return
	}

	h.Success(c, toConnectionResponse(conn))
}

// Disable handles POST /connections/:id/disable. Disabling cancels queued
// jobs and removes the connection's audit trail.
func (h *ConnectionHandler) Disable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	conn, err := h.connections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	conn.Disable()
	if err := h.connections.Save(c.Request.Context(), conn); err != nil {
		h.InternalError(c, "Failed to save connection")
		return
	}

	if _, err := h.jobs.CancelQueued(c.Request.Context(), id); err != nil {
		h.InternalError(c, "Connection disabled but cancelling queued jobs failed")
		return
	}
	if err := h.audit.DeleteByConnection(c.Request.Context(), id); err != nil {
		h.InternalError(c, "Connection disabled but clearing audit trail failed")
		return
	}

	h.Success(c, toConnectionResponse(conn))
}

// RegisterRoutes registers connection routes
func (h *ConnectionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	connections := rg.Group("/connections")
	{
		connections.POST("", h.Create)
		connections.GET("", h.ListByInstallation)
		connections.GET("/:id", h.GetByID)
		connections.PUT("/:id/rules", h.UpdateRules)
		connections.POST("/:id/pause", h.Pause)
		connections.POST("/:id/resume", h.Resume)
		connections.POST("/:id/disable", h.Disable)
	}
}
