package handler

import (
	"time"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// defaultAuditWindow bounds the query when no since parameter is given
const defaultAuditWindow = 7 * 24 * time.Hour

// AuditHandler handles audit log query endpoints
type AuditHandler struct {
	BaseHandler
	audit catalogsync.AuditLogRepository
	now   func() time.Time
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit catalogsync.AuditLogRepository) *AuditHandler {
	return &AuditHandler{
		audit: audit,
		now:   time.Now,
	}
}

// AuditQueryRequest represents audit log query parameters
type AuditQueryRequest struct {
	ConnectionID string `form:"connection_id" binding:"omitempty,uuid"`
	JobID        string `form:"job_id" binding:"omitempty,uuid"`
	SKU          string `form:"sku"`
	Level        string `form:"level" binding:"omitempty,oneof=info warn error"`
	Since        string `form:"since"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// AuditEntryResponse represents an audit log entry in the response
type AuditEntryResponse struct {
	ID           string `json:"id"`
	ConnectionID string `json:"connection_id"`
	JobID        string `json:"job_id"`
	SKU          string `json:"sku,omitempty"`
	Level        string `json:"level"`
	Message      string `json:"message"`
	CreatedAt    string `json:"created_at"`
}

// AuditLevelCountsResponse reports entry counts per severity
type AuditLevelCountsResponse struct {
	Info    int64 `json:"info"`
	Warning int64 `json:"warning"`
	Error   int64 `json:"error"`
}

// Query handles GET /audit
func (h *AuditHandler) Query(c *gin.Context) {
	var req AuditQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := catalogsync.AuditLogFilter{
		SKU:   req.SKU,
		Limit: req.Limit,
	}
	if req.ConnectionID != "" {
		id, err := uuid.Parse(req.ConnectionID)
		if err != nil {
			h.BadRequest(c, "Invalid connection_id format")
			return
		}
		filter.ConnectionID = &id
	}
	if req.JobID != "" {
		id, err := uuid.Parse(req.JobID)
		if err != nil {
			h.BadRequest(c, "Invalid job_id format")
			return
		}
		filter.JobID = &id
	}
	if req.Level != "" {
		level := catalogsync.AuditLevel(req.Level)
		filter.Level = &level
	}

	since := h.now().Add(-defaultAuditWindow)
	if req.Since != "" {
		parsed, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			h.BadRequest(c, "Invalid since timestamp, expected RFC 3339")
			return
		}
		since = parsed
	}
	filter.Since = &since

	entries, err := h.audit.Query(c.Request.Context(), filter)
	if err != nil {
		h.InternalError(c, "Failed to query audit log")
		return
	}

	resp := make([]AuditEntryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		resp = append(resp, AuditEntryResponse{
			ID:           e.ID.String(),
			ConnectionID: e.ConnectionID.String(),
			JobID:        e.JobID.String(),
			SKU:          e.SKU,
			Level:        string(e.Level),
			Message:      e.Message,
			CreatedAt:    e.CreatedAt.UTC().Format(timeFormat),
		})
	}
	h.Success(c, resp)
}

// LevelCounts handles GET /audit/counts. It reports per-severity entry
// counts for one connection over a time window, used as a cheap health
// signal for the connection.
func (h *AuditHandler) LevelCounts(c *gin.Context) {
	connectionID, err := uuid.Parse(c.Query("connection_id"))
	if err != nil {
		h.BadRequest(c, "Invalid or missing connection_id query parameter")
		return
	}

	since := h.now().Add(-defaultAuditWindow)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid since timestamp, expected RFC 3339")
			return
		}
		since = parsed
	}

	counts, err := h.audit.CountByLevel(c.Request.Context(), connectionID, since)
	if err != nil {
		h.InternalError(c, "Failed to count audit entries")
		return
	}

	h.Success(c, AuditLevelCountsResponse{
		Info:    counts[catalogsync.AuditLevelInfo],
		Warning: counts[catalogsync.AuditLevelWarn],
		Error:   counts[catalogsync.AuditLevelError],
	})
}

// RegisterRoutes registers audit log routes
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	audit := rg.Group("/audit")
	{
		audit.GET("", h.Query)
		audit.GET("/counts", h.LevelCounts)
	}
}
