package catalogsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// AuditLevel is the severity of an audit entry.
type AuditLevel string

const (
	AuditLevelInfo  AuditLevel = "info"
	AuditLevelWarn  AuditLevel = "warn"
	AuditLevelError AuditLevel = "error"
)

// IsValid returns true if the level is valid
func (l AuditLevel) IsValid() bool {
	switch l {
	case AuditLevelInfo, AuditLevelWarn, AuditLevelError:
		return true
	default:
		return false
	}
}

// AuditLogEntry is an append-only record of one sync action outcome. Entries
// are never updated; they are deleted only by bulk connection deletion.
type AuditLogEntry struct {
	// ID is the unique identifier of the entry
	ID uuid.UUID
	// ConnectionID references the connection the action ran against
	ConnectionID uuid.UUID
	// JobID references the job the action belonged to
	JobID uuid.UUID
	// SKU is the affected stock keeping unit (empty for job-level entries)
	SKU string
	// Level is the entry severity
	Level AuditLevel
	// Message describes the action outcome
	Message string
	// CreatedAt is when the action happened
	CreatedAt time.Time
}

// NewAuditLogEntry creates an audit entry for a sync action.
func NewAuditLogEntry(connectionID, jobID uuid.UUID, sku string, level AuditLevel, message string) AuditLogEntry {
	return AuditLogEntry{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		JobID:        jobID,
		SKU:          sku,
		Level:        level,
		Message:      message,
		CreatedAt:    time.Now(),
	}
}

// AuditLogFilter defines query criteria for audit entries.
type AuditLogFilter struct {
	// ConnectionID filters by connection (optional)
	ConnectionID *uuid.UUID
	// JobID filters by job (optional)
	JobID *uuid.UUID
	// SKU filters by stock keeping unit (optional)
	SKU string
	// Level filters by severity (optional)
	Level *AuditLevel
	// Since filters entries created at or after this time
	Since *time.Time
	// Limit bounds the result set (0 means repository default)
	Limit int
}

// AuditLogRepository defines the persistence port for the audit trail.
type AuditLogRepository interface {
	// Write appends one entry
	Write(ctx context.Context, entry AuditLogEntry) error

	// Query returns entries matching the filter, newest first
	Query(ctx context.Context, filter AuditLogFilter) ([]AuditLogEntry, error)

	// CountByLevel counts entries per level for a connection since a time,
	// used for health/error-rate derivation
	CountByLevel(ctx context.Context, connectionID uuid.UUID, since time.Time) (map[AuditLevel]int64, error)

	// DeleteByConnection bulk-deletes a connection's audit trail
	DeleteByConnection(ctx context.Context, connectionID uuid.UUID) error
}
