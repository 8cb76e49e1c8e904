package catalogsync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewAuditLogEntry(t *testing.T) {
	connID := uuid.New()
	jobID := uuid.New()

	entry := NewAuditLogEntry(connID, jobID, "SKU-1", AuditLevelWarn, "price update rejected")

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, connID, entry.ConnectionID)
	assert.Equal(t, jobID, entry.JobID)
	assert.Equal(t, "SKU-1", entry.SKU)
	assert.Equal(t, AuditLevelWarn, entry.Level)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestAuditLevelIsValid(t *testing.T) {
	assert.True(t, AuditLevelInfo.IsValid())
	assert.True(t, AuditLevelWarn.IsValid())
	assert.True(t, AuditLevelError.IsValid())
	assert.False(t, AuditLevel("fatal").IsValid())
}
