package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/channelsync/backend/internal/domain/catalogsync"
)

// ConnectionModel is the persistence model for the Connection domain entity.
type ConnectionModel struct {
	ID                   uuid.UUID                     `gorm:"type:uuid;primary_key"`
	InstallationID       uuid.UUID                     `gorm:"type:uuid;not null;index:idx_connections_installation"`
	PlatformType         catalogsync.PlatformType      `gorm:"type:varchar(20);not null"`
	TargetDomain         string                        `gorm:"type:varchar(255);not null"`
	Credentials          string                        `gorm:"type:text"`
	LocationID           string                        `gorm:"type:varchar(100)"`
	RulesJSON            string                        `gorm:"type:jsonb;column:rules"`
	SyncPrice            bool                          `gorm:"not null;default:true"`
	SyncCategories       bool                          `gorm:"not null;default:false"`
	SyncTags             bool                          `gorm:"not null;default:false"`
	CreateMissing        bool                          `gorm:"not null;default:false"`
	InitialPublishStatus catalogsync.PublishStatus     `gorm:"type:varchar(20);not null;default:'published'"`
	Status               catalogsync.ConnectionStatus  `gorm:"type:varchar(20);not null;default:'active';index:idx_connections_status"`
	LastSyncedAt         *time.Time                    `gorm:"index"`
	CreatedAt            time.Time                     `gorm:"not null"`
	UpdatedAt            time.Time                     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectionModel) TableName() string {
	return "connections"
}

// ToDomain converts the persistence model to a domain Connection entity.
func (m *ConnectionModel) ToDomain() *catalogsync.Connection {
	conn := &catalogsync.Connection{
		ID:                   m.ID,
		InstallationID:       m.InstallationID,
		PlatformType:         m.PlatformType,
		TargetDomain:         m.TargetDomain,
		Credentials:          m.Credentials,
		LocationID:           m.LocationID,
		SyncPrice:            m.SyncPrice,
		SyncCategories:       m.SyncCategories,
		SyncTags:             m.SyncTags,
		CreateMissing:        m.CreateMissing,
		InitialPublishStatus: m.InitialPublishStatus,
		Status:               m.Status,
		LastSyncedAt:         m.LastSyncedAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}

	if m.RulesJSON != "" {
		var rules catalogsync.RuleSet
		if err := json.Unmarshal([]byte(m.RulesJSON), &rules); err == nil {
			conn.Rules = rules
		}
	}
	return conn
}

// FromDomain populates the persistence model from a domain Connection entity.
func (m *ConnectionModel) FromDomain(conn *catalogsync.Connection) error {
	rulesJSON, err := json.Marshal(conn.Rules)
	if err != nil {
		return err
	}

	m.ID = conn.ID
	m.InstallationID = conn.InstallationID
	m.PlatformType = conn.PlatformType
	m.TargetDomain = conn.TargetDomain
	m.Credentials = conn.Credentials
	m.LocationID = conn.LocationID
	m.RulesJSON = string(rulesJSON)
	m.SyncPrice = conn.SyncPrice
	m.SyncCategories = conn.SyncCategories
	m.SyncTags = conn.SyncTags
	m.CreateMissing = conn.CreateMissing
	m.InitialPublishStatus = conn.InitialPublishStatus
	m.Status = conn.Status
	m.LastSyncedAt = conn.LastSyncedAt
	m.CreatedAt = conn.CreatedAt
	m.UpdatedAt = conn.UpdatedAt
	return nil
}

// JobModel is the persistence model for the Job domain entity.
type JobModel struct {
	ID           uuid.UUID             `gorm:"type:uuid;primary_key"`
	ConnectionID uuid.UUID             `gorm:"type:uuid;not null;index:idx_jobs_connection"`
	Type         catalogsync.JobType   `gorm:"type:varchar(20);not null"`
	State        catalogsync.JobState  `gorm:"type:varchar(20);not null;index:idx_jobs_state"`
	Attempts     int                   `gorm:"not null;default:0"`
	MaxAttempts  int                   `gorm:"not null;default:5"`
	LastError    string                `gorm:"type:text"`
	CreatedAt    time.Time             `gorm:"not null;index:idx_jobs_created"`
	UpdatedAt    time.Time             `gorm:"not null"`
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// TableName returns the table name for GORM
func (JobModel) TableName() string {
	return "sync_jobs"
}

// ToDomain converts the persistence model to a domain Job entity.
func (m *JobModel) ToDomain() *catalogsync.Job {
	return &catalogsync.Job{
		ID:           m.ID,
		ConnectionID: m.ConnectionID,
		Type:         m.Type,
		State:        m.State,
		Attempts:     m.Attempts,
		MaxAttempts:  m.MaxAttempts,
		LastError:    m.LastError,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
	}
}

// FromDomain populates the persistence model from a domain Job entity.
func (m *JobModel) FromDomain(job *catalogsync.Job) {
	m.ID = job.ID
	m.ConnectionID = job.ConnectionID
	m.Type = job.Type
	m.State = job.State
	m.Attempts = job.Attempts
	m.MaxAttempts = job.MaxAttempts
	m.LastError = job.LastError
	m.CreatedAt = job.CreatedAt
	m.UpdatedAt = job.UpdatedAt
	m.StartedAt = job.StartedAt
	m.FinishedAt = job.FinishedAt
}

// JobItemModel is the persistence model for the JobItem domain entity.
type JobItemModel struct {
	ID        uuid.UUID                `gorm:"type:uuid;primary_key"`
	JobID     uuid.UUID                `gorm:"type:uuid;not null;index:idx_job_items_job"`
	SKU       string                   `gorm:"type:varchar(100);not null"`
	State     catalogsync.JobItemState `gorm:"type:varchar(20);not null"`
	Error     string                   `gorm:"type:text"`
	UpdatedAt time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (JobItemModel) TableName() string {
	return "sync_job_items"
}

// ToDomain converts the persistence model to a domain JobItem entity.
func (m *JobItemModel) ToDomain() *catalogsync.JobItem {
	return &catalogsync.JobItem{
		ID:        m.ID,
		JobID:     m.JobID,
		SKU:       m.SKU,
		State:     m.State,
		Error:     m.Error,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain JobItem entity.
func (m *JobItemModel) FromDomain(item *catalogsync.JobItem) {
	m.ID = item.ID
	m.JobID = item.JobID
	m.SKU = item.SKU
	m.State = item.State
	m.Error = item.Error
	m.UpdatedAt = item.UpdatedAt
}

// AuditLogModel is the persistence model for the AuditLogEntry value.
type AuditLogModel struct {
	ID           uuid.UUID              `gorm:"type:uuid;primary_key"`
	ConnectionID uuid.UUID              `gorm:"type:uuid;not null;index:idx_audit_connection"`
	JobID        uuid.UUID              `gorm:"type:uuid;index:idx_audit_job"`
	SKU          string                 `gorm:"type:varchar(100);index:idx_audit_sku"`
	Level        catalogsync.AuditLevel `gorm:"type:varchar(10);not null;index:idx_audit_level"`
	Message      string                 `gorm:"type:text;not null"`
	CreatedAt    time.Time              `gorm:"not null;index:idx_audit_created"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_log_entries"
}

// ToDomain converts the persistence model to a domain AuditLogEntry value.
func (m *AuditLogModel) ToDomain() catalogsync.AuditLogEntry {
	return catalogsync.AuditLogEntry{
		ID:           m.ID,
		ConnectionID: m.ConnectionID,
		JobID:        m.JobID,
		SKU:          m.SKU,
		Level:        m.Level,
		Message:      m.Message,
		CreatedAt:    m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain AuditLogEntry value.
func (m *AuditLogModel) FromDomain(entry catalogsync.AuditLogEntry) {
	m.ID = entry.ID
	m.ConnectionID = entry.ConnectionID
	m.JobID = entry.JobID
	m.SKU = entry.SKU
	m.Level = entry.Level
	m.Message = entry.Message
	m.CreatedAt = entry.CreatedAt
}
