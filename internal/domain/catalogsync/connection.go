package catalogsync

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// PlatformType
// ---------------------------------------------------------------------------

// PlatformType identifies the kind of destination store a connection targets.
type PlatformType string

const (
	// PlatformTypeShopify targets a Shopify store
	PlatformTypeShopify PlatformType = "shopify"
	// PlatformTypeWooCommerce targets a WooCommerce store
	PlatformTypeWooCommerce PlatformType = "woocommerce"
)

// IsValid returns true if the platform type is valid
func (p PlatformType) IsValid() bool {
	switch p {
	case PlatformTypeShopify, PlatformTypeWooCommerce:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformType
func (p PlatformType) String() string {
	return string(p)
}

// ---------------------------------------------------------------------------
// ConnectionStatus
// ---------------------------------------------------------------------------

// ConnectionStatus is the lifecycle status of a connection.
type ConnectionStatus string

const (
	// ConnectionStatusActive means the connection accepts and runs sync jobs
	ConnectionStatusActive ConnectionStatus = "active"
	// ConnectionStatusPaused means new jobs are rejected and queued jobs cancelled
	ConnectionStatusPaused ConnectionStatus = "paused"
	// ConnectionStatusDisabled means the connection is shut off by the operator
	ConnectionStatusDisabled ConnectionStatus = "disabled"
)

// IsValid returns true if the status is valid
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusActive, ConnectionStatusPaused, ConnectionStatusDisabled:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// PublishStatus
// ---------------------------------------------------------------------------

// PublishStatus is the initial publish state applied to destination products
// created by the sync engine.
type PublishStatus string

const (
	PublishStatusPublished PublishStatus = "published"
	PublishStatusDraft     PublishStatus = "draft"
)

// IsValid returns true if the publish status is valid
func (s PublishStatus) IsValid() bool {
	return s == PublishStatusPublished || s == PublishStatusDraft
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

// Connection is one configured destination store an installation syncs its
// catalog to. The sync engine never mutates a connection except for
// LastSyncedAt and the status transitions driven by pause/resume.
type Connection struct {
	// ID is the unique identifier of the connection
	ID uuid.UUID
	// InstallationID is the owning installation
	InstallationID uuid.UUID
	// PlatformType identifies the destination platform kind
	PlatformType PlatformType
	// TargetDomain is the destination address (shop domain or base URL)
	TargetDomain string
	// Credentials is the encrypted credential blob; decryption is owned by
	// the secrets collaborator
	Credentials string
	// LocationID is the destination inventory location stock levels are set at
	LocationID string
	// Rules is the connection's mapping rule set
	Rules RuleSet
	// SyncPrice enables price updates on matched variants
	SyncPrice bool
	// SyncCategories enables category/collection sync
	SyncCategories bool
	// SyncTags enables tag propagation on created products
	SyncTags bool
	// CreateMissing enables creation of products/variants absent on the destination
	CreateMissing bool
	// InitialPublishStatus is applied to newly created destination products
	InitialPublishStatus PublishStatus
	// Status is the lifecycle status
	Status ConnectionStatus
	// LastSyncedAt is when the last successful sync job finished
	LastSyncedAt *time.Time
	// CreatedAt is when the connection was created
	CreatedAt time.Time
	// UpdatedAt is when the connection was last updated
	UpdatedAt time.Time
}

// NewConnection creates an active connection for the given destination.
func NewConnection(installationID uuid.UUID, platformType PlatformType, targetDomain string) (*Connection, error) {
	if installationID == uuid.Nil {
		return nil, ErrConnectionInvalidID
	}
	if !platformType.IsValid() {
		return nil, ErrConnectionInvalidType
	}
	targetDomain = strings.TrimSpace(targetDomain)
	if targetDomain == "" {
		return nil, ErrConnectionInvalidTarget
	}

	now := time.Now()
	return &Connection{
		ID:                   uuid.New(),
		InstallationID:       installationID,
		PlatformType:         platformType,
		TargetDomain:         targetDomain,
		InitialPublishStatus: PublishStatusPublished,
		Status:               ConnectionStatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// Validate checks the connection's invariants.
func (c *Connection) Validate() error {
	if c.ID == uuid.Nil || c.InstallationID == uuid.Nil {
		return ErrConnectionInvalidID
	}
	if !c.PlatformType.IsValid() {
		return ErrConnectionInvalidType
	}
	if strings.TrimSpace(c.TargetDomain) == "" {
		return ErrConnectionInvalidTarget
	}
	return c.Rules.Validate()
}

// IsActive returns true if the connection accepts sync jobs.
func (c *Connection) IsActive() bool {
	return c.Status == ConnectionStatusActive
}

// Pause moves the connection to paused. Queued jobs for the connection are
// cancelled by the queue, not here; a running job is left to finish.
func (c *Connection) Pause() {
	if c.Status == ConnectionStatusActive {
		c.Status = ConnectionStatusPaused
		c.UpdatedAt = time.Now()
	}
}

// Resume moves a paused connection back to active.
func (c *Connection) Resume() {
	if c.Status == ConnectionStatusPaused {
		c.Status = ConnectionStatusActive
		c.UpdatedAt = time.Now()
	}
}

// Disable shuts the connection off.
func (c *Connection) Disable() {
	c.Status = ConnectionStatusDisabled
	c.UpdatedAt = time.Now()
}

// MarkSynced records a successful sync completion time.
func (c *Connection) MarkSynced(at time.Time) {
	c.LastSyncedAt = &at
	c.UpdatedAt = time.Now()
}

// Snapshot returns a value copy of the connection. The worker loop reads a
// snapshot at claim time and never re-reads mutable connection state mid-run;
// the pause-cancellation check happens only at claim time.
func (c *Connection) Snapshot() Connection {
	snap := *c
	if c.LastSyncedAt != nil {
		at := *c.LastSyncedAt
		snap.LastSyncedAt = &at
	}
	snap.Rules = c.Rules.Clone()
	return snap
}

// ---------------------------------------------------------------------------
// ConnectionRepository
// ---------------------------------------------------------------------------

// ConnectionRepository defines the persistence port for connections.
type ConnectionRepository interface {
	// Save creates or updates a connection
	Save(ctx context.Context, conn *Connection) error

	// FindByID finds a connection by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Connection, error)

	// FindAllActive returns all active connections
	FindAllActive(ctx context.Context) ([]Connection, error)

	// FindByInstallation returns all connections owned by an installation
	FindByInstallation(ctx context.Context, installationID uuid.UUID) ([]Connection, error)

	// UpdateLastSyncedAt records the completion time of a successful sync
	UpdateLastSyncedAt(ctx context.Context, id uuid.UUID, at time.Time) error

	// UpdateStatus transitions the connection's lifecycle status
	UpdateStatus(ctx context.Context, id uuid.UUID, status ConnectionStatus) error
}
