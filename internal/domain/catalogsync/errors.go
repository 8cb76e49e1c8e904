package catalogsync

import "errors"

var (
	// Connection errors
	ErrConnectionNotFound      = errors.New("catalogsync: connection not found")
	ErrConnectionNotActive     = errors.New("catalogsync: connection not active")
	ErrConnectionInvalidID     = errors.New("catalogsync: invalid connection ID")
	ErrConnectionInvalidTarget = errors.New("catalogsync: invalid destination address")
	ErrConnectionInvalidType   = errors.New("catalogsync: invalid platform type")
	ErrConnectionNoCredentials = errors.New("catalogsync: connection has no credentials")

	// Rule set errors
	ErrRuleSetInvalidMultiplier = errors.New("catalogsync: price multiplier must be positive")
	ErrRuleSetInvalidPriceRange = errors.New("catalogsync: price range minimum exceeds maximum")
	ErrRuleSetInvalidStockRange = errors.New("catalogsync: stock range minimum exceeds maximum")

	// Job errors
	ErrJobNotFound          = errors.New("catalogsync: job not found")
	ErrJobNotDead           = errors.New("catalogsync: job is not dead-lettered")
	ErrJobInvalidType       = errors.New("catalogsync: invalid job type")
	ErrJobInvalidTransition = errors.New("catalogsync: invalid job state transition")
	ErrJobAlreadyClaimed    = errors.New("catalogsync: job already claimed by another worker")
	ErrNoQueuedJobs         = errors.New("catalogsync: no queued jobs")

	// Catalog errors
	ErrCatalogItemNoSKU = errors.New("catalogsync: catalog item has no SKU")
)
