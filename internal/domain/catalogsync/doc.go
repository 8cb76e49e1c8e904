// Package catalogsync contains the core domain model for outbound catalog
// synchronization: connections to destination stores, sync jobs and their
// state machine, source catalog items, the mapping rules engine, and the
// audit trail. It has no infrastructure dependencies; persistence and
// platform access are defined here as ports and implemented elsewhere.
package catalogsync
