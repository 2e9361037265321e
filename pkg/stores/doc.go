// Package stores provides persistence layer implementations for LeadForge.
// It includes SQLite-based storage with WAL mode, connection pooling, and
// CRUD operations for campaigns, memberships, deals, and the activity log.
// SQLiteStore satisfies the engine repository interfaces.
package stores
