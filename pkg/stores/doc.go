// Package stores provides the persistence layer for pkgsmith. It includes
// SQLite-based storage with WAL mode, connection pooling, and embedded
// migrations for runs, stage events, and the download audit log.
package stores
