// Package jobstore persists batch job history in SQLite.
//
// Each job is one row holding its source request, counters, timestamps and
// the per-item outcomes encoded as JSON. The runner saves a snapshot on every
// state change, and the daemon reloads the table on startup so job history
// and results survive restarts. Writes retry briefly on SQLITE_BUSY because
// the CLI may open the same database while the daemon runs.
//
// The schema is versioned; a database created by an incompatible build is
// rejected with ErrSchemaMismatch rather than migrated.
package jobstore
