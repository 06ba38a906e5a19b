// Package logging assembles structured slog loggers and formatting helpers used
// across mediabatch.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so the runner and processor tag log lines
// with job IDs, item names, stages, and correlation IDs. Each job can tee its
// records into a dedicated JSON log under <log_dir>/jobs, pruned by
// CleanupOldLogs according to logging.retention_days.
package logging
