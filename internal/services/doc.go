// Package services defines shared utilities consumed by the job runner, the
// item processor, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, item names, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers classify
//     failures with errors.Is and the HTTP layer maps them to status codes.
//
// Subpackages hold clients for remote services (see services/gemini).
package services
