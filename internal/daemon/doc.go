// Package daemon runs the long-lived mediabatch process.
//
// Compose assembles the processing stack (job store, usage meter, source
// router, media toolkit, model client, item processor, notifications and the
// batch runner) from configuration. Daemon wraps that stack with a flock-based
// single-instance guard, restores job history on start, and serves the HTTP
// API through a chi router with Prometheus instrumentation.
//
// Keep orchestration here; per-item and per-job logic lives in the processor
// and jobs packages.
package daemon
