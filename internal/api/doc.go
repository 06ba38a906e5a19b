// Package api defines the JSON payloads served by the daemon's HTTP API and a
// small client the CLI uses to call it.
//
// Handlers in internal/daemon convert domain values into these views; the
// client decodes the same types, so the CLI and server cannot drift apart.
// Error responses carry {"error": "..."} and are surfaced by the client as
// *Error values that unwrap to the matching services sentinel.
package api
