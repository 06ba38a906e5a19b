// Package main hosts the mediabatch CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground (serve), processes
// a source in-process without a daemon (run), and talks to a running daemon
// over its HTTP API for job and usage management. Configuration resolution
// and API address discovery live in commandContext so subcommands only deal
// with presentation.
package main
