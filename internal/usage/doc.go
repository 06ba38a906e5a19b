// Package usage meters model calls against tiered daily quotas.
//
// Meter keeps cumulative request, token, and cost counters plus a bounded
// history, persists them through a Store after every change, and reports a
// graduated LimitStatus (none, caution, warning, critical). The daily counter
// rolls over lazily on the first access after local midnight. FileStore shares
// the record between the daemon and CLI processes with an advisory file lock.
package usage
