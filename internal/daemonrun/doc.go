// Package daemonrun hosts the foreground runtime behind `mediabatch serve`:
// per-run log files with a stable pointer, a PID file, log retention, and the
// composed daemon kept alive until a termination signal arrives.
package daemonrun
