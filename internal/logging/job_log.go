package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// JobLogDir is the subdirectory of paths.log_dir holding one JSON log per job.
const JobLogDir = "jobs"

// JobLog captures every record emitted while a single job runs.
type JobLog struct {
	Path string

	mu      sync.Mutex
	file    *os.File
	handler slog.Handler
}

// OpenJobLog creates (or appends to) <logDir>/jobs/<jobID>.log.
func OpenJobLog(logDir, jobID, level string) (*JobLog, error) {
	logDir = strings.TrimSpace(logDir)
	if logDir == "" {
		return nil, fmt.Errorf("open job log: log directory not configured")
	}
	dir := filepath.Join(logDir, JobLogDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job log dir: %w", err)
	}
	path := filepath.Join(dir, jobID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open job log: %w", err)
	}
	return &JobLog{
		Path:    path,
		file:    file,
		handler: newJSONHandler(file, parseLevel(level), false),
	}, nil
}

// Attach returns a logger that writes to base and to the job log.
func (j *JobLog) Attach(base *slog.Logger) *slog.Logger {
	if j == nil {
		return base
	}
	return TeeLogger(base, j.handler)
}

// Close flushes and releases the job log file.
func (j *JobLog) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
