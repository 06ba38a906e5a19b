package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mediabatch/internal/config"
	"mediabatch/internal/deps"
	"mediabatch/internal/logging"
	"mediabatch/internal/preflight"
)

const shutdownTimeout = 30 * time.Second

// Daemon owns the job runner and the HTTP API and enforces single-instance
// execution through a lock file under the data directory.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	components *Components
	api        *apiServer
	version    string

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	stopped bool
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockFilePath  string
	JobDBPath     string
	UsageFilePath string
	APIAddress    string
	ActiveJobs    int
	Dependencies  []deps.Status
}

// New constructs a daemon around already composed components.
func New(cfg *config.Config, logger *slog.Logger, components *Components, version string) (*Daemon, error) {
	if cfg == nil || components == nil || components.Runner == nil || components.Meter == nil {
		return nil, errors.New("daemon requires config, runner, and usage meter")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		components: components,
		version:    version,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.api = newAPIServer(cfg.Paths.APIBind, d, logger)
	return d, nil
}

// Start acquires the daemon lock, restores job history, prunes expired logs
// and jobs, and starts the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped {
		return errors.New("daemon cannot be restarted after stop")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediabatch daemon instance is already running")
	}

	d.pruneHistory(ctx)
	restored, err := d.components.Runner.Restore(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "job history unavailable", "job_restore_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the job database under paths.data_dir"),
			logging.String(logging.FieldImpact, "previous jobs will not be listed"),
		)
	}

	if err := d.api.start(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("mediabatch daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.Int("restored_jobs", restored),
	)
	return nil
}

// Stop shuts down the API, cancels in-flight jobs, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.components.Runner.Shutdown(ctx); err != nil {
		d.logger.Warn("jobs did not stop in time", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.stopped = true
	d.logger.Info("mediabatch daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and releases the job store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.components.Close()
}

// Addr returns the address the API is listening on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) Status {
	active := 0
	for _, job := range d.components.Runner.List() {
		if job.Status.Active() {
			active++
		}
	}
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockFilePath:  d.lockPath,
		UsageFilePath: d.cfg.Paths.UsageFile,
		APIAddress:    d.api.address(),
		ActiveJobs:    active,
		Dependencies:  preflight.CheckSystemDeps(d.cfg),
	}
	if d.components.Store != nil {
		status.JobDBPath = d.components.Store.Path()
	}
	return status
}

func (d *Daemon) pruneHistory(ctx context.Context) {
	days := d.cfg.Logging.RetentionDays
	if days <= 0 {
		return
	}
	removed := logging.CleanupOldLogs(d.logger, days,
		logging.RetentionTarget{Dir: filepath.Join(d.cfg.Paths.LogDir, logging.JobLogDir), Pattern: "*.log"},
	)
	var pruned int64
	if d.components.Store != nil {
		cutoff := time.Now().AddDate(0, 0, -days)
		count, err := d.components.Store.PruneFinished(ctx, cutoff)
		if err != nil {
			d.logger.Warn("job history pruning failed", logging.Error(err))
		}
		pruned = count
	}
	if removed > 0 || pruned > 0 {
		d.logger.Info("pruned expired history",
			logging.Int("log_files", removed),
			logging.Int64("jobs", pruned),
			logging.Int("retention_days", days),
		)
	}
}
