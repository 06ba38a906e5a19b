package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediabatch/internal/logging"
	"mediabatch/internal/notifications"
	"mediabatch/internal/processor"
	"mediabatch/internal/services"
	"mediabatch/internal/source"
	"mediabatch/internal/transcript"
)

// errShutdown is recorded on jobs cancelled by Shutdown.
var errShutdown = errors.New("runner shut down")

// Lister enumerates the items behind a source reference.
type Lister interface {
	List(ctx context.Context, ref string, recursive bool) ([]source.Item, error)
}

// ItemProcessor turns one item into an outcome.
type ItemProcessor interface {
	Process(ctx context.Context, ws processor.Workspace, index int, item source.Item) transcript.Outcome
}

// Notifier announces job milestones. Implementations swallow their own errors.
type Notifier interface {
	NotifyJobStarted(ctx context.Context, job notifications.JobSummary)
	NotifyJobCompleted(ctx context.Context, job notifications.JobSummary)
	NotifyJobFailed(ctx context.Context, job notifications.JobSummary, err error)
}

// Store persists job history across restarts.
type Store interface {
	SaveJob(ctx context.Context, job Job) error
	LoadJobs(ctx context.Context) ([]Job, error)
}

// Options holds the runner defaults and directory layout.
type Options struct {
	DownloadDir      string
	TempDir          string
	OutputDir        string
	LogDir           string
	LogLevel         string
	MaxFileSizeMB    int
	Concurrency      int
	CleanupTempFiles bool
}

// Dependencies are the collaborators a Runner drives. Notifier and Store are
// optional.
type Dependencies struct {
	Source    Lister
	Processor ItemProcessor
	Notifier  Notifier
	Store     Store
	Logger    *slog.Logger
	Clock     func() time.Time
	NewID     func() string
}

// Runner executes jobs in the background.
type Runner struct {
	opts     Options
	deps     Dependencies
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner constructs a Runner with an empty registry.
func NewRunner(opts Options, deps Dependencies) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	root, cancel := context.WithCancel(context.Background())
	return &Runner{
		opts:     opts,
		deps:     deps,
		registry: NewRegistry(),
		logger:   logging.NewComponentLogger(logger, "jobs"),
		now:      now,
		newID:    newID,
		root:     root,
		cancel:   cancel,
	}
}

// Submit registers a queued job and starts it in the background. The job runs
// under the runner's context, not ctx; only request-scoped values are carried
// over.
func (r *Runner) Submit(ctx context.Context, spec SourceSpec) (string, error) {
	spec.Ref = strings.TrimSpace(spec.Ref)
	if spec.Ref == "" {
		return "", services.Wrap(services.ErrValidation, "jobs", "submit", "source is required", nil)
	}
	if spec.MaxFileSizeMB < 0 {
		return "", services.Wrap(services.ErrValidation, "jobs", "submit", "max_file_size_mb must not be negative", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", services.Wrap(services.ErrValidation, "jobs", "submit", errShutdown.Error(), nil)
	}

	job := Job{
		ID:        r.newID(),
		Status:    StatusQueued,
		Source:    spec,
		CreatedAt: r.now(),
	}
	done, err := r.registry.add(job)
	if err != nil {
		return "", err
	}
	r.persist(ctx, job)

	jobCtx := services.WithJobID(r.root, job.ID)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		jobCtx = services.WithRequestID(jobCtx, rid)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(done)
		r.execute(jobCtx, job.ID)
	}()

	logging.WithContext(jobCtx, r.logger).Info("job queued",
		logging.String(logging.FieldEventType, "job_queued"),
		logging.String("source", spec.Ref),
		logging.Bool("recursive", spec.Recursive),
	)
	return job.ID, nil
}

// Status returns a snapshot of the job.
func (r *Runner) Status(id string) (Job, error) {
	return r.registry.Get(id)
}

// Results returns the detailed outcomes of a completed job.
func (r *Runner) Results(id string) (Results, error) {
	job, err := r.registry.Get(id)
	if err != nil {
		return Results{}, err
	}
	if job.Status != StatusCompleted {
		return Results{}, services.Wrap(services.ErrNotReady, "jobs", "results",
			fmt.Sprintf("job not completed: current status is %s", job.Status), nil)
	}
	total := 0
	if job.ItemCount != nil {
		total = *job.ItemCount
	}
	return Results{
		ID:           job.ID,
		Status:       job.Status,
		TotalFiles:   total,
		Successful:   job.Succeeded,
		Failed:       job.Failed,
		OutputDir:    r.outputDir(job.Source),
		CombinedPath: job.CombinedPath,
		Results:      job.Outcomes,
	}, nil
}

// List returns job summaries ordered by creation time.
func (r *Runner) List() []Summary {
	jobs := r.registry.List()
	out := make([]Summary, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Summarize())
	}
	return out
}

// Wait blocks until the job's task exits or ctx is done, then returns the
// latest snapshot.
func (r *Runner) Wait(ctx context.Context, id string) (Job, error) {
	done, ok := r.registry.done(id)
	if !ok {
		return Job{}, services.Wrap(services.ErrNotFound, "jobs", "wait", "job "+id, nil)
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}
	return r.registry.Get(id)
}

// Shutdown cancels every in-flight job and waits for their tasks to exit.
// Cancelled jobs are marked failed.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for jobs: %w", ctx.Err())
	}
}

// Restore loads job history from the store. Jobs that were still active when
// the previous process stopped are marked failed.
func (r *Runner) Restore(ctx context.Context) (int, error) {
	if r.deps.Store == nil {
		return 0, nil
	}
	jobs, err := r.deps.Store.LoadJobs(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		if !job.Status.Terminal() {
			finished := r.now()
			job.Status = StatusFailed
			job.Error = "interrupted by restart"
			job.FinishedAt = &finished
			r.persist(ctx, job)
		}
		r.registry.restore(job)
	}
	return len(jobs), nil
}

func (r *Runner) outputDir(spec SourceSpec) string {
	if dir := strings.TrimSpace(spec.OutputDir); dir != "" {
		return dir
	}
	return r.opts.OutputDir
}

func (r *Runner) maxFileSizeMB(spec SourceSpec) int {
	if spec.MaxFileSizeMB > 0 {
		return spec.MaxFileSizeMB
	}
	return r.opts.MaxFileSizeMB
}

func (r *Runner) persist(ctx context.Context, job Job) {
	if r.deps.Store == nil {
		return
	}
	if err := r.deps.Store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to persist job", "job_persist_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the job database under paths.data_dir"),
			logging.String(logging.FieldImpact, "job history may be stale after restart"),
		)
	}
}

func summaryFor(job Job) notifications.JobSummary {
	summary := notifications.JobSummary{
		ID:           job.ID,
		Source:       job.Source.Ref,
		Succeeded:    job.Succeeded,
		Failed:       job.Failed,
		CombinedPath: job.CombinedPath,
	}
	if job.ItemCount != nil {
		summary.Items = *job.ItemCount
	}
	if job.StartedAt != nil {
		end := time.Now()
		if job.FinishedAt != nil {
			end = *job.FinishedAt
		}
		summary.Duration = end.Sub(*job.StartedAt)
	}
	return summary
}
