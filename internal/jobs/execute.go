package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"mediabatch/internal/logging"
	"mediabatch/internal/metrics"
	"mediabatch/internal/processor"
	"mediabatch/internal/services"
	"mediabatch/internal/source"
	"mediabatch/internal/transcript"
)

const bytesPerMB = 1024 * 1024

func (r *Runner) execute(ctx context.Context, id string) {
	logger, logPath, closeLog := r.jobLogger(ctx, id)
	defer closeLog()

	started := r.now()
	job, err := r.transition(ctx, id, func(j *Job) {
		j.Status = StatusListing
		j.StartedAt = &started
		j.LogPath = logPath
	})
	if err != nil {
		logger.Error("job could not start", logging.Error(err))
		return
	}
	metrics.JobStarted()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source", job.Source.Ref),
	)

	items, skipped, err := r.list(ctx, logger, job.Source)
	if err != nil {
		r.fail(ctx, logger, id, err)
		return
	}
	count := len(items)
	job, err = r.transition(ctx, id, func(j *Job) {
		j.Status = StatusProcessing
		j.ItemCount = &count
		j.Skipped = skipped
		j.Outcomes = make([]transcript.Outcome, count)
	})
	if err != nil {
		r.fail(ctx, logger, id, err)
		return
	}
	logger.Info("listing complete",
		logging.String(logging.FieldEventType, "listing_complete"),
		logging.Int("items", count),
		logging.Int("skipped", skipped),
	)
	if r.deps.Notifier != nil {
		r.deps.Notifier.NotifyJobStarted(ctx, summaryFor(job))
	}

	ws := processor.Workspace{
		JobID:       id,
		DownloadDir: filepath.Join(r.opts.DownloadDir, id),
		TempDir:     r.opts.TempDir,
		OutputDir:   r.outputDir(job.Source),
	}
	if err := r.processAll(ctx, logger, ws, items); err != nil {
		r.fail(ctx, logger, id, err)
		r.cleanup(logger, ws)
		return
	}
	if ctx.Err() != nil {
		r.fail(ctx, logger, id, errShutdown)
		r.cleanup(logger, ws)
		return
	}
	r.complete(ctx, logger, ws)
}

func (r *Runner) list(ctx context.Context, logger *slog.Logger, spec SourceSpec) ([]source.Item, int, error) {
	listed, err := r.deps.Source.List(services.WithStage(ctx, "listing"), spec.Ref, spec.Recursive)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, errShutdown
		}
		return nil, 0, err
	}
	limit := int64(r.maxFileSizeMB(spec)) * bytesPerMB
	if limit <= 0 {
		return listed, 0, nil
	}
	items := make([]source.Item, 0, len(listed))
	skipped := 0
	for _, item := range listed {
		if item.Size > limit {
			logger.Info("skipping oversized file",
				logging.String(logging.FieldItem, item.Name),
				logging.Float64("size_mb", item.SizeMB()),
				logging.Int("max_file_size_mb", r.maxFileSizeMB(spec)),
			)
			skipped++
			continue
		}
		items = append(items, item)
	}
	return items, skipped, nil
}

// processAll runs items in listing order. With one worker items run inline;
// otherwise a bounded pool pulls indexes from a channel so each item is owned
// by exactly one worker. The first bookkeeping error stops dispatch and is
// returned.
func (r *Runner) processAll(ctx context.Context, logger *slog.Logger, ws processor.Workspace, items []source.Item) error {
	workers := min(r.opts.Concurrency, len(items))
	if workers <= 1 {
		for index, item := range items {
			if ctx.Err() != nil {
				return nil
			}
			if err := r.record(ctx, logger, ws.JobID, r.deps.Processor.Process(ctx, ws, index, item)); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		once     sync.Once
		firstErr error
	)
	stop := make(chan struct{})
	indexes := make(chan int)
	var wg sync.WaitGroup
	for _i := 0; _i < workers; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indexes {
				if err := r.record(ctx, logger, ws.JobID, r.deps.Processor.Process(ctx, ws, index, items[index])); err != nil {
					once.Do(func() {
						firstErr = err
						close(stop)
					})
				}
			}
		}()
	}
feed:
	for index := range items {
		select {
		case indexes <- index:
		case <-stop:
			break feed
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()
	return firstErr
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, id string, outcome transcript.Outcome) error {
	job, err := r.registry.update(id, func(j *Job) error {
		if outcome.Index < 0 || outcome.Index >= len(j.Outcomes) {
			return fmt.Errorf("outcome index %d out of range for %d items", outcome.Index, len(j.Outcomes))
		}
		j.Outcomes[outcome.Index] = outcome
		j.Processed++
		if outcome.Succeeded() {
			j.Succeeded++
		} else {
			j.Failed++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record outcome for %s: %w", outcome.Name, err)
	}
	logger.Info("item recorded",
		logging.String(logging.FieldItem, outcome.Name),
		logging.String("status", string(outcome.Status)),
		logging.Bool("resumed", outcome.Resumed),
		logging.Float64("progress_percent", job.Progress()),
	)
	r.persist(ctx, job)
	return nil
}

func (r *Runner) complete(ctx context.Context, logger *slog.Logger, ws processor.Workspace) {
	snapshot, err := r.registry.Get(ws.JobID)
	if err != nil {
		logger.Error("job vanished before completion", logging.Error(err))
		return
	}
	combinedPath := ""
	if ws.OutputDir != "" && snapshot.Succeeded > 0 {
		store := transcript.ArtifactStore{Dir: ws.OutputDir}
		path, err := store.SaveCombined(snapshot.Outcomes, "", r.now())
		if err != nil {
			logging.WarnWithContext(logger, "combined transcript not written", "combined_save_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the output directory is writable"),
				logging.String(logging.FieldImpact, "per-item transcripts are still available"),
			)
		} else {
			combinedPath = path
		}
	}

	finished := r.now()
	job, err := r.transition(ctx, ws.JobID, func(j *Job) {
		j.Status = StatusCompleted
		j.FinishedAt = &finished
		j.CombinedPath = combinedPath
	})
	if err != nil {
		logger.Error("failed to complete job", logging.Error(err))
		return
	}
	metrics.JobFinished(string(StatusCompleted))
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int("succeeded", job.Succeeded),
		logging.Int("failed", job.Failed),
		logging.String("combined_path", combinedPath),
		logging.Duration("elapsed", finished.Sub(*job.StartedAt)),
	)
	if r.deps.Notifier != nil {
		r.deps.Notifier.NotifyJobCompleted(ctx, summaryFor(job))
	}
	r.cleanup(logger, ws)
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, id string, cause error) {
	finished := r.now()
	job, err := r.transition(ctx, id, func(j *Job) {
		j.Status = StatusFailed
		j.FinishedAt = &finished
		j.Error = cause.Error()
	})
	if err != nil {
		logger.Error("failed to mark job failed", logging.Error(err), logging.String("cause", cause.Error()))
		return
	}
	metrics.JobFinished(string(StatusFailed))
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, services.Hint(cause)),
	)
	if r.deps.Notifier != nil {
		r.deps.Notifier.NotifyJobFailed(context.WithoutCancel(ctx), summaryFor(job), cause)
	}
}

// transition applies a status change and persists the new snapshot.
func (r *Runner) transition(ctx context.Context, id string, mutate func(*Job)) (Job, error) {
	job, err := r.registry.update(id, func(j *Job) error {
		mutate(j)
		return nil
	})
	if err != nil {
		return Job{}, err
	}
	r.persist(ctx, job)
	return job, nil
}

func (r *Runner) cleanup(logger *slog.Logger, ws processor.Workspace) {
	if !r.opts.CleanupTempFiles {
		return
	}
	dirs := []string{ws.DownloadDir}
	if ws.TempDir != "" {
		dirs = append(dirs, filepath.Join(ws.TempDir, ws.JobID))
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			logger.Debug("job cleanup failed", logging.String("dir", dir), logging.Error(err))
		}
	}
}

func (r *Runner) jobLogger(ctx context.Context, id string) (*slog.Logger, string, func()) {
	logger := logging.WithContext(ctx, r.logger)
	if r.opts.LogDir == "" {
		return logger, "", func() {}
	}
	jobLog, err := logging.OpenJobLog(r.opts.LogDir, id, r.opts.LogLevel)
	if err != nil {
		logger.Warn("job log unavailable", logging.Error(err))
		return logger, "", func() {}
	}
	return jobLog.Attach(logger), jobLog.Path, func() { _ = jobLog.Close() }
}
