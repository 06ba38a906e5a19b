package processor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mediabatch/internal/chunking"
	"mediabatch/internal/logging"
	"mediabatch/internal/media"
	"mediabatch/internal/metrics"
	"mediabatch/internal/services"
	"mediabatch/internal/source"
	"mediabatch/internal/transcript"
	"mediabatch/internal/usage"
)

// Materializer makes an item available as a local file.
type Materializer interface {
	Materialize(ctx context.Context, item source.Item, dir string) (string, error)
}

// MediaProbe inspects and re-encodes audio.
type MediaProbe interface {
	Duration(ctx context.Context, path string) (float64, error)
	Transcode(ctx context.Context, path string, target media.Target) (string, error)
	Clip(ctx context.Context, path string, start, duration float64, out string) (string, error)
}

// InferenceClient transcribes one audio file.
type InferenceClient interface {
	Submit(ctx context.Context, path, prompt string) (transcript.Result, error)
}

// UsageRecorder meters model calls.
type UsageRecorder interface {
	RecordCall(ctx context.Context, inputTokens, outputTokens int64, model string, fileSizeMB float64) usage.LimitStatus
}

// Options tunes the per-item pipeline.
type Options struct {
	MaxChunkBytes    int64
	AcceptedFormats  []string
	Bitrate          string
	Prompt           string
	CleanupTempFiles bool
	Resume           bool
}

// Dependencies are the collaborators a Processor drives.
type Dependencies struct {
	Source    Materializer
	Media     MediaProbe
	Inference InferenceClient
	Usage     UsageRecorder
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Workspace is the per-job directory layout. An empty OutputDir disables
// artifact persistence and resume.
type Workspace struct {
	JobID       string
	DownloadDir string
	TempDir     string
	OutputDir   string
}

// Processor runs the per-item pipeline.
type Processor struct {
	opts   Options
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Processor.
func New(opts Options, deps Dependencies) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Processor{
		opts:   opts,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "processor"),
		now:    now,
	}
}

// Process transcribes item and reports the outcome. index is the item's
// position in the job listing.
func (p *Processor) Process(ctx context.Context, ws Workspace, index int, item source.Item) transcript.Outcome {
	started := p.now()
	ctx = services.WithItem(services.WithJobID(ctx, ws.JobID), item.Name)
	logger := logging.WithContext(ctx, p.logger)
	store := transcript.ArtifactStore{Dir: ws.OutputDir}

	if p.opts.Resume && store.Exists(item.Key()) {
		result, err := store.Load(item.Key())
		if err == nil {
			logger.Info("item already transcribed; reusing artifacts",
				logging.String(logging.FieldEventType, "item_resumed"),
				logging.String("output_dir", ws.OutputDir),
			)
			metrics.ItemProcessed("resumed", 0)
			return transcript.Success(index, item.Name, item.Locator, result, true)
		}
		logging.WarnWithContext(logger, "existing artifacts unreadable; reprocessing", "resume_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the damaged artifact to silence this warning"),
			logging.String(logging.FieldImpact, "item is transcribed again"),
		)
	}

	logger.Info("item started",
		logging.String(logging.FieldEventType, "item_start"),
		logging.Int("index", index),
		logging.Int64("size_bytes", item.Size),
	)
	result, err := p.transcribe(ctx, logger, ws, item)
	elapsed := p.now().Sub(started).Seconds()
	if err != nil {
		logging.ErrorWithContext(logger, "item failed", "item_failed",
			logging.Error(err),
			logging.Float64("elapsed_seconds", elapsed),
		)
		metrics.ItemProcessed("failure", elapsed)
		return transcript.Failure(index, item.Name, item.Locator, err.Error())
	}

	if ws.OutputDir != "" {
		if err := store.Save(item.Key(), result, p.now()); err != nil {
			logging.ErrorWithContext(logger, "failed to persist artifacts", "artifact_save_failed", logging.Error(err))
			metrics.ItemProcessed("failure", elapsed)
			return transcript.Failure(index, item.Name, item.Locator, err.Error())
		}
	}
	logger.Info("item completed",
		logging.String(logging.FieldEventType, "item_complete"),
		logging.Int("chunks", max(result.NumChunks, 1)),
		logging.Int64("input_tokens", result.InputTokens),
		logging.Int64("output_tokens", result.OutputTokens),
		logging.Float64("elapsed_seconds", elapsed),
	)
	metrics.ItemProcessed("success", elapsed)
	return transcript.Success(index, item.Name, item.Locator, result, false)
}

func (p *Processor) transcribe(ctx context.Context, logger *slog.Logger, ws Workspace, item source.Item) (transcript.Result, error) {
	scratch, release, err := p.scratchDir(ws)
	if err != nil {
		return transcript.Result{}, err
	}
	defer release()

	local, err := p.deps.Source.Materialize(services.WithStage(ctx, "materialize"), item, p.materializeDir(ws, item))
	if err != nil {
		return transcript.Result{}, err
	}
	if _, err := os.Stat(local); err != nil {
		return transcript.Result{}, services.Wrap(services.ErrSourceUnavailable, "processor", "stat", local, err)
	}

	duration, err := p.deps.Media.Duration(services.WithStage(ctx, "probe"), local)
	if err != nil {
		logging.WarnWithContext(logger, "duration probe failed; chunk planning may degrade", "duration_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that ffprobe is installed and the file is valid audio"),
			logging.String(logging.FieldImpact, "oversized files are sent as a single chunk"),
		)
		duration = 0
	}

	audio := local
	if media.NeedsTranscode(item.Name, p.opts.AcceptedFormats) {
		audio, err = p.deps.Media.Transcode(services.WithStage(ctx, "transcode"), local, media.Target{Dir: scratch, Bitrate: p.opts.Bitrate})
		if err != nil {
			return transcript.Result{}, err
		}
	}
	audioInfo, err := os.Stat(audio)
	if err != nil {
		return transcript.Result{}, services.Wrap(services.ErrMedia, "processor", "stat", audio, err)
	}

	plan := chunking.PlanItem(audioInfo.Size(), duration, p.opts.MaxChunkBytes)
	if plan.Degraded {
		logging.WarnWithContext(logger, "chunk plan degraded to a single request", "chunk_plan_degraded",
			logging.String("plan", plan.String()),
			logging.Int64("size_bytes", audioInfo.Size()),
			logging.String(logging.FieldErrorHint, "the model may reject files above the chunk limit"),
			logging.String(logging.FieldImpact, "item is submitted whole"),
		)
	} else if plan.Split {
		logger.Info("item split into chunks", logging.String("plan", plan.String()))
	}

	results := make([]transcript.Result, 0, plan.Len())
	for _, chunk := range plan.Chunks {
		result, err := p.submitChunk(ctx, logger, scratch, audio, audioInfo.Size(), plan, chunk)
		if err != nil {
			return transcript.Result{}, err
		}
		results = append(results, result)
	}

	// Processing time and size stay as the sums over chunk results.
	merged := chunking.Merge(results)
	merged.FileName = item.Name
	if merged.Model == "" && len(results) > 0 {
		merged.Model = results[0].Model
	}
	return merged, nil
}

func (p *Processor) submitChunk(ctx context.Context, logger *slog.Logger, scratch, audio string, audioSize int64, plan chunking.Plan, chunk chunking.Chunk) (transcript.Result, error) {
	path := audio
	sizeMB := float64(audioSize) / (1024 * 1024)
	if plan.Split {
		out := filepath.Join(scratch, fmt.Sprintf("chunk_%03d_%s.mp3", chunk.Index, transcript.Stem(audio)))
		clipped, err := p.deps.Media.Clip(services.WithStage(ctx, "clip"), audio, chunk.Start, chunk.Duration, out)
		if err != nil {
			return transcript.Result{}, fmt.Errorf("chunk %d/%d: %w", chunk.Index+1, plan.Len(), err)
		}
		path = clipped
		if info, err := os.Stat(clipped); err == nil {
			sizeMB = float64(info.Size()) / (1024 * 1024)
		} else {
			sizeMB = float64(chunk.EstimatedBytes) / (1024 * 1024)
		}
	}

	result, err := p.deps.Inference.Submit(services.WithStage(ctx, "inference"), path, p.opts.Prompt)
	if err != nil {
		if plan.Split {
			return transcript.Result{}, fmt.Errorf("chunk %d/%d: %w", chunk.Index+1, plan.Len(), err)
		}
		return transcript.Result{}, err
	}
	status := p.deps.Usage.RecordCall(ctx, result.InputTokens, result.OutputTokens, result.Model, sizeMB)
	logger.Debug("chunk transcribed",
		logging.Int("chunk", chunk.Index),
		logging.Int64("input_tokens", result.InputTokens),
		logging.Int64("output_tokens", result.OutputTokens),
		logging.String("quota_status", status.Status),
	)
	return result, nil
}

// materializeDir keeps local files in place and downloads remote ones into the
// job's download dir.
func (p *Processor) materializeDir(ws Workspace, item source.Item) string {
	if item.Origin == source.OriginLocal {
		return ""
	}
	return ws.DownloadDir
}

// scratchDir creates the per-item temp dir under <temp>/<job>. The release
// func removes it when cleanup is enabled.
func (p *Processor) scratchDir(ws Workspace) (string, func(), error) {
	parent := ws.TempDir
	if parent == "" {
		parent = os.TempDir()
	}
	if ws.JobID != "" {
		parent = filepath.Join(parent, ws.JobID)
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", nil, services.Wrap(services.ErrStorage, "processor", "scratch", parent, err)
	}
	dir, err := os.MkdirTemp(parent, "item-")
	if err != nil {
		return "", nil, services.Wrap(services.ErrStorage, "processor", "scratch", parent, err)
	}
	release := func() {
		if !p.opts.CleanupTempFiles {
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Debug("temp cleanup failed", logging.String("dir", dir), logging.Error(err))
		}
	}
	return dir, release, nil
}
