package daemon

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mediabatch/internal/config"
	"mediabatch/internal/deps"
	"mediabatch/internal/jobs"
	"mediabatch/internal/jobstore"
	"mediabatch/internal/media"
	"mediabatch/internal/notifications"
	"mediabatch/internal/processor"
	"mediabatch/internal/services/gemini"
	"mediabatch/internal/source"
	"mediabatch/internal/usage"
)

// Components is the assembled processing stack shared by the daemon and the
// foreground run command.
type Components struct {
	Store    *jobstore.Store
	Meter    *usage.Meter
	Runner   *jobs.Runner
	Notifier *notifications.Service
	Model    string
}

// Compose builds the job store, usage meter, source router, media toolkit,
// model client, processor and runner from cfg.
func Compose(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("compose: config is required")
	}
	store, err := jobstore.Open(cfg)
	if err != nil {
		return nil, err
	}

	meter, err := usage.NewMeter(usage.NewFileStore(cfg.Paths.UsageFile),
		usage.WithLogger(logger),
		usage.WithHistoryLimit(cfg.Usage.HistoryLimit),
		usage.WithDefaultTier(usage.Tier(cfg.Usage.Tier)),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("usage meter: %w", err)
	}

	router := source.NewRouter(
		source.NewLocal(cfg.Processing.SupportedFormats),
		source.NewDrive(source.DriveOptions{
			BaseURL:    cfg.Source.DriveBaseURL,
			APIKey:     cfg.Source.DriveAPIKey,
			Extensions: cfg.Processing.SupportedFormats,
			CacheSize:  cfg.Source.ListingCacheSize,
			CacheTTL:   cfg.ListingCacheTTL(),
			Client:     &http.Client{Timeout: time.Duration(cfg.Source.RequestTimeout) * time.Second},
			Logger:     logger,
		}),
	)

	toolkit := media.NewToolkit(media.Options{
		FFmpegBinary:  cfg.FFmpegBinary(),
		FFprobeBinary: deps.ResolveFFprobe(cfg.FFmpegBinary(), cfg.FFprobeBinary()),
		Bitrate:       cfg.Processing.TranscodeBitrate,
		Logger:        logger,
	})

	inference := cfg.GetInference()
	client := gemini.NewClient(gemini.Config{
		APIKey:         inference.APIKey,
		BaseURL:        inference.BaseURL,
		Model:          inference.Model,
		TimeoutSeconds: inference.TimeoutSeconds,
		PollInterval:   inference.PollInterval,
		PollTimeout:    inference.PollTimeout,
	},
		gemini.WithRetryMaxAttempts(inference.RetryAttempts),
		gemini.WithLogger(logger),
	)

	proc := processor.New(processor.Options{
		MaxChunkBytes:    cfg.MaxChunkBytes(),
		AcceptedFormats:  cfg.Processing.AcceptedFormats,
		Bitrate:          cfg.Processing.TranscodeBitrate,
		CleanupTempFiles: cfg.Processing.CleanupTempFiles,
		Resume:           cfg.Processing.Resume,
	}, processor.Dependencies{
		Source:    router,
		Media:     toolkit,
		Inference: client,
		Usage:     meter,
		Logger:    logger,
	})

	notifier := notifications.NewService(cfg, notifications.WithLogger(logger))
	runner := jobs.NewRunner(jobs.Options{
		DownloadDir:      cfg.Paths.DownloadDir,
		TempDir:          cfg.Paths.TempDir,
		OutputDir:        cfg.Paths.OutputDir,
		LogDir:           cfg.Paths.LogDir,
		LogLevel:         cfg.Logging.Level,
		MaxFileSizeMB:    cfg.Processing.MaxFileSizeMB,
		Concurrency:      cfg.Processing.Concurrency,
		CleanupTempFiles: cfg.Processing.CleanupTempFiles,
	}, jobs.Dependencies{
		Source:    router,
		Processor: proc,
		Notifier:  notifier,
		Store:     store,
		Logger:    logger,
	})

	return &Components{
		Store:    store,
		Meter:    meter,
		Runner:   runner,
		Notifier: notifier,
		Model:    client.Model(),
	}, nil
}

// Close releases the job store.
func (c *Components) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
