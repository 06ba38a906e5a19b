package config

const (
	defaultConfigPath             = "~/.config/mediabatch/config.toml"
	defaultDataDir                = "~/.local/share/mediabatch"
	defaultDownloadDir            = "~/.local/share/mediabatch/downloads"
	defaultTempDir                = "/tmp/mediabatch"
	defaultOutputDir              = "~/transcriptions"
	defaultLogDir                 = "~/.local/share/mediabatch/logs"
	defaultUsageFileName          = "usage_log.json"
	defaultAPIBind                = "127.0.0.1:8000"
	defaultInferenceBaseURL       = "https://generativelanguage.googleapis.com"
	defaultInferenceModel         = "gemini-2.5-flash"
	defaultInferenceTimeout       = 600
	defaultPollIntervalSeconds    = 2
	defaultPollTimeoutSeconds     = 600
	defaultRetryAttempts          = 1
	defaultUsageTier              = "free"
	defaultHistoryLimit           = 1000
	defaultMaxChunkSizeMB         = 20
	defaultMaxFileSizeMB          = 200
	defaultTranscodeBitrate       = "128k"
	defaultConcurrency            = 1
	defaultDriveBaseURL           = "https://www.googleapis.com/drive/v3"
	defaultListingCacheSize       = 64
	defaultListingCacheTTLSeconds = 300
	defaultSourceRequestTimeout   = 120
	defaultNotifyRequestTimeout   = 10
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

var (
	defaultSupportedFormats = []string{"mp3", "wav", "m4a", "aac", "ogg", "flac", "opus", "wma"}
	defaultAcceptedFormats  = []string{"mp3", "wav", "m4a"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			DownloadDir: defaultDownloadDir,
			TempDir:     defaultTempDir,
			OutputDir:   defaultOutputDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Inference: Inference{
			BaseURL:             defaultInferenceBaseURL,
			Model:               defaultInferenceModel,
			TimeoutSeconds:      defaultInferenceTimeout,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			PollTimeoutSeconds:  defaultPollTimeoutSeconds,
			RetryAttempts:       defaultRetryAttempts,
		},
		Usage: Usage{
			Tier:         defaultUsageTier,
			HistoryLimit: defaultHistoryLimit,
		},
		Processing: Processing{
			MaxChunkSizeMB:   defaultMaxChunkSizeMB,
			MaxFileSizeMB:    defaultMaxFileSizeMB,
			SupportedFormats: append([]string(nil), defaultSupportedFormats...),
			AcceptedFormats:  append([]string(nil), defaultAcceptedFormats...),
			TranscodeBitrate: defaultTranscodeBitrate,
			CleanupTempFiles: true,
			Concurrency:      defaultConcurrency,
			Resume:           true,
		},
		Source: Source{
			DriveBaseURL:           defaultDriveBaseURL,
			Recursive:              true,
			ListingCacheSize:       defaultListingCacheSize,
			ListingCacheTTLSeconds: defaultListingCacheTTLSeconds,
			RequestTimeout:         defaultSourceRequestTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobStarted:     true,
			JobCompleted:   true,
			Errors:         true,
		},
		Media: Media{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
