package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	DownloadDir string `toml:"download_dir"`
	TempDir     string `toml:"temp_dir"`
	OutputDir   string `toml:"output_dir"`
	LogDir      string `toml:"log_dir"`
	UsageFile   string `toml:"usage_file"`
	APIBind     string `toml:"api_bind"`
}

// Inference contains settings for the generative model service.
type Inference struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	PollTimeoutSeconds  int    `toml:"poll_timeout_seconds"`
	RetryAttempts       int    `toml:"retry_attempts"`
}

// Usage contains quota tracking settings.
type Usage struct {
	Tier         string `toml:"tier"`
	HistoryLimit int    `toml:"history_limit"`
}

// Processing contains per-item pipeline settings.
type Processing struct {
	MaxChunkSizeMB   int      `toml:"max_chunk_size_mb"`
	MaxFileSizeMB    int      `toml:"max_file_size_mb"`
	SupportedFormats []string `toml:"supported_formats"`
	AcceptedFormats  []string `toml:"accepted_formats"`
	TranscodeBitrate string   `toml:"transcode_bitrate"`
	CleanupTempFiles bool     `toml:"cleanup_temp_files"`
	Concurrency      int      `toml:"concurrency"`
	Resume           bool     `toml:"resume"`
}

// Source contains remote folder settings.
type Source struct {
	DriveAPIKey            string `toml:"drive_api_key"`
	DriveBaseURL           string `toml:"drive_base_url"`
	Recursive              bool   `toml:"recursive"`
	ListingCacheSize       int    `toml:"listing_cache_size"`
	ListingCacheTTLSeconds int    `toml:"listing_cache_ttl_seconds"`
	RequestTimeout         int    `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy and Slack delivery.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	SlackWebhookURL string `toml:"slack_webhook_url"`
	SlackChannel    string `toml:"slack_channel"`
	RequestTimeout  int    `toml:"request_timeout"`
	JobStarted      bool   `toml:"job_started"`
	JobCompleted    bool   `toml:"job_completed"`
	Errors          bool   `toml:"errors"`
}

// Media contains external tool settings.
type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mediabatch.
//
// Configuration sections by subsystem:
//   - Paths: data, download, temp, output and log directories plus API bind
//   - Inference: model endpoint, polling ceiling and retry attempts
//   - Usage: active quota tier and history retention
//   - Processing: chunk size, accepted formats and worker count
//   - Source: Google Drive access and listing cache
//   - Notifications: ntfy and Slack delivery
//   - Media: ffmpeg/ffprobe binaries
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Inference     Inference     `toml:"inference"`
	Usage         Usage         `toml:"usage"`
	Processing    Processing    `toml:"processing"`
	Source        Source        `toml:"source"`
	Notifications Notifications `toml:"notifications"`
	Media         Media         `toml:"media"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediabatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so jobs that override the
// output location still run when the default is on unavailable storage.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.DownloadDir, c.Paths.TempDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// JobStorePath returns the SQLite database holding job history.
func (c *Config) JobStorePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "mediabatch.lock")
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if value := strings.TrimSpace(c.Media.FFmpegBinary); value != "" {
		return value
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if value := strings.TrimSpace(c.Media.FFprobeBinary); value != "" {
		return value
	}
	return defaultFFprobeBinary
}

// MaxChunkBytes returns the chunk size ceiling in bytes.
func (c *Config) MaxChunkBytes() int64 {
	return int64(c.Processing.MaxChunkSizeMB) * 1024 * 1024
}

// PollInterval returns the fixed wait between readiness polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Inference.PollIntervalSeconds) * time.Second
}

// PollTimeout returns the ceiling on waiting for uploaded media to become ready.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Inference.PollTimeoutSeconds) * time.Second
}

// ListingCacheTTL returns how long remote folder listings stay cached.
func (c *Config) ListingCacheTTL() time.Duration {
	return time.Duration(c.Source.ListingCacheTTLSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// InferenceConfig contains the resolved model connection settings.
type InferenceConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	PollInterval   time.Duration
	PollTimeout    time.Duration
	RetryAttempts  int
}

// GetInference returns the model connection settings.
func (c *Config) GetInference() InferenceConfig {
	return InferenceConfig{
		APIKey:         strings.TrimSpace(c.Inference.APIKey),
		BaseURL:        strings.TrimSpace(c.Inference.BaseURL),
		Model:          strings.TrimSpace(c.Inference.Model),
		TimeoutSeconds: c.Inference.TimeoutSeconds,
		PollInterval:   c.PollInterval(),
		PollTimeout:    c.PollTimeout(),
		RetryAttempts:  c.Inference.RetryAttempts,
	}
}
