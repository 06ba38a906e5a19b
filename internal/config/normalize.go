package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeInference()
	c.normalizeUsage()
	c.normalizeProcessing()
	c.normalizeSource()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = filepath.Join(c.Paths.DataDir, "downloads")
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.UsageFile) == "" {
		c.Paths.UsageFile = filepath.Join(c.Paths.DataDir, defaultUsageFileName)
	}
	if c.Paths.UsageFile, err = expandPath(c.Paths.UsageFile); err != nil {
		return fmt.Errorf("paths.usage_file: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeInference() {
	c.Inference.APIKey = strings.TrimSpace(c.Inference.APIKey)
	if c.Inference.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Inference.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
			c.Inference.APIKey = strings.TrimSpace(value)
		}
	}
	c.Inference.BaseURL = strings.TrimRight(strings.TrimSpace(c.Inference.BaseURL), "/")
	if c.Inference.BaseURL == "" {
		c.Inference.BaseURL = defaultInferenceBaseURL
	}
	c.Inference.Model = strings.TrimSpace(c.Inference.Model)
	if c.Inference.Model == "" {
		c.Inference.Model = defaultInferenceModel
	}
	if c.Inference.TimeoutSeconds <= 0 {
		c.Inference.TimeoutSeconds = defaultInferenceTimeout
	}
	if c.Inference.PollIntervalSeconds <= 0 {
		c.Inference.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Inference.PollTimeoutSeconds <= 0 {
		c.Inference.PollTimeoutSeconds = defaultPollTimeoutSeconds
	}
	if c.Inference.RetryAttempts <= 0 {
		c.Inference.RetryAttempts = defaultRetryAttempts
	}
}

func (c *Config) normalizeUsage() {
	c.Usage.Tier = strings.ToLower(strings.TrimSpace(c.Usage.Tier))
	if c.Usage.Tier == "" {
		c.Usage.Tier = defaultUsageTier
	}
	if c.Usage.HistoryLimit <= 0 {
		c.Usage.HistoryLimit = defaultHistoryLimit
	}
}

func (c *Config) normalizeProcessing() {
	if c.Processing.MaxChunkSizeMB <= 0 {
		c.Processing.MaxChunkSizeMB = defaultMaxChunkSizeMB
	}
	if c.Processing.MaxFileSizeMB < 0 {
		c.Processing.MaxFileSizeMB = 0
	}
	c.Processing.SupportedFormats = normalizeExtensions(c.Processing.SupportedFormats, defaultSupportedFormats)
	c.Processing.AcceptedFormats = normalizeExtensions(c.Processing.AcceptedFormats, defaultAcceptedFormats)
	c.Processing.TranscodeBitrate = strings.TrimSpace(c.Processing.TranscodeBitrate)
	if c.Processing.TranscodeBitrate == "" {
		c.Processing.TranscodeBitrate = defaultTranscodeBitrate
	}
	if c.Processing.Concurrency <= 0 {
		c.Processing.Concurrency = defaultConcurrency
	}
}

func (c *Config) normalizeSource() {
	c.Source.DriveAPIKey = strings.TrimSpace(c.Source.DriveAPIKey)
	if c.Source.DriveAPIKey == "" {
		if value, ok := os.LookupEnv("GOOGLE_DRIVE_API_KEY"); ok {
			c.Source.DriveAPIKey = strings.TrimSpace(value)
		}
	}
	c.Source.DriveBaseURL = strings.TrimRight(strings.TrimSpace(c.Source.DriveBaseURL), "/")
	if c.Source.DriveBaseURL == "" {
		c.Source.DriveBaseURL = defaultDriveBaseURL
	}
	if c.Source.ListingCacheSize <= 0 {
		c.Source.ListingCacheSize = defaultListingCacheSize
	}
	if c.Source.ListingCacheTTLSeconds <= 0 {
		c.Source.ListingCacheTTLSeconds = defaultListingCacheTTLSeconds
	}
	if c.Source.RequestTimeout <= 0 {
		c.Source.RequestTimeout = defaultSourceRequestTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.SlackWebhookURL = strings.TrimSpace(c.Notifications.SlackWebhookURL)
	if c.Notifications.SlackWebhookURL == "" {
		if value, ok := os.LookupEnv("SLACK_WEBHOOK_URL"); ok {
			c.Notifications.SlackWebhookURL = strings.TrimSpace(value)
		}
	}
	c.Notifications.SlackChannel = strings.TrimSpace(c.Notifications.SlackChannel)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func normalizeExtensions(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".")
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
