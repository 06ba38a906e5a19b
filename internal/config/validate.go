package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const maxConcurrency = 16

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateUsage(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

// RequireInferenceKey reports a configuration error when no model API key is available.
// Only commands that contact the model call this, so read-only commands work without a key.
func (c *Config) RequireInferenceKey() error {
	if strings.TrimSpace(c.Inference.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("inference.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'mediabatch config init')", defaultPath)
}

func (c *Config) validateInference() error {
	if err := ensurePositiveMap(map[string]int{
		"inference.timeout_seconds":       c.Inference.TimeoutSeconds,
		"inference.poll_interval_seconds": c.Inference.PollIntervalSeconds,
		"inference.poll_timeout_seconds":  c.Inference.PollTimeoutSeconds,
		"inference.retry_attempts":        c.Inference.RetryAttempts,
	}); err != nil {
		return err
	}
	if c.Inference.PollTimeoutSeconds < c.Inference.PollIntervalSeconds {
		return errors.New("inference.poll_timeout_seconds must be at least inference.poll_interval_seconds")
	}
	if err := validateURL("inference.base_url", c.Inference.BaseURL); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUsage() error {
	switch c.Usage.Tier {
	case "free", "paid":
	default:
		return fmt.Errorf("usage.tier must be one of free, paid (got %q)", c.Usage.Tier)
	}
	if c.Usage.HistoryLimit <= 0 {
		return errors.New("usage.history_limit must be positive")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.MaxChunkSizeMB <= 0 {
		return errors.New("processing.max_chunk_size_mb must be positive")
	}
	if c.Processing.Concurrency > maxConcurrency {
		return fmt.Errorf("processing.concurrency must be <= %d", maxConcurrency)
	}
	supported := make(map[string]struct{}, len(c.Processing.SupportedFormats))
	for _, ext := range c.Processing.SupportedFormats {
		supported[ext] = struct{}{}
	}
	for _, ext := range c.Processing.AcceptedFormats {
		if _, ok := supported[ext]; !ok {
			return fmt.Errorf("processing.accepted_formats entry %q must also appear in processing.supported_formats", ext)
		}
	}
	return nil
}

func (c *Config) validateSource() error {
	return validateURL("source.drive_base_url", c.Source.DriveBaseURL)
}

func (c *Config) validateNotifications() error {
	if c.Notifications.SlackWebhookURL != "" {
		if err := validateURL("notifications.slack_webhook_url", c.Notifications.SlackWebhookURL); err != nil {
			return err
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func validateURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", key)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
