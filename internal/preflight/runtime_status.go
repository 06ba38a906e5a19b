package preflight

import (
	"strings"

	"mediabatch/internal/config"
)

// CheckDriveFromConfig reports whether remote folders can be listed.
// Drive access is optional, so a missing key still passes.
func CheckDriveFromConfig(cfg *config.Config) Result {
	const name = "Google Drive"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Source.DriveAPIKey) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled (local folders only)"}
	}
	return Result{Name: name, Passed: true, Detail: "API key configured (" + cfg.Source.DriveBaseURL + ")"}
}

// CheckNotificationsFromConfig summarizes the configured notification backends.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	var backends []string
	if cfg.Notifications.NtfyTopic != "" {
		backends = append(backends, "ntfy")
	}
	if cfg.Notifications.SlackWebhookURL != "" {
		backends = append(backends, "slack")
	}
	if len(backends) == 0 {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(backends, ", ")}
}
