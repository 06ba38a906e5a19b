package preflight

import (
	"context"
	"fmt"

	"mediabatch/internal/config"
	"mediabatch/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Options gates the slower checks.
type Options struct {
	// CheckInference contacts the model API; skipped when false.
	CheckInference bool
}

// RunAll executes the preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
	}
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}

	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, fromDependency(status))
	}

	if opts.CheckInference {
		results = append(results, CheckInference(ctx, cfg.GetInference()))
	}
	results = append(results, CheckDriveFromConfig(cfg), CheckNotificationsFromConfig(cfg))
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

func fromDependency(status deps.Status) Result {
	if status.Available {
		return Result{Name: status.Name, Passed: true, Detail: status.Command}
	}
	detail := status.Detail
	if detail == "" {
		detail = fmt.Sprintf("%s not found", status.Command)
	}
	return Result{Name: status.Name, Passed: status.Optional, Detail: detail}
}
