package api

import (
	"encoding/json"
	"strings"
	"time"

	"mediabatch/internal/jobs"
	"mediabatch/internal/preflight"
	"mediabatch/internal/usage"
)

// TranscribeRequest is the body of POST /transcribe. Recursive and
// MaxFileSizeMB fall back to configured defaults when omitted.
type TranscribeRequest struct {
	Source        string `json:"source"`
	Recursive     *bool  `json:"recursive,omitempty"`
	MaxFileSizeMB *int   `json:"max_file_size_mb,omitempty"`
	OutputDir     string `json:"output_dir,omitempty"`
}

// UnmarshalJSON accepts google_drive_link as an alias for source.
func (r *TranscribeRequest) UnmarshalJSON(data []byte) error {
	type plain TranscribeRequest
	var raw struct {
		plain
		GoogleDriveLink string `json:"google_drive_link"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = TranscribeRequest(raw.plain)
	if strings.TrimSpace(r.Source) == "" {
		r.Source = raw.GoogleDriveLink
	}
	return nil
}

// Spec converts the request into a job source specification.
func (r TranscribeRequest) Spec(defaultRecursive bool) jobs.SourceSpec {
	spec := jobs.SourceSpec{
		Ref:       strings.TrimSpace(r.Source),
		Recursive: defaultRecursive,
		OutputDir: strings.TrimSpace(r.OutputDir),
	}
	if r.Recursive != nil {
		spec.Recursive = *r.Recursive
	}
	if r.MaxFileSizeMB != nil {
		spec.MaxFileSizeMB = *r.MaxFileSizeMB
	}
	return spec
}

// TranscribeResponse acknowledges a queued job.
type TranscribeResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobStatus is the GET /transcribe/{id} payload.
type JobStatus struct {
	JobID           string     `json:"job_id"`
	Status          string     `json:"status"`
	Message         string     `json:"message"`
	Source          string     `json:"source"`
	TotalFiles      *int       `json:"total_files"`
	ProcessedFiles  int        `json:"processed_files"`
	Successful      int        `json:"successful"`
	Failed          int        `json:"failed"`
	Skipped         int        `json:"skipped"`
	ProgressPercent float64    `json:"progress_percent"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Error           string     `json:"error,omitempty"`
	CombinedPath    string     `json:"combined_path,omitempty"`
	LogPath         string     `json:"log_path,omitempty"`
}

// JobListResponse is the GET /jobs payload.
type JobListResponse struct {
	Jobs  []jobs.Summary `json:"jobs"`
	Total int            `json:"total"`
}

// TierRequest is the body of POST /usage/tier.
type TierRequest struct {
	Tier string `json:"tier"`
}

// TierResponse confirms a tier change with refreshed stats.
type TierResponse struct {
	Message string      `json:"message"`
	Stats   usage.Stats `json:"stats"`
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is written for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the GET / payload.
type HealthResponse struct {
	Status     string             `json:"status"`
	Service    string             `json:"service"`
	Version    string             `json:"version"`
	Running    bool               `json:"running"`
	ActiveJobs int                `json:"active_jobs"`
	Model      string             `json:"model"`
	Checks     []preflight.Result `json:"checks"`
}
