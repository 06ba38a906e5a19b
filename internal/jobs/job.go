package jobs

import (
	"slices"
	"time"

	"mediabatch/internal/transcript"
)

// SourceSpec is what a caller submits. Zero MaxFileSizeMB and empty OutputDir
// fall back to the runner defaults.
type SourceSpec struct {
	Ref           string `json:"source"`
	Recursive     bool   `json:"recursive"`
	MaxFileSizeMB int    `json:"max_file_size_mb,omitempty"`
	OutputDir     string `json:"output_dir,omitempty"`
}

// Job is the full record of one batch run. ItemCount stays nil until the
// listing completes. Outcomes are indexed by listing position; slots for items
// still in flight hold the zero Outcome.
type Job struct {
	ID           string               `json:"job_id"`
	Status       Status               `json:"status"`
	Source       SourceSpec           `json:"source"`
	ItemCount    *int                 `json:"total_files"`
	Processed    int                  `json:"processed_files"`
	Succeeded    int                  `json:"successful"`
	Failed       int                  `json:"failed"`
	Skipped      int                  `json:"skipped"`
	Outcomes     []transcript.Outcome `json:"results,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
	Error        string               `json:"error,omitempty"`
	CombinedPath string               `json:"combined_path,omitempty"`
	LogPath      string               `json:"log_path,omitempty"`
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (j Job) Clone() Job {
	out := j
	if j.ItemCount != nil {
		count := *j.ItemCount
		out.ItemCount = &count
	}
	if j.StartedAt != nil {
		started := *j.StartedAt
		out.StartedAt = &started
	}
	if j.FinishedAt != nil {
		finished := *j.FinishedAt
		out.FinishedAt = &finished
	}
	out.Outcomes = slices.Clone(j.Outcomes)
	return out
}

// Progress returns processed items as a percentage, or 0 before listing.
func (j Job) Progress() float64 {
	if j.ItemCount == nil || *j.ItemCount == 0 {
		if j.Status == StatusCompleted {
			return 100
		}
		return 0
	}
	return float64(j.Processed) / float64(*j.ItemCount) * 100
}

// Summary is the list view of a job.
type Summary struct {
	ID        string    `json:"job_id"`
	Status    Status    `json:"status"`
	Source    string    `json:"source"`
	ItemCount *int      `json:"total_files"`
	Processed int       `json:"processed_files"`
	Succeeded int       `json:"successful"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// Summarize builds the list view.
func (j Job) Summarize() Summary {
	clone := j.Clone()
	return Summary{
		ID:        clone.ID,
		Status:    clone.Status,
		Source:    clone.Source.Ref,
		ItemCount: clone.ItemCount,
		Processed: clone.Processed,
		Succeeded: clone.Succeeded,
		Failed:    clone.Failed,
		CreatedAt: clone.CreatedAt,
	}
}

// Results is the detailed view of a completed job.
type Results struct {
	ID           string               `json:"job_id"`
	Status       Status               `json:"status"`
	TotalFiles   int                  `json:"total_files"`
	Successful   int                  `json:"successful"`
	Failed       int                  `json:"failed"`
	OutputDir    string               `json:"output_dir,omitempty"`
	CombinedPath string               `json:"combined_path,omitempty"`
	Results      []transcript.Outcome `json:"results"`
}
