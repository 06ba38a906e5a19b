package api

import (
	"fmt"

	"mediabatch/internal/jobs"
)

// FromJob builds the status view of a job.
func FromJob(job jobs.Job) JobStatus {
	return JobStatus{
		JobID:           job.ID,
		Status:          string(job.Status),
		Message:         statusMessage(job),
		Source:          job.Source.Ref,
		TotalFiles:      job.ItemCount,
		ProcessedFiles:  job.Processed,
		Successful:      job.Succeeded,
		Failed:          job.Failed,
		Skipped:         job.Skipped,
		ProgressPercent: job.Progress(),
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		FinishedAt:      job.FinishedAt,
		Error:           job.Error,
		CombinedPath:    job.CombinedPath,
		LogPath:         job.LogPath,
	}
}

// FromSummaries wraps job summaries in the list payload.
func FromSummaries(summaries []jobs.Summary) JobListResponse {
	if summaries == nil {
		summaries = []jobs.Summary{}
	}
	return JobListResponse{Jobs: summaries, Total: len(summaries)}
}

func statusMessage(job jobs.Job) string {
	switch job.Status {
	case jobs.StatusQueued:
		return "Job queued"
	case jobs.StatusListing:
		return "Listing source files"
	case jobs.StatusProcessing:
		if job.ItemCount != nil {
			return fmt.Sprintf("Processing %d of %d files", job.Processed, *job.ItemCount)
		}
		return "Processing files"
	case jobs.StatusCompleted:
		return fmt.Sprintf("Completed: %d succeeded, %d failed", job.Succeeded, job.Failed)
	case jobs.StatusFailed:
		return "Job failed: " + job.Error
	default:
		return "Job status: " + string(job.Status)
	}
}
