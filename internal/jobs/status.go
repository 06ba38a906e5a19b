package jobs

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusListing    Status = "listing"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusQueued:     {StatusListing, StatusFailed},
	StatusListing:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether the job is listing or processing.
func (s Status) Active() bool {
	return s == StatusListing || s == StatusProcessing
}

// ParseStatus converts a stored status string.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusQueued, StatusListing, StatusProcessing, StatusCompleted, StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown job status %q", value)
	}
}
