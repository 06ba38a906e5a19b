package chunking

import (
	"fmt"
	"math"
)

// Chunk is one contiguous window of an item. Start and Duration are seconds.
type Chunk struct {
	Index          int     `json:"index"`
	Start          float64 `json:"start"`
	Duration       float64 `json:"duration"`
	EstimatedBytes int64   `json:"estimated_bytes"`
}

// End returns the window's exclusive end offset.
func (c Chunk) End() float64 {
	return c.Start + c.Duration
}

// Plan is the ordered set of windows covering an item.
type Plan struct {
	Chunks        []Chunk `json:"chunks"`
	TotalDuration float64 `json:"total_duration"`
	// Split is true when the item must be cut into more than one window.
	Split bool `json:"split"`
	// Degraded marks an oversized item that could not be split because its
	// duration was unknown; it is sent whole.
	Degraded bool `json:"degraded"`
}

// Len returns the number of windows.
func (p Plan) Len() int {
	return len(p.Chunks)
}

// String summarizes the plan for logs.
func (p Plan) String() string {
	switch {
	case p.Degraded:
		return fmt.Sprintf("1 chunk (degraded, %.1fs)", p.TotalDuration)
	case p.Split:
		return fmt.Sprintf("%d chunks of ~%.1fs", len(p.Chunks), p.Chunks[0].Duration)
	default:
		return fmt.Sprintf("1 chunk (%.1fs)", p.TotalDuration)
	}
}

// PlanItem decides how an item of sizeBytes and durationSeconds is cut so
// that no window is estimated above maxChunkBytes. Items at or under the
// ceiling produce a single window. Larger items are cut into size/max+1
// windows of floor(duration/n) seconds, the last window absorbing the
// remainder. A duration that is not a positive finite number cannot be cut,
// so the item is returned as one degraded window.
func PlanItem(sizeBytes int64, durationSeconds float64, maxChunkBytes int64) Plan {
	validDuration := durationSeconds > 0 && !math.IsInf(durationSeconds, 0) && !math.IsNaN(durationSeconds)
	total := durationSeconds
	if !validDuration {
		total = 0
	}

	if maxChunkBytes <= 0 || sizeBytes <= maxChunkBytes {
		return single(sizeBytes, total, false)
	}
	if !validDuration {
		return single(sizeBytes, total, true)
	}

	n := int(sizeBytes/maxChunkBytes) + 1
	window := math.Floor(total / float64(n))
	if window <= 0 {
		// Shorter than one second per window; not worth splitting.
		return single(sizeBytes, total, true)
	}

	bytesPerSecond := float64(sizeBytes) / total
	chunks := make([]Chunk, n)
	for i := range chunks {
		start := float64(i) * window
		length := window
		if i == n-1 {
			length = total - start
		}
		chunks[i] = Chunk{
			Index:          i,
			Start:          start,
			Duration:       length,
			EstimatedBytes: int64(math.Round(length * bytesPerSecond)),
		}
	}
	return Plan{Chunks: chunks, TotalDuration: total, Split: true}
}

func single(sizeBytes int64, total float64, degraded bool) Plan {
	return Plan{
		Chunks:        []Chunk{{Index: 0, Start: 0, Duration: total, EstimatedBytes: sizeBytes}},
		TotalDuration: total,
		Degraded:      degraded,
	}
}
