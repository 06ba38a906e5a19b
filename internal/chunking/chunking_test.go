package chunking_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"mediabatch/internal/chunking"
	"mediabatch/internal/transcript"
)

const mb = int64(1024 * 1024)

func TestPlanItemSingleChunkWhenUnderCeiling(t *testing.T) {
	plan := chunking.PlanItem(20*mb, 600, 20*mb)
	if plan.Split || plan.Degraded || plan.Len() != 1 {
		t.Fatalf("expected single chunk plan, got %+v", plan)
	}
	if plan.Chunks[0].Duration != 600 || plan.Chunks[0].EstimatedBytes != 20*mb {
		t.Fatalf("unexpected chunk: %+v", plan.Chunks[0])
	}
}

func TestPlanItemSplitsOversizedItem(t *testing.T) {
	// 50MB over a 20MB ceiling -> 50/20+1 = 3 windows of floor(1000/3) = 333s.
	plan := chunking.PlanItem(50*mb, 1000, 20*mb)
	if !plan.Split || plan.Degraded {
		t.Fatalf("expected split plan, got %+v", plan)
	}
	if plan.Len() != 3 {
		t.Fatalf("expected 3 chunks, got %d", plan.Len())
	}
	wantStarts := []float64{0, 333, 666}
	wantDurations := []float64{333, 333, 334}
	for i, chunk := range plan.Chunks {
		if chunk.Index != i || chunk.Start != wantStarts[i] || chunk.Duration != wantDurations[i] {
			t.Fatalf("chunk %d: got %+v", i, chunk)
		}
		if chunk.EstimatedBytes > 20*mb {
			t.Fatalf("chunk %d estimated above ceiling: %d", i, chunk.EstimatedBytes)
		}
	}
}

func TestPlanItemWindowsAreContiguous(t *testing.T) {
	plan := chunking.PlanItem(97*mb, 3725.4, 10*mb)
	var covered float64
	for i, chunk := range plan.Chunks {
		if chunk.Start != covered {
			t.Fatalf("chunk %d starts at %.3f, expected %.3f", i, chunk.Start, covered)
		}
		covered = chunk.End()
	}
	if math.Abs(covered-3725.4) > 1e-9 {
		t.Fatalf("windows cover %.3f, expected 3725.4", covered)
	}
}

func TestPlanItemDegradesWithoutDuration(t *testing.T) {
	for _, duration := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		plan := chunking.PlanItem(50*mb, duration, 20*mb)
		if !plan.Degraded || plan.Split || plan.Len() != 1 {
			t.Fatalf("duration %v: expected degraded single chunk, got %+v", duration, plan)
		}
		if plan.TotalDuration != 0 {
			t.Fatalf("duration %v: expected zero total, got %v", duration, plan.TotalDuration)
		}
	}
}

func TestPlanItemSmallItemWithUnknownDurationIsNotDegraded(t *testing.T) {
	plan := chunking.PlanItem(mb, 0, 20*mb)
	if plan.Degraded || plan.Len() != 1 {
		t.Fatalf("expected plain single chunk, got %+v", plan)
	}
}

func TestPlanString(t *testing.T) {
	if got := chunking.PlanItem(50*mb, 1000, 20*mb).String(); !strings.HasPrefix(got, "3 chunks") {
		t.Fatalf("unexpected summary %q", got)
	}
	if got := chunking.PlanItem(50*mb, 0, 20*mb).String(); !strings.Contains(got, "degraded") {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestMergeEmptyAndSingle(t *testing.T) {
	if got := chunking.Merge(nil); got.Transcription != "" || got.NumChunks != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	only := transcript.Result{Transcription: "solo", Language: "en", NumChunks: 0}
	if got := chunking.Merge([]transcript.Result{only}); got.Transcription != "solo" || got.NumChunks != 0 {
		t.Fatalf("expected single result unchanged, got %+v", got)
	}
}

func TestMergeCombinesChunks(t *testing.T) {
	results := []transcript.Result{
		{
			Transcription:  "First part.",
			Language:       "english",
			Model:          "gemini-a",
			Speakers:       []string{"Speaker 1", "Speaker 2"},
			KeyTopics:      []string{"intro"},
			Summary:        "Opening.",
			Timestamps:     []transcript.Segment{{Time: "00:00", Text: "First"}},
			InputTokens:    100,
			OutputTokens:   10,
			ProcessingTime: 1.5,
			FileSizeMB:     2,
			Extra:          map[string]json.RawMessage{"mood": json.RawMessage(`"calm"`)},
		},
		{
			Transcription:  "Second part.",
			Language:       "french",
			Model:          "gemini-b",
			Speakers:       []string{"Speaker 2", "Speaker 3"},
			KeyTopics:      []string{"outro", "intro"},
			Timestamps:     []transcript.Segment{{Time: "05:00", Text: "Second"}},
			InputTokens:    200,
			OutputTokens:   20,
			ProcessingTime: 2.5,
			FileSizeMB:     3,
			Extra: map[string]json.RawMessage{
				"mood":  json.RawMessage(`"tense"`),
				"notes": json.RawMessage(`"x"`),
			},
		},
	}
	merged := chunking.Merge(results)

	if merged.Transcription != "First part. Second part." {
		t.Fatalf("unexpected text %q", merged.Transcription)
	}
	if merged.Summary != "Opening." {
		t.Fatalf("unexpected summary %q", merged.Summary)
	}
	if merged.Language != "english" || merged.Model != "gemini-a" {
		t.Fatalf("expected first chunk language/model, got %q/%q", merged.Language, merged.Model)
	}
	if got := strings.Join(merged.Speakers, ","); got != "Speaker 1,Speaker 2,Speaker 3" {
		t.Fatalf("unexpected speakers %q", got)
	}
	if got := strings.Join(merged.KeyTopics, ","); got != "intro,outro" {
		t.Fatalf("unexpected topics %q", got)
	}
	if len(merged.Timestamps) != 2 || merged.Timestamps[1].Text != "Second" {
		t.Fatalf("unexpected timestamps %+v", merged.Timestamps)
	}
	if merged.InputTokens != 300 || merged.OutputTokens != 30 {
		t.Fatalf("unexpected tokens %d/%d", merged.InputTokens, merged.OutputTokens)
	}
	if merged.ProcessingTime != 4 || merged.FileSizeMB != 5 {
		t.Fatalf("unexpected sums %v/%v", merged.ProcessingTime, merged.FileSizeMB)
	}
	if merged.NumChunks != 2 {
		t.Fatalf("expected 2 chunks, got %d", merged.NumChunks)
	}
	if string(merged.Extra["mood"]) != `"calm"` || string(merged.Extra["notes"]) != `"x"` {
		t.Fatalf("unexpected extras %v", merged.Extra)
	}
}

func TestMergeJoinsEveryChunkText(t *testing.T) {
	merged := chunking.Merge([]transcript.Result{
		{Transcription: "Opening."},
		{Transcription: ""},
		{Transcription: "Closing. "},
	})
	if merged.Transcription != "Opening.  Closing. " {
		t.Fatalf("expected raw texts joined in order, got %q", merged.Transcription)
	}
}
