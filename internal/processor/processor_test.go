package processor_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mediabatch/internal/media"
	"mediabatch/internal/processor"
	"mediabatch/internal/services"
	"mediabatch/internal/source"
	"mediabatch/internal/transcript"
	"mediabatch/internal/usage"
)

type fakeSource struct {
	err  error
	dirs []string
}

func (f *fakeSource) Materialize(_ context.Context, item source.Item, dir string) (string, error) {
	f.dirs = append(f.dirs, dir)
	if f.err != nil {
		return "", f.err
	}
	return item.Locator, nil
}

type clipCall struct {
	start    float64
	duration float64
}

type fakeMedia struct {
	duration    float64
	durationErr error
	transcoded  []string
	clips       []clipCall
}

func (f *fakeMedia) Duration(context.Context, string) (float64, error) {
	return f.duration, f.durationErr
}

func (f *fakeMedia) Transcode(_ context.Context, path string, target media.Target) (string, error) {
	f.transcoded = append(f.transcoded, path)
	out := filepath.Join(target.Dir, "converted_"+transcript.Stem(path)+".mp3")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return out, os.WriteFile(out, data, 0o644)
}

func (f *fakeMedia) Clip(_ context.Context, _ string, start, duration float64, out string) (string, error) {
	f.clips = append(f.clips, clipCall{start: start, duration: duration})
	return out, os.WriteFile(out, []byte("clip"), 0o644)
}

type fakeInference struct {
	mu     sync.Mutex
	paths  []string
	failOn int
}

func (f *fakeInference) Submit(_ context.Context, path, _ string) (transcript.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	call := len(f.paths)
	if f.failOn == call {
		return transcript.Result{}, services.Wrap(services.ErrInference, "gemini", "generate", "quota exceeded", nil)
	}
	return transcript.Result{
		Transcription:  fmt.Sprintf("Part %d.", call),
		Language:       "en",
		Speakers:       []string{"Speaker 1"},
		InputTokens:    100,
		OutputTokens:   10,
		ProcessingTime: float64(call + 2),
		FileSizeMB:     0.5 * float64(call),
		Model:          "gemini-test",
		FileName:       filepath.Base(path),
	}, nil
}

type fakeUsage struct {
	calls   int
	sizesMB []float64
}

func (f *fakeUsage) RecordCall(_ context.Context, _, _ int64, _ string, sizeMB float64) usage.LimitStatus {
	f.calls++
	f.sizesMB = append(f.sizesMB, sizeMB)
	return usage.LimitStatus{Status: "ok"}
}

type harness struct {
	source    *fakeSource
	media     *fakeMedia
	inference *fakeInference
	usage     *fakeUsage
	ws        processor.Workspace
	opts      processor.Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	base := t.TempDir()
	return &harness{
		source:    &fakeSource{},
		media:     &fakeMedia{duration: 300},
		inference: &fakeInference{},
		usage:     &fakeUsage{},
		ws: processor.Workspace{
			JobID:       "job-1",
			DownloadDir: filepath.Join(base, "downloads", "job-1"),
			TempDir:     filepath.Join(base, "tmp"),
			OutputDir:   filepath.Join(base, "out"),
		},
		opts: processor.Options{
			MaxChunkBytes:    1024,
			AcceptedFormats:  []string{"mp3", "wav", "m4a"},
			CleanupTempFiles: true,
			Resume:           true,
		},
	}
}

func (h *harness) processor() *processor.Processor {
	return processor.New(h.opts, processor.Dependencies{
		Source:    h.source,
		Media:     h.media,
		Inference: h.inference,
		Usage:     h.usage,
		Clock:     func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local) },
	})
}

func writeItem(t *testing.T, name string, size int) source.Item {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Repeat("a", size)), 0o644); err != nil {
		t.Fatalf("write item: %v", err)
	}
	return source.Item{Locator: path, Name: name, RelPath: name, Size: int64(size), Origin: source.OriginLocal}
}

func TestProcessSingleChunkWritesArtifacts(t *testing.T) {
	h := newHarness(t)
	item := writeItem(t, "lecture.mp3", 512)

	outcome := h.processor().Process(context.Background(), h.ws, 0, item)
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.Resumed {
		t.Fatal("expected fresh processing")
	}
	if outcome.Result.FileName != "lecture.mp3" || outcome.Result.Transcription != "Part 1." {
		t.Fatalf("unexpected result: %+v", outcome.Result)
	}
	if len(h.media.clips) != 0 || len(h.media.transcoded) != 0 {
		t.Fatalf("expected no clip or transcode, got clips=%v transcoded=%v", h.media.clips, h.media.transcoded)
	}
	if h.usage.calls != 1 {
		t.Fatalf("expected one metered call, got %d", h.usage.calls)
	}
	if h.source.dirs[0] != "" {
		t.Fatalf("expected local item to be used in place, got dir %q", h.source.dirs[0])
	}
	store := transcript.ArtifactStore{Dir: h.ws.OutputDir}
	if !store.Exists("lecture.mp3") {
		t.Fatal("expected both artifacts to be written")
	}
}

func TestProcessSplitsOversizedItems(t *testing.T) {
	h := newHarness(t)
	item := writeItem(t, "long.mp3", 2500)

	outcome := h.processor().Process(context.Background(), h.ws, 3, item)
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.Index != 3 {
		t.Fatalf("expected index 3, got %d", outcome.Index)
	}
	wantStarts := []float64{0, 100, 200}
	if len(h.media.clips) != len(wantStarts) {
		t.Fatalf("expected %d clips, got %v", len(wantStarts), h.media.clips)
	}
	for i, clip := range h.media.clips {
		if clip.start != wantStarts[i] || clip.duration != 100 {
			t.Fatalf("clip %d: got %+v", i, clip)
		}
	}
	for _, path := range h.inference.paths {
		if !strings.Contains(filepath.Base(path), "chunk_") {
			t.Fatalf("expected inference on chunk files, got %q", path)
		}
	}
	if h.usage.calls != 3 {
		t.Fatalf("expected three metered calls, got %d", h.usage.calls)
	}
	result := outcome.Result
	if result.Transcription != "Part 1. Part 2. Part 3." {
		t.Fatalf("unexpected merged text %q", result.Transcription)
	}
	if result.NumChunks != 3 || result.InputTokens != 300 {
		t.Fatalf("unexpected merge totals: chunks=%d input=%d", result.NumChunks, result.InputTokens)
	}
	if len(result.Speakers) != 1 {
		t.Fatalf("expected speakers to be unioned, got %v", result.Speakers)
	}
}

func TestProcessSplitItemKeepsChunkSums(t *testing.T) {
	h := newHarness(t)
	item := writeItem(t, "long.mp3", 2500)

	outcome := h.processor().Process(context.Background(), h.ws, 0, item)
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	result := outcome.Result
	if result.ProcessingTime != 12 {
		t.Fatalf("expected processing time summed over chunks (3+4+5), got %v", result.ProcessingTime)
	}
	if result.FileSizeMB != 3 {
		t.Fatalf("expected size summed over chunks (0.5+1+1.5), got %v", result.FileSizeMB)
	}
	if result.FileName != "long.mp3" || result.Model != "gemini-test" {
		t.Fatalf("unexpected identity fields: %+v", result)
	}
}

func TestProcessDegradesWhenDurationUnknown(t *testing.T) {
	h := newHarness(t)
	h.media.durationErr = errors.New("ffprobe missing")
	item := writeItem(t, "long.mp3", 2500)

	outcome := h.processor().Process(context.Background(), h.ws, 0, item)
	if !outcome.Succeeded() {
		t.Fatalf("expected success in degraded mode, got %+v", outcome)
	}
	if len(h.media.clips) != 0 || len(h.inference.paths) != 1 {
		t.Fatalf("expected a single whole-file request, got clips=%d calls=%d", len(h.media.clips), len(h.inference.paths))
	}
}

func TestProcessTranscodesUnacceptedFormats(t *testing.T) {
	h := newHarness(t)
	item := writeItem(t, "voice.ogg", 64)

	outcome := h.processor().Process(context.Background(), h.ws, 0, item)
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(h.media.transcoded) != 1 {
		t.Fatalf("expected one transcode, got %v", h.media.transcoded)
	}
	if got := filepath.Base(h.inference.paths[0]); got != "converted_voice.mp3" {
		t.Fatalf("expected converted file to be submitted, got %q", got)
	}
	if _, err := os.Stat(item.Locator); err != nil {
		t.Fatalf("original file must survive: %v", err)
	}
}

func TestProcessInferenceFailureBecomesFailure(t *testing.T) {
	h := newHarness(t)
	h.inference.failOn = 2
	item := writeItem(t, "long.mp3", 2500)

	outcome := h.processor().Process(context.Background(), h.ws, 1, item)
	if outcome.Status != transcript.StatusFailure {
		t.Fatalf("expected failure, got %+v", outcome)
	}
	if !strings.Contains(outcome.Reason, "chunk 2/3") || !strings.Contains(outcome.Reason, "quota exceeded") {
		t.Fatalf("unexpected reason %q", outcome.Reason)
	}
	if outcome.Result != nil {
		t.Fatal("failure must not carry a result")
	}
	if h.usage.calls != 1 {
		t.Fatalf("expected only the successful chunk to be metered, got %d", h.usage.calls)
	}
	if (transcript.ArtifactStore{Dir: h.ws.OutputDir}).Exists("long.mp3") {
		t.Fatal("expected no artifacts on failure")
	}
}

func TestProcessMaterializeFailure(t *testing.T) {
	h := newHarness(t)
	h.source.err = services.Wrap(services.ErrSourceUnavailable, "drive", "download", "403", nil)
	item := source.Item{Locator: "file-id", Name: "remote.mp3", Origin: source.OriginDrive}

	outcome := h.processor().Process(context.Background(), h.ws, 0, item)
	if outcome.Status != transcript.StatusFailure || !strings.Contains(outcome.Reason, "403") {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if h.source.dirs[0] != h.ws.DownloadDir {
		t.Fatalf("expected remote item to download into %q, got %q", h.ws.DownloadDir, h.source.dirs[0])
	}
}

func TestProcessResumesFromArtifacts(t *testing.T) {
	h := newHarness(t)
	item := writeItem(t, "lecture.mp3", 512)
	proc := h.processor()

	first := proc.Process(context.Background(), h.ws, 0, item)
	if !first.Succeeded() || first.Resumed {
		t.Fatalf("unexpected first outcome %+v", first)
	}
	second := proc.Process(context.Background(), h.ws, 0, item)
	if !second.Succeeded() || !second.Resumed {
		t.Fatalf("expected resumed outcome, got %+v", second)
	}
	if second.Result.Transcription != first.Result.Transcription {
		t.Fatalf("resumed result differs: %q vs %q", second.Result.Transcription, first.Result.Transcription)
	}
	if len(h.inference.paths) != 1 || h.usage.calls != 1 {
		t.Fatalf("expected no further model calls, got %d calls / %d metered", len(h.inference.paths), h.usage.calls)
	}
}

func TestProcessKeepsSameNamedItemsApart(t *testing.T) {
	h := newHarness(t)
	proc := h.processor()
	first := writeItem(t, "lecture.mp3", 512)
	first.RelPath = "week1/lecture.mp3"
	second := writeItem(t, "lecture.mp3", 512)
	second.RelPath = "week2/lecture.mp3"
	other := writeItem(t, "lecture.wav", 512)

	for i, item := range []source.Item{first, second, other} {
		outcome := proc.Process(context.Background(), h.ws, i, item)
		if !outcome.Succeeded() || outcome.Resumed {
			t.Fatalf("item %s: expected fresh success, got %+v", item.Key(), outcome)
		}
		if want := fmt.Sprintf("Part %d.", i+1); outcome.Result.Transcription != want {
			t.Fatalf("item %s: expected %q, got %q", item.Key(), want, outcome.Result.Transcription)
		}
	}
	if len(h.inference.paths) != 3 {
		t.Fatalf("expected one model call per item, got %d", len(h.inference.paths))
	}
	store := transcript.ArtifactStore{Dir: h.ws.OutputDir}
	for _, key := range []string{"week1/lecture.mp3", "week2/lecture.mp3", "lecture.wav"} {
		if !store.Exists(key) {
			t.Fatalf("expected artifacts for %s", key)
		}
	}
	again := proc.Process(context.Background(), h.ws, 1, second)
	if !again.Resumed || again.Result.Transcription != "Part 2." {
		t.Fatalf("expected week2 item to resume its own transcript, got %+v", again)
	}
}

func TestProcessReprocessesCorruptArtifacts(t *testing.T) {
	h := newHarness(t)
	item := writeItem(t, "lecture.mp3", 512)
	store := transcript.ArtifactStore{Dir: h.ws.OutputDir}
	jsonPath, textPath := store.Paths(item.Key())
	if err := os.MkdirAll(h.ws.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jsonPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(textPath, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	outcome := h.processor().Process(context.Background(), h.ws, 0, item)
	if !outcome.Succeeded() || outcome.Resumed {
		t.Fatalf("expected fresh success, got %+v", outcome)
	}
	if _, err := store.Load(item.Key()); err != nil {
		t.Fatalf("expected artifact to be rewritten: %v", err)
	}
}

func TestProcessResumeDisabled(t *testing.T) {
	h := newHarness(t)
	h.opts.Resume = false
	item := writeItem(t, "lecture.mp3", 512)
	proc := h.processor()

	proc.Process(context.Background(), h.ws, 0, item)
	outcome := proc.Process(context.Background(), h.ws, 0, item)
	if outcome.Resumed || len(h.inference.paths) != 2 {
		t.Fatalf("expected reprocessing with resume disabled, got resumed=%v calls=%d", outcome.Resumed, len(h.inference.paths))
	}
}

func TestProcessRemovesScratchDir(t *testing.T) {
	h := newHarness(t)
	item := writeItem(t, "long.mp3", 2500)

	h.processor().Process(context.Background(), h.ws, 0, item)
	entries, err := os.ReadDir(filepath.Join(h.ws.TempDir, h.ws.JobID))
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch dirs to be removed, found %d", len(entries))
	}
}

func TestProcessWithoutOutputDir(t *testing.T) {
	h := newHarness(t)
	h.ws.OutputDir = ""
	item := writeItem(t, "lecture.mp3", 512)

	outcome := h.processor().Process(context.Background(), h.ws, 0, item)
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
}
