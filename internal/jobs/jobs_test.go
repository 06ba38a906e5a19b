package jobs_test

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

	"mediabatch/internal/jobs"
	"mediabatch/internal/notifications"
	"mediabatch/internal/processor"
	"mediabatch/internal/services"
	"mediabatch/internal/source"
	"mediabatch/internal/transcript"
)

type fakeLister struct {
	items []source.Item
	err   error
}

func (f *fakeLister) List(context.Context, string, bool) ([]source.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]source.Item(nil), f.items...), nil
}

type fakeProcessor struct {
	mu       sync.Mutex
	failing  map[string]bool
	badIndex map[string]bool
	release  chan struct{}
	started  chan struct{}
	inFlight int
	peak     int
	seen     []string
	delay    func(index int) time.Duration
}

func (f *fakeProcessor) Process(ctx context.Context, _ processor.Workspace, index int, item source.Item) transcript.Outcome {
	f.mu.Lock()
	f.inFlight++
	f.peak = max(f.peak, f.inFlight)
	f.seen = append(f.seen, item.Name)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return transcript.Failure(index, item.Name, item.Locator, ctx.Err().Error())
		}
	}
	if f.delay != nil {
		time.Sleep(f.delay(index))
	}
	if f.badIndex[item.Name] {
		index = -1
	}
	if f.failing[item.Name] {
		return transcript.Failure(index, item.Name, item.Locator, "inference error: quota exceeded")
	}
	return transcript.Success(index, item.Name, item.Locator, transcript.Result{
		Transcription: "Text of " + item.Name + ".",
		FileName:      item.Name,
	}, false)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) add(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) NotifyJobStarted(_ context.Context, job notifications.JobSummary) {
	f.add(fmt.Sprintf("started:%d", job.Items))
}

func (f *fakeNotifier) NotifyJobCompleted(_ context.Context, job notifications.JobSummary) {
	f.add(fmt.Sprintf("completed:%d/%d", job.Succeeded, job.Failed))
}

func (f *fakeNotifier) NotifyJobFailed(_ context.Context, _ notifications.JobSummary, err error) {
	f.add("failed:" + err.Error())
}

func (f *fakeNotifier) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type memStore struct {
	mu    sync.Mutex
	saved map[string]jobs.Job
	order []string
}

func newMemStore(initial ...jobs.Job) *memStore {
	store := &memStore{saved: make(map[string]jobs.Job)}
	for _, job := range initial {
		store.saved[job.ID] = job
		store.order = append(store.order, job.ID)
	}
	return store
}

func (m *memStore) SaveJob(_ context.Context, job jobs.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saved[job.ID]; !ok {
		m.order = append(m.order, job.ID)
	}
	m.saved[job.ID] = job.Clone()
	return nil
}

func (m *memStore) LoadJobs(context.Context) ([]jobs.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]jobs.Job, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.saved[id].Clone())
	}
	return out, nil
}

func (m *memStore) get(id string) jobs.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[id]
}

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func makeItems(names ...string) []source.Item {
	items := make([]source.Item, 0, len(names))
	for _, name := range names {
		items = append(items, source.Item{Locator: "/in/" + name, Name: name, Size: 1024, Origin: source.OriginLocal})
	}
	return items
}

type fixture struct {
	lister    *fakeLister
	processor *fakeProcessor
	notifier  *fakeNotifier
	store     *memStore
	opts      jobs.Options
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	base := t.TempDir()
	return &fixture{
		lister:    &fakeLister{items: makeItems(names...)},
		processor: &fakeProcessor{failing: map[string]bool{}},
		notifier:  &fakeNotifier{},
		store:     newMemStore(),
		opts: jobs.Options{
			DownloadDir:      filepath.Join(base, "downloads"),
			TempDir:          filepath.Join(base, "tmp"),
			OutputDir:        filepath.Join(base, "out"),
			LogDir:           filepath.Join(base, "logs"),
			Concurrency:      1,
			CleanupTempFiles: true,
		},
	}
}

func (f *fixture) runner(t *testing.T) *jobs.Runner {
	t.Helper()
	clock := &steppingClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	runner := jobs.NewRunner(f.opts, jobs.Dependencies{
		Source:    f.lister,
		Processor: f.processor,
		Notifier:  f.notifier,
		Store:     f.store,
		Clock:     clock.Now,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})
	return runner
}

func waitJob(t *testing.T, runner *jobs.Runner, id string) jobs.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := runner.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return job
}

func waitForStatus(t *testing.T, runner *jobs.Runner, id string, want jobs.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := runner.Status(id)
		if err == nil && job.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from jobs.Status
		to   jobs.Status
		want bool
	}{
		{jobs.StatusQueued, jobs.StatusListing, true},
		{jobs.StatusListing, jobs.StatusProcessing, true},
		{jobs.StatusListing, jobs.StatusFailed, true},
		{jobs.StatusProcessing, jobs.StatusCompleted, true},
		{jobs.StatusProcessing, jobs.StatusFailed, true},
		{jobs.StatusQueued, jobs.StatusCompleted, false},
		{jobs.StatusCompleted, jobs.StatusFailed, false},
		{jobs.StatusFailed, jobs.StatusListing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if _, err := jobs.ParseStatus("Processing"); err != nil {
		t.Fatalf("ParseStatus: %v", err)
	}
	if _, err := jobs.ParseStatus("paused"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestRunnerCompletesWithPartialFailures(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3", "c.mp3", "d.mp3", "e.mp3")
	f.processor.failing["b.mp3"] = true
	f.processor.failing["d.mp3"] = true
	runner := f.runner(t)

	id, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "/in", Recursive: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job := waitJob(t, runner, id)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.Error)
	}
	if job.ItemCount == nil || *job.ItemCount != 5 {
		t.Fatalf("unexpected item count %v", job.ItemCount)
	}
	if job.Processed != 5 || job.Succeeded != 3 || job.Failed != 2 {
		t.Fatalf("unexpected counters: processed=%d succeeded=%d failed=%d", job.Processed, job.Succeeded, job.Failed)
	}
	for i, outcome := range job.Outcomes {
		if outcome.Index != i {
			t.Fatalf("outcome %d has index %d", i, outcome.Index)
		}
	}
	if job.Outcomes[1].Status != transcript.StatusFailure || !strings.Contains(job.Outcomes[1].Reason, "quota") {
		t.Fatalf("unexpected failure outcome: %+v", job.Outcomes[1])
	}

	results, err := runner.Results(id)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if results.TotalFiles != 5 || results.Successful != 3 || results.Failed != 2 || len(results.Results) != 5 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results.OutputDir != f.opts.OutputDir {
		t.Fatalf("unexpected output dir %q", results.OutputDir)
	}
	data, err := os.ReadFile(job.CombinedPath)
	if err != nil {
		t.Fatalf("read combined transcript: %v", err)
	}
	combined := string(data)
	if !strings.Contains(combined, "Total files: 3") || !strings.Contains(combined, "FILE 5: e.mp3") {
		t.Fatalf("unexpected combined transcript:\n%s", combined)
	}
	if strings.Contains(combined, "b.mp3") {
		t.Fatal("combined transcript must skip failures")
	}

	events := f.notifier.snapshot()
	if len(events) != 2 || events[0] != "started:5" || events[1] != "completed:3/2" {
		t.Fatalf("unexpected notifications: %v", events)
	}
	if stored := f.store.get(id); stored.Status != jobs.StatusCompleted || stored.Processed != 5 {
		t.Fatalf("expected final state to be persisted, got %s processed=%d", stored.Status, stored.Processed)
	}
	if job.LogPath == "" {
		t.Fatal("expected per-job log path")
	}
	if _, err := os.Stat(job.LogPath); err != nil {
		t.Fatalf("expected per-job log file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.opts.DownloadDir, id)); !os.IsNotExist(err) {
		t.Fatalf("expected job download dir to be removed, got %v", err)
	}
}

func TestRunnerFailsJobWhenOutcomeCannotBeRecorded(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			f := newFixture(t, "a.mp3", "b.mp3", "c.mp3", "d.mp3")
			f.opts.Concurrency = concurrency
			f.processor.badIndex = map[string]bool{"b.mp3": true}
			runner := f.runner(t)

			id, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "/in"})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			job := waitJob(t, runner, id)
			if job.Status != jobs.StatusFailed {
				t.Fatalf("expected failed job, got %s", job.Status)
			}
			if !strings.Contains(job.Error, "b.mp3") || !strings.Contains(job.Error, "out of range") {
				t.Fatalf("unexpected job error %q", job.Error)
			}
			if job.CombinedPath != "" {
				t.Fatalf("failed job must not write a combined transcript, got %q", job.CombinedPath)
			}
			events := f.notifier.snapshot()
			if len(events) == 0 || !strings.HasPrefix(events[len(events)-1], "failed:") {
				t.Fatalf("expected failure notification, got %v", events)
			}
		})
	}
}

func TestRunnerListingFailure(t *testing.T) {
	f := newFixture(t)
	f.lister.err = services.Wrap(services.ErrSourceUnavailable, "drive", "list", "folder not found", nil)
	runner := f.runner(t)

	id, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "missing-folder"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job := waitJob(t, runner, id)
	if job.Status != jobs.StatusFailed || !strings.Contains(job.Error, "folder not found") {
		t.Fatalf("expected listing failure, got %s (%q)", job.Status, job.Error)
	}
	if job.ItemCount != nil {
		t.Fatal("item count must stay unknown after a listing failure")
	}
	_, err = runner.Results(id)
	if !errors.Is(err, services.ErrNotReady) || !strings.Contains(err.Error(), "current status is failed") {
		t.Fatalf("expected not ready error, got %v", err)
	}
	events := f.notifier.snapshot()
	if len(events) != 1 || !strings.HasPrefix(events[0], "failed:") {
		t.Fatalf("unexpected notifications: %v", events)
	}
}

func TestRunnerSkipsOversizedItems(t *testing.T) {
	f := newFixture(t, "small.mp3", "huge.mp3")
	f.lister.items[1].Size = 300 * 1024 * 1024
	f.opts.MaxFileSizeMB = 200
	runner := f.runner(t)

	id, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "/in"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job := waitJob(t, runner, id)
	if *job.ItemCount != 1 || job.Skipped != 1 {
		t.Fatalf("expected one item and one skip, got count=%d skipped=%d", *job.ItemCount, job.Skipped)
	}

	id, err = runner.Submit(context.Background(), jobs.SourceSpec{Ref: "/in", MaxFileSizeMB: 500})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job := waitJob(t, runner, id); *job.ItemCount != 2 {
		t.Fatalf("expected per-job limit to admit both items, got %d", *job.ItemCount)
	}
}

func TestRunnerWorkerPoolKeepsListingOrder(t *testing.T) {
	names := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		names = append(names, fmt.Sprintf("item-%02d.mp3", i))
	}
	f := newFixture(t, names...)
	f.opts.Concurrency = 3
	f.processor.delay = func(index int) time.Duration {
		return time.Duration(10-index) * time.Millisecond
	}
	runner := f.runner(t)

	id, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "/in"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job := waitJob(t, runner, id)
	if job.Processed != 10 || job.Succeeded != 10 {
		t.Fatalf("unexpected counters: %+v", job.Summarize())
	}
	for i, outcome := range job.Outcomes {
		if outcome.Name != names[i] {
			t.Fatalf("outcome %d is %q, want %q", i, outcome.Name, names[i])
		}
	}
	if f.processor.peak > 3 {
		t.Fatalf("expected at most 3 concurrent items, saw %d", f.processor.peak)
	}
	if len(f.processor.seen) != 10 {
		t.Fatalf("expected each item processed once, got %d", len(f.processor.seen))
	}
}

func TestResultsNotReadyWhileProcessing(t *testing.T) {
	f := newFixture(t, "a.mp3")
	f.processor.release = make(chan struct{})
	f.processor.started = make(chan struct{}, 1)
	runner := f.runner(t)

	id, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "/in"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-f.processor.started
	waitForStatus(t, runner, id, jobs.StatusProcessing)

	job, err := runner.Status(id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.ItemCount == nil || *job.ItemCount != 1 || job.Processed != 0 {
		t.Fatalf("unexpected in-flight snapshot: %+v", job.Summarize())
	}
	_, err = runner.Results(id)
	if !errors.Is(err, services.ErrNotReady) || !strings.Contains(err.Error(), "job not completed: current status is processing") {
		t.Fatalf("expected not ready error, got %v", err)
	}

	close(f.processor.release)
	if job := waitJob(t, runner, id); job.Status != jobs.StatusCompleted {
		t.Fatalf("expected completion after release, got %s", job.Status)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	runner := newFixture(t).runner(t)
	if _, err := runner.Status("nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := runner.Results("nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitValidatesSource(t *testing.T) {
	runner := newFixture(t).runner(t)
	if _, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "  "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestJobSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t, "a.mp3")
	f.processor.release = make(chan struct{})
	f.processor.started = make(chan struct{}, 1)
	runner := f.runner(t)

	ctx, cancel := context.WithCancel(context.Background())
	id, err := runner.Submit(ctx, jobs.SourceSpec{Ref: "/in"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancel()
	<-f.processor.started
	close(f.processor.release)
	if job := waitJob(t, runner, id); job.Status != jobs.StatusCompleted {
		t.Fatalf("expected job to complete despite caller cancellation, got %s (%s)", job.Status, job.Error)
	}
}

func TestShutdownFailsInFlightJobs(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.processor.release = make(chan struct{})
	f.processor.started = make(chan struct{}, 1)
	runner := f.runner(t)

	id, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "/in"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-f.processor.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	job, err := runner.Status(id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.Status != jobs.StatusFailed || job.Error != "runner shut down" {
		t.Fatalf("expected shutdown failure, got %s (%q)", job.Status, job.Error)
	}
	if _, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "/in"}); err == nil {
		t.Fatal("expected submit after shutdown to fail")
	}
}

func TestRestoreMarksInterruptedJobs(t *testing.T) {
	count := 2
	created := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t)
	f.store = newMemStore(
		jobs.Job{ID: "done", Status: jobs.StatusCompleted, Source: jobs.SourceSpec{Ref: "/a"}, ItemCount: &count, Processed: 2, Succeeded: 2, CreatedAt: created},
		jobs.Job{ID: "mid", Status: jobs.StatusProcessing, Source: jobs.SourceSpec{Ref: "/b"}, ItemCount: &count, Processed: 1, Succeeded: 1, CreatedAt: created.Add(time.Minute)},
	)
	runner := f.runner(t)

	restored, err := runner.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored != 2 {
		t.Fatalf("expected 2 restored jobs, got %d", restored)
	}
	job, err := runner.Status("mid")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.Status != jobs.StatusFailed || job.Error != "interrupted by restart" {
		t.Fatalf("expected interrupted job to be failed, got %s (%q)", job.Status, job.Error)
	}
	if f.store.get("mid").Status != jobs.StatusFailed {
		t.Fatal("expected interrupted state to be persisted")
	}
	if _, err := runner.Wait(context.Background(), "done"); err != nil {
		t.Fatalf("Wait on restored job: %v", err)
	}

	summaries := runner.List()
	if len(summaries) != 2 || summaries[0].ID != "done" || summaries[1].ID != "mid" {
		t.Fatalf("unexpected summaries order: %+v", summaries)
	}
}

func TestListOrderedByCreation(t *testing.T) {
	f := newFixture(t, "a.mp3")
	runner := f.runner(t)
	var ids []string
	for _i := 0; _i < 3; _i++ {
		id, err := runner.Submit(context.Background(), jobs.SourceSpec{Ref: "/in"})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitJob(t, runner, id)
	}
	summaries := runner.List()
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	for i, summary := range summaries {
		if summary.ID != ids[i] {
			t.Fatalf("summary %d is %s, want %s", i, summary.ID, ids[i])
		}
	}
}

func TestJobCloneIsDeep(t *testing.T) {
	count := 1
	job := jobs.Job{ItemCount: &count, Outcomes: []transcript.Outcome{{Name: "a"}}}
	clone := job.Clone()
	*clone.ItemCount = 9
	clone.Outcomes[0].Name = "changed"
	if *job.ItemCount != 1 || job.Outcomes[0].Name != "a" {
		t.Fatal("clone shares state with original")
	}
}
