package jobstore_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"mediabatch/internal/jobs"
	"mediabatch/internal/jobstore"
	"mediabatch/internal/testsupport"
	"mediabatch/internal/transcript"
)

func sampleJob(id string, created time.Time) jobs.Job {
	return jobs.Job{
		ID:        id,
		Status:    jobs.StatusQueued,
		Source:    jobs.SourceSpec{Ref: "/media/interviews", Recursive: true, MaxFileSizeMB: 150, OutputDir: "/out"},
		CreatedAt: created,
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if store.Path() != cfg.JobStorePath() {
		t.Fatalf("unexpected path %q", store.Path())
	}
	jobsList, err := store.LoadJobs(context.Background())
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(jobsList) != 0 {
		t.Fatalf("expected empty store, got %d jobs", len(jobsList))
	}
}

func TestSaveJobRoundTripsSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	job := sampleJob("job-1", created)
	testsupport.SaveJob(t, store, job)

	started := created.Add(time.Second)
	finished := created.Add(90 * time.Second)
	count := 2
	job.Status = jobs.StatusCompleted
	job.StartedAt = &started
	job.FinishedAt = &finished
	job.ItemCount = &count
	job.Processed = 2
	job.Succeeded = 1
	job.Failed = 1
	job.Skipped = 3
	job.CombinedPath = "/out/combined.txt"
	job.LogPath = "/logs/job-1.log"
	job.Outcomes = []transcript.Outcome{
		transcript.Success(0, "a.mp3", "/media/interviews/a.mp3", transcript.Result{Transcription: "Hello there.", Language: "en"}, false),
		transcript.Failure(1, "b.mp3", "/media/interviews/b.mp3", "inference error: quota exceeded"),
	}
	testsupport.SaveJob(t, store, job)

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored job")
	}
	if got.Status != jobs.StatusCompleted || got.Processed != 2 || got.Succeeded != 1 || got.Failed != 1 || got.Skipped != 3 {
		t.Fatalf("unexpected counters: %+v", got.Summarize())
	}
	if got.ItemCount == nil || *got.ItemCount != 2 {
		t.Fatalf("unexpected item count %v", got.ItemCount)
	}
	if got.Source != job.Source {
		t.Fatalf("unexpected source: %+v", got.Source)
	}
	if !got.CreatedAt.Equal(created) || got.StartedAt == nil || !got.StartedAt.Equal(started) || got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Fatalf("unexpected timestamps: created=%v started=%v finished=%v", got.CreatedAt, got.StartedAt, got.FinishedAt)
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(got.Outcomes))
	}
	if !got.Outcomes[0].Succeeded() || got.Outcomes[0].Result.Transcription != "Hello there." {
		t.Fatalf("unexpected first outcome: %+v", got.Outcomes[0])
	}
	if got.Outcomes[1].Reason != "inference error: quota exceeded" {
		t.Fatalf("unexpected failure reason: %q", got.Outcomes[1].Reason)
	}
	if got.CombinedPath != job.CombinedPath || got.LogPath != job.LogPath {
		t.Fatalf("unexpected paths: %q %q", got.CombinedPath, got.LogPath)
	}
}

func TestGetUnknownJobReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown job, got %+v", got)
	}
}

func TestLoadJobsOrdersByCreation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	testsupport.SaveJob(t, store, sampleJob("c", base.Add(2*time.Second)))
	testsupport.SaveJob(t, store, sampleJob("a", base.Add(500*time.Millisecond)))
	testsupport.SaveJob(t, store, sampleJob("b", base.Add(time.Second)))

	loaded, err := store.LoadJobs(context.Background())
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	var ids []string
	for _, job := range loaded {
		ids = append(ids, job.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("unexpected order: %v", ids)
	}
	if loaded[0].ItemCount != nil || loaded[0].Outcomes != nil {
		t.Fatal("queued job should have no count or outcomes")
	}
}

func TestPruneFinishedKeepsRecentAndActive(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	old := sampleJob("old", now.Add(-72*time.Hour))
	oldFinished := now.Add(-71 * time.Hour)
	old.Status = jobs.StatusCompleted
	old.FinishedAt = &oldFinished
	testsupport.SaveJob(t, store, old)

	recent := sampleJob("recent", now.Add(-time.Hour))
	recentFinished := now.Add(-30 * time.Minute)
	recent.Status = jobs.StatusFailed
	recent.FinishedAt = &recentFinished
	testsupport.SaveJob(t, store, recent)

	active := sampleJob("active", now.Add(-96*time.Hour))
	active.Status = jobs.StatusProcessing
	testsupport.SaveJob(t, store, active)

	removed, err := store.PruneFinished(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneFinished: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned job, got %d", removed)
	}
	if got, _ := store.Get(ctx, "old"); got != nil {
		t.Fatal("expected old job to be pruned")
	}
	for _, id := range []string{"recent", "active"} {
		if got, _ := store.Get(ctx, id); got == nil {
			t.Fatalf("expected %s to remain", id)
		}
	}
}

func TestReopenPreservesJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.SaveJob(t, store, sampleJob("persisted", time.Now()))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	got, err := reopened.Get(context.Background(), "persisted")
	if err != nil || got == nil {
		t.Fatalf("expected job after reopen, got %v err=%v", got, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE schema_version (version INTEGER NOT NULL); INSERT INTO schema_version (version) VALUES (99);"); err != nil {
		t.Fatalf("seed schema version: %v", err)
	}
	_ = db.Close()

	_, err = jobstore.OpenPath(path)
	if !errors.Is(err, jobstore.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestStoreSatisfiesRunnerStore(t *testing.T) {
	var _ jobs.Store = (*jobstore.Store)(nil)
}
