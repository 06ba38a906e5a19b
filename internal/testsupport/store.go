package testsupport

import (
	"context"
	"testing"

	"mediabatch/internal/config"
	"mediabatch/internal/jobs"
	"mediabatch/internal/jobstore"
)

// MustOpenStore opens a jobstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SaveJob stores a job snapshot and fails the test on error.
func SaveJob(t testing.TB, store *jobstore.Store, job jobs.Job) {
	t.Helper()

	if err := store.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("store.SaveJob: %v", err)
	}
}
