package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediabatch/internal/config"
	"mediabatch/internal/preflight"
	"mediabatch/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := preflight.CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckInference_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"models/gemini-test"}]}`))
	}))
	defer srv.Close()

	result := preflight.CheckInference(context.Background(), config.InferenceConfig{
		APIKey:  "good-key",
		BaseURL: srv.URL,
		Model:   "gemini-test",
	})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "gemini-test") {
		t.Fatalf("expected model in detail, got %q", result.Detail)
	}
}

func TestCheckInference_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := preflight.CheckInference(context.Background(), config.InferenceConfig{APIKey: "bad", BaseURL: srv.URL})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "401") {
		t.Fatalf("expected status in detail, got %q", result.Detail)
	}
}

func TestCheckInference_MissingKey(t *testing.T) {
	result := preflight.CheckInference(context.Background(), config.InferenceConfig{})
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunAllReportsDirectoriesAndTools(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.OutputDir = filepath.Join(base, "missing-output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Media.FFmpegBinary = filepath.Join(base, "no-ffmpeg")
	cfg.Media.FFprobeBinary = filepath.Join(base, "no-ffprobe")
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.DownloadDir, cfg.Paths.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := preflight.RunAll(context.Background(), &cfg, preflight.Options{})
	byName := make(map[string]preflight.Result, len(results))
	for _, result := range results {
		byName[result.Name] = result
	}
	if !byName["Data directory"].Passed || !byName["Temp directory"].Passed {
		t.Fatalf("expected directory checks to pass: %+v", results)
	}
	if byName["Output directory"].Passed {
		t.Fatal("expected missing output dir to fail")
	}
	if _, ok := byName["Inference API"]; ok {
		t.Fatal("expected inference check to be skipped")
	}
	if !byName["Notifications"].Passed || byName["Notifications"].Detail != "Disabled" {
		t.Fatalf("unexpected notifications result: %+v", byName["Notifications"])
	}
	if preflight.AllPassed(results) {
		t.Fatal("expected overall failure")
	}
}

func TestRunAllPassesWithToolsAndReachableModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "live-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"models/gemini-test"}]}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithInferenceKey("live-key"),
		testsupport.WithInferenceURL(srv.URL),
		testsupport.WithStubbedBinaries(),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := preflight.RunAll(context.Background(), cfg, preflight.Options{CheckInference: true})
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("expected %s to pass: %s", result.Name, result.Detail)
		}
	}
	names := make([]string, 0, len(results))
	for _, result := range results {
		names = append(names, result.Name)
	}
	for _, want := range []string{"FFmpeg", "FFprobe", "Inference API"} {
		if !strings.Contains(strings.Join(names, ","), want) {
			t.Fatalf("expected %s check, got %v", want, names)
		}
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := preflight.RunAll(context.Background(), nil, preflight.Options{}); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}
