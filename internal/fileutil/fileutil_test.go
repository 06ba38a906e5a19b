package fileutil_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"mediabatch/internal/fileutil"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp3")
	dst := filepath.Join(dir, "nested", "dst.mp3")
	if err := os.WriteFile(src, []byte("audio-bytes"), 0o600); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "audio-bytes" {
		t.Fatalf("unexpected copy: %q %v", got, err)
	}
	if !fileutil.SizeMatches(dst, int64(len("audio-bytes"))) {
		t.Fatal("expected size match")
	}
	if fileutil.SizeMatches(dst, 1) {
		t.Fatal("expected size mismatch")
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	if err := fileutil.CopyFile(filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "out")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestWriteAtomicLeavesNoTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "artifact.json")
	if err := fileutil.WriteFileAtomic(target, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	boom := errors.New("boom")
	err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fill error, got %v", err)
	}
	got, _ := os.ReadFile(target)
	if string(got) != "v1" {
		t.Fatalf("expected original content to survive, got %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, found %d entries", len(entries))
	}
	if fileutil.SizeMatches(dir, -1) {
		t.Fatal("directories never match")
	}
}
