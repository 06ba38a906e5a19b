package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with size bytes of filler, making parent
// directories as needed. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := bytes.Repeat([]byte{0x42}, int(max(size, 1)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteMediaTree creates a folder of placeholder media files named by the
// keys of sizes and returns the folder path.
func WriteMediaTree(t testing.TB, root string, sizes map[string]int64) string {
	t.Helper()

	for rel, size := range sizes {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), size)
	}
	return root
}
