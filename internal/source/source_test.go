package source_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"mediabatch/internal/services"
	"mediabatch/internal/source"
)

var audioExtensions = []string{"mp3", "wav", "m4a", "aac", "ogg", "flac", "opus", "wma"}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func names(items []source.Item) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.RelPath)
	}
	return strings.Join(out, ",")
}

func TestFilterAccepts(t *testing.T) {
	filter := source.NewFilter([]string{".MP3", "wav"})
	cases := map[string]bool{
		"talk.mp3":     true,
		"TALK.MP3":     true,
		"song.wav":     true,
		"notes.txt":    false,
		"recording":    true,
		"export-":      true,
		"Meeting 1.5-": true,
		"Meeting 1.5":  false,
		".hidden.mp3":  false,
		"desktop.ini":  false,
	}
	for name, want := range cases {
		if got := filter.Accepts(name); got != want {
			t.Fatalf("Accepts(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMimeType(t *testing.T) {
	if got := source.MimeType("a.FLAC"); got != "audio/flac" {
		t.Fatalf("unexpected mime %q", got)
	}
	if got := source.MimeType("noext"); got != "audio/mpeg" {
		t.Fatalf("expected mp3 fallback, got %q", got)
	}
}

func TestLocalListLexicalOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.mp3"), "bb")
	writeFile(t, filepath.Join(root, "a.wav"), "a")
	writeFile(t, filepath.Join(root, "notes.txt"), "skip")
	writeFile(t, filepath.Join(root, ".secret.mp3"), "skip")
	writeFile(t, filepath.Join(root, "sub", "c.m4a"), "ccc")
	writeFile(t, filepath.Join(root, ".cache", "d.mp3"), "skip")

	local := source.NewLocal(audioExtensions)
	items, err := local.List(context.Background(), root, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := names(items); got != "a.wav,b.mp3,sub/c.m4a" {
		t.Fatalf("unexpected items %q", got)
	}
	if items[1].Size != 2 || items[1].MimeType != "audio/mpeg" || items[1].Origin != source.OriginLocal {
		t.Fatalf("unexpected item metadata %+v", items[1])
	}

	flat, err := local.List(context.Background(), root, false)
	if err != nil {
		t.Fatalf("List non-recursive: %v", err)
	}
	if got := names(flat); got != "a.wav,b.mp3" {
		t.Fatalf("unexpected flat items %q", got)
	}
}

func TestLocalListMissingFolder(t *testing.T) {
	_, err := source.NewLocal(audioExtensions).List(context.Background(), filepath.Join(t.TempDir(), "missing"), true)
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestLocalMaterializeCopiesAndReuses(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sub", "c.mp3"), "payload")
	local := source.NewLocal(audioExtensions)
	items, err := local.List(context.Background(), root, true)
	if err != nil || len(items) != 1 {
		t.Fatalf("List: %v %v", items, err)
	}

	original, err := local.Materialize(context.Background(), items[0], "")
	if err != nil || original != items[0].Locator {
		t.Fatalf("expected original path without dir, got %q %v", original, err)
	}

	jobDir := t.TempDir()
	dest, err := local.Materialize(context.Background(), items[0], jobDir)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if dest != filepath.Join(jobDir, "sub", "c.mp3") {
		t.Fatalf("unexpected destination %q", dest)
	}
	if err := os.Remove(items[0].Locator); err != nil {
		t.Fatalf("remove source: %v", err)
	}
	again, err := local.Materialize(context.Background(), items[0], jobDir)
	if err != nil || again != dest {
		t.Fatalf("expected reuse of existing copy, got %q %v", again, err)
	}
}

func TestExtractFolderID(t *testing.T) {
	cases := []struct{ link, want string }{
		{link: "https://drive.google.com/drive/folders/1AbC_dEf-123?usp=sharing", want: "1AbC_dEf-123"},
		{link: "https://drive.google.com/open?id=XYZ987&authuser=0", want: "XYZ987"},
		{link: "  plainFolderId ", want: "plainFolderId"},
	}
	for _, tc := range cases {
		if got := source.ExtractFolderID(tc.link); got != tc.want {
			t.Fatalf("ExtractFolderID(%q) = %q, want %q", tc.link, got, tc.want)
		}
	}
}

type fakeDrive struct {
	folders   map[string][]map[string]string
	contents  map[string]string
	listCalls atomic.Int32
}

func (f *fakeDrive) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "drive-key" {
			http.Error(w, `{"error":"missing key"}`, http.StatusForbidden)
			return
		}
		if r.URL.Path == "/files" {
			f.listCalls.Add(1)
			q := r.URL.Query().Get("q")
			folder := strings.TrimSuffix(strings.TrimPrefix(q, "'"), "' in parents and trashed = false")
			files := f.folders[folder]
			// Serve one entry per page to exercise paging.
			page := 0
			if token := r.URL.Query().Get("pageToken"); token != "" {
				page = len(token)
			}
			resp := map[string]any{"files": []map[string]string{}}
			if page < len(files) {
				resp["files"] = files[page : page+1]
				if page+1 < len(files) {
					resp["nextPageToken"] = strings.Repeat("x", page+1)
				}
			}
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/files/")
		if r.URL.Query().Get("alt") != "media" {
			t.Errorf("expected alt=media for download, got %q", r.URL.RawQuery)
		}
		body, ok := f.contents[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	})
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		folders: map[string][]map[string]string{
			"root": {
				{"id": "f2", "name": "b.mp3", "mimeType": "audio/mpeg", "size": "5"},
				{"id": "sub", "name": "lectures", "mimeType": "application/vnd.google-apps.folder"},
				{"id": "f1", "name": "a.wav", "mimeType": "audio/wav", "size": "3"},
				{"id": "doc", "name": "notes.pdf", "mimeType": "application/pdf", "size": "9"},
			},
			"sub": {
				{"id": "f3", "name": "week1", "mimeType": "application/octet-stream", "size": "4"},
			},
		},
		contents: map[string]string{"f1": "abc", "f2": "hello", "f3": "data"},
	}
}

func TestDriveListRecursesPagesAndCaches(t *testing.T) {
	fake := newFakeDrive()
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	drive := source.NewDrive(source.DriveOptions{
		BaseURL:    server.URL,
		APIKey:     "drive-key",
		Extensions: audioExtensions,
		Client:     server.Client(),
	})
	items, err := drive.List(context.Background(), "https://drive.google.com/drive/folders/root?usp=sharing", true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := names(items); got != "a.wav,b.mp3,lectures/week1" {
		t.Fatalf("unexpected items %q", got)
	}
	if items[2].Locator != "f3" || items[2].Size != 4 || items[2].Origin != source.OriginDrive {
		t.Fatalf("unexpected drive item %+v", items[2])
	}

	calls := fake.listCalls.Load()
	if _, err := drive.List(context.Background(), "root", true); err != nil {
		t.Fatalf("cached List: %v", err)
	}
	if fake.listCalls.Load() != calls {
		t.Fatal("expected second listing to be served from cache")
	}

	flat, err := drive.List(context.Background(), "root", false)
	if err != nil {
		t.Fatalf("flat List: %v", err)
	}
	if got := names(flat); got != "a.wav,b.mp3" {
		t.Fatalf("unexpected flat items %q", got)
	}
}

func TestDriveMaterializeDownloads(t *testing.T) {
	fake := newFakeDrive()
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	drive := source.NewDrive(source.DriveOptions{BaseURL: server.URL, APIKey: "drive-key", Extensions: audioExtensions})
	item := source.Item{Locator: "f2", Name: "b.mp3", RelPath: "b.mp3", Size: 5, Origin: source.OriginDrive}
	dir := t.TempDir()
	dest, err := drive.Materialize(context.Background(), item, dir)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected download %q %v", data, err)
	}

	missing := source.Item{Locator: "nope", Name: "x.mp3", RelPath: "x.mp3", Origin: source.OriginDrive}
	if _, err := drive.Materialize(context.Background(), missing, dir); !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestDriveListErrorsWrapSourceUnavailable(t *testing.T) {
	server := httptest.NewServer(newFakeDrive().handler(t))
	defer server.Close()

	drive := source.NewDrive(source.DriveOptions{BaseURL: server.URL, APIKey: "wrong"})
	_, err := drive.List(context.Background(), "root", true)
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestRouterDispatch(t *testing.T) {
	server := httptest.NewServer(newFakeDrive().handler(t))
	defer server.Close()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "local.mp3"), "x")

	router := source.NewRouter(
		source.NewLocal(audioExtensions),
		source.NewDrive(source.DriveOptions{BaseURL: server.URL, APIKey: "drive-key", Extensions: audioExtensions}),
	)
	localItems, err := router.List(context.Background(), root, true)
	if err != nil || names(localItems) != "local.mp3" {
		t.Fatalf("unexpected local listing %v %v", localItems, err)
	}
	driveItems, err := router.List(context.Background(), "https://drive.google.com/drive/folders/root", false)
	if err != nil || names(driveItems) != "a.wav,b.mp3" {
		t.Fatalf("unexpected drive listing %v %v", driveItems, err)
	}

	dir := t.TempDir()
	path, err := router.Materialize(context.Background(), driveItems[0], dir)
	if err != nil || filepath.Base(path) != "a.wav" {
		t.Fatalf("unexpected drive materialize %q %v", path, err)
	}

	if _, err := router.List(context.Background(), "", true); !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected error for empty ref, got %v", err)
	}
}

func TestIsDriveRef(t *testing.T) {
	if !source.IsDriveRef("https://drive.google.com/drive/folders/abc") {
		t.Fatal("expected link to be a drive ref")
	}
	if !source.IsDriveRef("1A2b3C4d5E6f7G8h9I0jKlMn") {
		t.Fatal("expected bare id to be a drive ref")
	}
	if source.IsDriveRef("/srv/audio") {
		t.Fatal("did not expect a path to be a drive ref")
	}
}
