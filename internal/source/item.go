package source

import (
	"context"
	"path/filepath"
	"strings"
)

// Origin identifies the backend an item was listed from.
type Origin string

const (
	OriginLocal Origin = "local"
	OriginDrive Origin = "drive"
)

// Item is one listed media file. Locator is a filesystem path for local items
// and a file ID for Drive items; RelPath is the path below the listed folder.
type Item struct {
	Locator  string `json:"locator"`
	Name     string `json:"name"`
	RelPath  string `json:"rel_path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Origin   Origin `json:"origin"`
}

// Key identifies the item within its listing. It is the relative path when
// known and the bare name otherwise.
func (i Item) Key() string {
	if i.RelPath != "" {
		return i.RelPath
	}
	return i.Name
}

// SizeMB returns the item size in mebibytes.
func (i Item) SizeMB() float64 {
	return float64(i.Size) / (1024 * 1024)
}

// Source lists items under a reference and copies them locally.
type Source interface {
	List(ctx context.Context, ref string, recursive bool) ([]Item, error)
	Materialize(ctx context.Context, item Item, dir string) (string, error)
}

var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/m4a",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".opus": "audio/opus",
	".wma":  "audio/x-ms-wma",
}

// MimeType infers an upload MIME type from a file name. Unknown or missing
// extensions are assumed to be MP3.
func MimeType(name string) string {
	if mime, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	return "audio/mpeg"
}

// Filter decides which names count as audio.
type Filter struct {
	extensions map[string]struct{}
}

// NewFilter builds a filter from extensions with or without the leading dot.
func NewFilter(extensions []string) Filter {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			set["."+ext] = struct{}{}
		}
	}
	return Filter{extensions: set}
}

// Accepts reports whether name is listed. Hidden files and desktop.ini are
// skipped. Names without an extension are kept because exported Drive audio
// frequently loses it.
func (f Filter) Accepts(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.EqualFold(name, "desktop.ini") {
		return false
	}
	// Exports cut short by Drive end in a dash, leaving a bogus extension
	// such as ".5-" in "Meeting 1.5-". Treat them as extensionless.
	if strings.HasSuffix(name, "-") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return true
	}
	_, ok := f.extensions[ext]
	return ok
}
