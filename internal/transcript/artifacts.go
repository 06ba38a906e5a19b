package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"mediabatch/internal/fileutil"
	"mediabatch/internal/services"
)

const (
	jsonSuffix = "_transcription.json"
	textSuffix = "_transcript.txt"

	// CombinedFileName is the job-level artifact written on completion.
	CombinedFileName = "combined_transcript.txt"
)

// ArtifactStore persists per-item artifacts under Dir. Artifacts are keyed by
// the item's path below the listed folder, so the same item always maps to
// the same pair of files and distinct items never share one.
type ArtifactStore struct {
	Dir string
}

// Stem returns a file's base name without its extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ArtifactStem flattens an item key into a single file name. Directory
// separators become "__" and the extension is kept, so week1/lecture.mp3
// and lecture.wav yield distinct stems.
func ArtifactStem(key string) string {
	cleaned := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimLeft(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "item"
	}
	return strings.ReplaceAll(cleaned, "/", "__")
}

// Paths returns the structured and rendered artifact paths for key.
func (s ArtifactStore) Paths(key string) (jsonPath, textPath string) {
	stem := ArtifactStem(key)
	return filepath.Join(s.Dir, stem+jsonSuffix), filepath.Join(s.Dir, stem+textSuffix)
}

// Exists reports whether both artifacts for key are present.
func (s ArtifactStore) Exists(key string) bool {
	if strings.TrimSpace(s.Dir) == "" {
		return false
	}
	jsonPath, textPath := s.Paths(key)
	return fileutil.SizeMatches(jsonPath, -1) && fileutil.SizeMatches(textPath, -1)
}

// Load decodes the structured artifact for name.
func (s ArtifactStore) Load(name string) (Result, error) {
	jsonPath, _ := s.Paths(name)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrStorage, "artifacts", "load", jsonPath, err)
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, services.Wrap(services.ErrStorage, "artifacts", "decode", jsonPath, err)
	}
	return result, nil
}

// Save writes both artifacts for name atomically. The JSON artifact is written
// last so a crash never leaves a resumable pair with a missing rendering.
func (s ArtifactStore) Save(name string, result Result, generated time.Time) error {
	jsonPath, textPath := s.Paths(name)
	if err := fileutil.WriteFileAtomic(textPath, []byte(Format(result, generated)), 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "artifacts", "save", textPath, err)
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStorage, "artifacts", "encode", jsonPath, err)
	}
	if err := fileutil.WriteFileAtomic(jsonPath, append(encoded, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "artifacts", "save", jsonPath, err)
	}
	return nil
}

// SaveCombined writes the combined transcript for a job and returns its path.
func (s ArtifactStore) SaveCombined(outcomes []Outcome, title string, generated time.Time) (string, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return "", fmt.Errorf("save combined transcript: %w", services.ErrConfiguration)
	}
	path := filepath.Join(s.Dir, CombinedFileName)
	if err := fileutil.WriteFileAtomic(path, []byte(Combine(outcomes, title, generated)), 0o644); err != nil {
		return "", services.Wrap(services.ErrStorage, "artifacts", "save combined", path, err)
	}
	return path, nil
}
