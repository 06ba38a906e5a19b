package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobe returns the ffprobe binary to run. An explicitly configured
// path wins. Otherwise an ffprobe sitting next to the resolved ffmpeg binary
// is preferred so both tools come from the same build, falling back to the
// configured name for PATH lookup.
func ResolveFFprobe(ffmpegBinary, ffprobeBinary string) string {
	configured := strings.TrimSpace(ffprobeBinary)
	if configured == "" {
		configured = "ffprobe"
	}
	if strings.ContainsRune(configured, filepath.Separator) {
		return configured
	}
	ffmpeg := strings.TrimSpace(ffmpegBinary)
	if ffmpeg == "" {
		return configured
	}
	resolved, err := exec.LookPath(ffmpeg)
	if err != nil {
		return configured
	}
	if candidate, ok := siblingBinary(resolved, "ffprobe"); ok {
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			return candidate
		}
	}
	return configured
}

// MediaRequirements lists the binaries the item pipeline invokes.
func MediaRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for transcoding and chunking audio",
		},
		{
			Name:        "FFprobe",
			Command:     ResolveFFprobe(ffmpegBinary, ffprobeBinary),
			Description: "Required for duration probing",
		},
	}
}

func siblingBinary(binaryPath, name string) (string, bool) {
	if binaryPath == "" {
		return "", false
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(binaryPath), name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
