package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mediabatch/internal/logging"
	"mediabatch/internal/media/ffprobe"
	"mediabatch/internal/services"
)

const (
	defaultBitrate  = "128k"
	defaultChannels = 1
)

// Target describes the encoding produced by Transcode and Clip. Dir receives
// the converted file.
type Target struct {
	Dir      string
	Bitrate  string
	Channels int
}

func (t Target) normalized() Target {
	if strings.TrimSpace(t.Bitrate) == "" {
		t.Bitrate = defaultBitrate
	}
	if t.Channels <= 0 {
		t.Channels = defaultChannels
	}
	return t
}

// Options configures a Toolkit.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
	Bitrate       string
	Logger        *slog.Logger
}

// Toolkit runs ffprobe and ffmpeg.
type Toolkit struct {
	ffmpeg  string
	ffprobe string
	bitrate string
	runner  commandRunner
	logger  *slog.Logger
}

// NewToolkit constructs a Toolkit that executes the configured binaries.
func NewToolkit(opts Options) *Toolkit {
	return newToolkit(opts, execRunner{})
}

func newToolkit(opts Options, runner commandRunner) *Toolkit {
	ffmpeg := strings.TrimSpace(opts.FFmpegBinary)
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	probe := strings.TrimSpace(opts.FFprobeBinary)
	if probe == "" {
		probe = "ffprobe"
	}
	bitrate := strings.TrimSpace(opts.Bitrate)
	if bitrate == "" {
		bitrate = defaultBitrate
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Toolkit{
		ffmpeg:  ffmpeg,
		ffprobe: probe,
		bitrate: bitrate,
		runner:  runner,
		logger:  logging.NewComponentLogger(logger, "media"),
	}
}

// Probe returns the parsed ffprobe metadata for path.
func (t *Toolkit) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	res, err := t.runner.Run(ctx, t.ffprobe, ffprobe.Args(path)...)
	if err != nil {
		return ffprobe.Result{}, services.Wrap(services.ErrMedia, "ffprobe", "probe", commandDetail(path, res), err)
	}
	result, err := ffprobe.Parse(res.Stdout)
	if err != nil {
		return ffprobe.Result{}, services.Wrap(services.ErrMedia, "ffprobe", "parse", path, err)
	}
	return result, nil
}

// Duration returns the playback length of path in seconds. The value may be
// zero or NaN when the container does not report one.
func (t *Toolkit) Duration(ctx context.Context, path string) (float64, error) {
	result, err := t.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

// Transcode converts path into an MP3 under target.Dir and returns the new path.
func (t *Toolkit) Transcode(ctx context.Context, path string, target Target) (string, error) {
	target = t.withDefaults(target)
	if strings.TrimSpace(target.Dir) == "" {
		target.Dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(target.Dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrMedia, "ffmpeg", "transcode", target.Dir, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(target.Dir, "converted_"+stem+".mp3")
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vn",
		"-ac", strconv.Itoa(target.Channels),
		"-c:a", "libmp3lame",
		"-b:a", target.Bitrate,
		out,
	}
	if res, err := t.runner.Run(ctx, t.ffmpeg, args...); err != nil {
		return "", services.Wrap(services.ErrMedia, "ffmpeg", "transcode", commandDetail(path, res), err)
	}
	t.logger.Debug("transcoded audio", logging.String("source", path), logging.String("output", out))
	return out, nil
}

// Clip encodes the window [start, start+duration) of path into out.
func (t *Toolkit) Clip(ctx context.Context, path string, start, duration float64, out string) (string, error) {
	if duration <= 0 {
		return "", services.Wrap(services.ErrMedia, "ffmpeg", "clip", fmt.Sprintf("invalid duration %.3f", duration), nil)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", services.Wrap(services.ErrMedia, "ffmpeg", "clip", out, err)
	}
	target := t.withDefaults(Target{})
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", path,
		"-vn",
		"-ac", strconv.Itoa(target.Channels),
		"-c:a", "libmp3lame",
		"-b:a", target.Bitrate,
		out,
	}
	if res, err := t.runner.Run(ctx, t.ffmpeg, args...); err != nil {
		return "", services.Wrap(services.ErrMedia, "ffmpeg", "clip", commandDetail(path, res), err)
	}
	return out, nil
}

func (t *Toolkit) withDefaults(target Target) Target {
	if strings.TrimSpace(target.Bitrate) == "" {
		target.Bitrate = t.bitrate
	}
	return target.normalized()
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

func commandDetail(path string, res commandResult) string {
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", path, res.ExitCode, stderr)
	}
	return path
}

// NeedsTranscode reports whether name's extension is outside accepted.
func NeedsTranscode(name string, accepted []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return true
	}
	for _, candidate := range accepted {
		if strings.TrimPrefix(strings.ToLower(strings.TrimSpace(candidate)), ".") == ext {
			return false
		}
	}
	return true
}
