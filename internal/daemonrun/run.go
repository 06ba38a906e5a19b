package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mediabatch/internal/config"
	"mediabatch/internal/daemon"
	"mediabatch/internal/deps"
	"mediabatch/internal/logging"
	"mediabatch/internal/preflight"
)

// PIDFileName is written under paths.log_dir while the daemon runs.
const PIDFileName = "mediabatch.pid"

// CurrentLogName points at the log of the most recent daemon run.
const CurrentLogName = "daemon.log"

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel, when set, overrides logging.level.
	LogLevel string
	Version  string
	// Ready, when set, receives the API address once the daemon is serving.
	Ready func(addr string)
}

// Run starts the mediabatch daemon and blocks until the context is cancelled
// or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("mediabatch-%s.log", runID))
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg, "stdout", logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", CurrentLogName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "mediabatch-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	components, err := daemon.Compose(cfg, logger)
	if err != nil {
		logger.Error("compose daemon", logging.Error(err))
		return err
	}
	d, err := daemon.New(cfg, logger, components, opts.Version)
	if err != nil {
		_ = components.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind and that no other daemon holds the lock"),
			logging.String(logging.FieldImpact, "no jobs will be accepted"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d.Addr())
	}

	<-signalCtx.Done()
	logger.Info("mediabatch daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, CurrentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	tools := preflight.CheckSystemDeps(cfg)
	attrs := []any{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("inference_key_present", strings.TrimSpace(cfg.Inference.APIKey) != ""),
		logging.String("model", cfg.Inference.Model),
		logging.Bool("drive_key_present", strings.TrimSpace(cfg.Source.DriveAPIKey) != ""),
		logging.String("usage_tier", cfg.Usage.Tier),
		logging.Int("concurrency", cfg.Processing.Concurrency),
	}
	for _, tool := range tools {
		key := strings.ToLower(tool.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", tool.Available),
			logging.String(key+"_binary", tool.Command),
		)
	}
	logger.Info("dependency snapshot", attrs...)

	if !deps.AllRequiredAvailable(tools) {
		logging.WarnWithContext(logger, "required media tools missing", "dependency_missing",
			logging.String(logging.FieldErrorHint, "install ffmpeg or set media.ffmpeg_binary and media.ffprobe_binary"),
			logging.String(logging.FieldImpact, "items that need probing, conversion or splitting will fail"),
		)
	}
}
