package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mediabatch/internal/config"
	"mediabatch/internal/logging"
)

// JobSummary carries the job facts the notification messages need.
type JobSummary struct {
	ID           string
	Source       string
	Items        int
	Succeeded    int
	Failed       int
	Duration     time.Duration
	CombinedPath string
}

// Service formats job events and hands them to a Notifier. Its methods never
// return errors; delivery failures are logged.
type Service struct {
	notifier     Notifier
	logger       *slog.Logger
	jobStarted   bool
	jobCompleted bool
	errors       bool
}

// Option customizes the service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier replaces the configured transports.
func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// NewService builds a service from the notification config. Ntfy and Slack are
// enabled independently; with neither configured the service is a no-op.
func NewService(cfg *config.Config, opts ...Option) *Service {
	svc := &Service{
		notifier:     noopNotifier{},
		logger:       logging.NewNop(),
		jobStarted:   true,
		jobCompleted: true,
		errors:       true,
	}
	if cfg != nil {
		svc.jobStarted = cfg.Notifications.JobStarted
		svc.jobCompleted = cfg.Notifications.JobCompleted
		svc.errors = cfg.Notifications.Errors

		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client := &http.Client{Timeout: timeout}
		var backends Multi
		if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
			backends = append(backends, NewNtfy(topic, client))
		}
		if webhook := strings.TrimSpace(cfg.Notifications.SlackWebhookURL); webhook != "" {
			backends = append(backends, NewSlack(webhook, cfg.Notifications.SlackChannel, client))
		}
		switch len(backends) {
		case 0:
		case 1:
			svc.notifier = backends[0]
		default:
			svc.notifier = backends
		}
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.logger = logging.NewComponentLogger(svc.logger, "notifications")
	return svc
}

// Enabled reports whether any transport is configured.
func (s *Service) Enabled() bool {
	if s == nil {
		return false
	}
	_, noop := s.notifier.(noopNotifier)
	return !noop
}

// Send delivers msg to channel and logs failures at warn.
func (s *Service) Send(ctx context.Context, channel string, msg Message) {
	if s == nil || s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, channel, msg); err != nil {
		logging.WarnWithContext(s.logger, "notification delivery failed", "notification_failed",
			logging.String("title", msg.Title),
			logging.String("channel", channel),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and notifications.slack_webhook_url"),
			logging.String(logging.FieldImpact, "job continues without this notification"),
		)
		return
	}
	s.logger.Debug("notification sent", logging.String("title", msg.Title))
}

// NotifyJobStarted announces a job once its listing is known.
func (s *Service) NotifyJobStarted(ctx context.Context, job JobSummary) {
	if s == nil || !s.jobStarted {
		return
	}
	s.Send(ctx, "", Message{
		Title: "mediabatch - Job Started",
		Body:  fmt.Sprintf("Started transcribing %d file(s) from %s\nJob: %s", job.Items, job.Source, job.ID),
		Tags:  []string{"mediabatch", "job", "started"},
	})
}

// NotifyJobCompleted reports the final counts of a job.
func (s *Service) NotifyJobCompleted(ctx context.Context, job JobSummary) {
	if s == nil || !s.jobCompleted {
		return
	}
	title := "mediabatch - Job Complete"
	body := fmt.Sprintf("Transcribed %d file(s) in %s", job.Succeeded, formatDuration(job.Duration))
	if job.Failed > 0 {
		title = "mediabatch - Job Complete (with errors)"
		body = fmt.Sprintf("Transcription complete: %d succeeded, %d failed in %s", job.Succeeded, job.Failed, formatDuration(job.Duration))
	}
	if job.CombinedPath != "" {
		body += "\nCombined transcript: " + job.CombinedPath
	}
	body += "\nJob: " + job.ID
	s.Send(ctx, "", Message{
		Title: title,
		Body:  body,
		Tags:  []string{"mediabatch", "job", "completed"},
	})
}

// NotifyJobFailed reports a job that could not run to completion.
func (s *Service) NotifyJobFailed(ctx context.Context, job JobSummary, err error) {
	if s == nil || !s.errors {
		return
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	s.Send(ctx, "", Message{
		Title:    "mediabatch - Job Failed",
		Body:     fmt.Sprintf("Job %s failed: %s\nSource: %s", job.ID, reason, job.Source),
		Tags:     []string{"mediabatch", "error", "alert"},
		Priority: "high",
	})
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func encodeJSON(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return &buf, nil
}
