package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const userAgent = "mediabatch/0.1.0"

// Message is one notification.
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// Notifier sends a message to a channel. An empty channel selects the
// backend's configured default.
type Notifier interface {
	Send(ctx context.Context, channel string, msg Message) error
}

// Ntfy posts plain-text messages to an ntfy topic URL.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewNtfy builds an ntfy notifier for the given topic URL.
func NewNtfy(topicURL string, client *http.Client) *Ntfy {
	if client == nil {
		client = http.DefaultClient
	}
	return &Ntfy{endpoint: strings.TrimSpace(topicURL), client: client}
}

// Send posts the message. A non-empty channel replaces the topic segment of
// the configured URL.
func (n *Ntfy) Send(ctx context.Context, channel string, msg Message) error {
	endpoint, err := n.target(channel)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority != "" && msg.Priority != "default" {
		req.Header.Set("Priority", msg.Priority)
	}
	return doRequest(n.client, req, "ntfy")
}

func (n *Ntfy) target(channel string) (string, error) {
	channel = strings.Trim(strings.TrimSpace(channel), "/")
	if channel == "" {
		return n.endpoint, nil
	}
	parsed, err := url.Parse(n.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse ntfy topic: %w", err)
	}
	base := parsed.Path
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[:idx]
	}
	parsed.Path = base + "/" + channel
	return parsed.String(), nil
}

// Slack posts messages to an incoming webhook.
type Slack struct {
	webhookURL     string
	defaultChannel string
	client         *http.Client
}

// NewSlack builds a Slack webhook notifier.
func NewSlack(webhookURL, defaultChannel string, client *http.Client) *Slack {
	if client == nil {
		client = http.DefaultClient
	}
	return &Slack{
		webhookURL:     strings.TrimSpace(webhookURL),
		defaultChannel: strings.TrimSpace(defaultChannel),
		client:         client,
	}
}

type slackPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// Send posts the message with the title rendered in bold.
func (s *Slack) Send(ctx context.Context, channel string, msg Message) error {
	if strings.TrimSpace(channel) == "" {
		channel = s.defaultChannel
	}
	text := msg.Body
	if msg.Title != "" {
		text = "*" + msg.Title + "*\n" + msg.Body
	}
	body, err := encodeJSON(slackPayload{Channel: strings.TrimSpace(channel), Text: text})
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, body)
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	return doRequest(s.client, req, "slack")
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

// Send delivers to all notifiers even when one fails.
func (m Multi) Send(ctx context.Context, channel string, msg Message) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Send(ctx, channel, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, string, Message) error { return nil }

func doRequest(client *http.Client, req *http.Request, backend string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", backend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s returned %d: %s", backend, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
