package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mediabatch/internal/logging"
	"mediabatch/internal/services"
	"mediabatch/internal/source"
	"mediabatch/internal/transcript"
)

const (
	apiVersion            = "v1beta"
	defaultBaseURL        = "https://generativelanguage.googleapis.com"
	defaultModel          = "gemini-2.5-flash"
	defaultHTTPTimeout    = 10 * time.Minute
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultPollTimeout    = 10 * time.Minute
	cleanupTimeout        = 15 * time.Second
	jsonMimeType          = "application/json"
)

// File states reported by the files API.
const (
	StateProcessing = "PROCESSING"
	StateActive     = "ACTIVE"
	StateFailed     = "FAILED"
)

// Config captures the runtime settings required to talk to Gemini.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	PollInterval   time.Duration
	PollTimeout    time.Duration
}

// Client talks to the Gemini REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the total attempts per HTTP call (defaults to 1).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry and poll sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a Gemini client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
			PollInterval:   cfg.PollInterval,
			PollTimeout:    cfg.PollTimeout,
		},
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logging.NewNop(),
		retryMaxAttempts: 1,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.cfg.PollInterval <= 0 {
		client.cfg.PollInterval = defaultPollInterval
	}
	if client.cfg.PollTimeout <= 0 {
		client.cfg.PollTimeout = defaultPollTimeout
	}
	client.logger = logging.NewComponentLogger(client.logger, "gemini")
	return client
}

// Model returns the model name used for generation.
func (c *Client) Model() string {
	return c.cfg.Model
}

// File is the files API resource.
type File struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Submit uploads the audio at path, waits for it to become usable, and returns
// the model's structured transcription.
func (c *Client) Submit(ctx context.Context, path, prompt string) (transcript.Result, error) {
	if c.cfg.APIKey == "" {
		return transcript.Result{}, services.Wrap(services.ErrConfiguration, "gemini", "submit", "api key required", nil)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = TranscriptionPrompt
	}
	info, err := os.Stat(path)
	if err != nil {
		return transcript.Result{}, services.Wrap(services.ErrInference, "gemini", "submit", path, err)
	}
	started := time.Now()

	file, err := c.upload(ctx, path, info.Size())
	if err != nil {
		return transcript.Result{}, services.Wrap(services.ErrInference, "gemini", "upload", filepath.Base(path), err)
	}
	defer c.deleteFile(ctx, file.Name)

	file, err = c.waitActive(ctx, file)
	if err != nil {
		return transcript.Result{}, err
	}

	reply, err := c.generate(ctx, file, prompt)
	if err != nil {
		return transcript.Result{}, err
	}

	result := transcript.Parse(reply.text)
	result.InputTokens = reply.usage.PromptTokenCount
	result.OutputTokens = reply.usage.CandidatesTokenCount
	result.ProcessingTime = time.Since(started).Seconds()
	result.Model = c.cfg.Model
	result.FileName = filepath.Base(path)
	result.FileSizeMB = float64(info.Size()) / (1024 * 1024)
	c.logger.Info("transcription completed",
		logging.String("file", result.FileName),
		logging.Int64("input_tokens", result.InputTokens),
		logging.Int64("output_tokens", result.OutputTokens),
		logging.Float64("processing_seconds", result.ProcessingTime),
	)
	return result, nil
}

func (c *Client) upload(ctx context.Context, path string, size int64) (File, error) {
	mimeType := source.MimeType(path)
	meta, err := json.Marshal(map[string]any{"file": map[string]string{"display_name": filepath.Base(path)}})
	if err != nil {
		return File{}, fmt.Errorf("encode metadata: %w", err)
	}
	startResp, err := c.do(ctx, "start upload", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload/"+apiVersion+"/files", bytes.NewReader(meta))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Goog-Upload-Protocol", "resumable")
		req.Header.Set("X-Goog-Upload-Command", "start")
		req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
		req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
		req.Header.Set("Content-Type", jsonMimeType)
		return req, nil
	})
	if err != nil {
		return File{}, err
	}
	uploadURL := strings.TrimSpace(startResp.Header.Get("X-Goog-Upload-URL"))
	if uploadURL == "" {
		return File{}, errors.New("start upload: missing upload url")
	}

	finishResp, err := c.do(ctx, "upload bytes", func(ctx context.Context) (*http.Request, error) {
		body, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
		if err != nil {
			body.Close()
			return nil, err
		}
		req.ContentLength = size
		req.Header.Set("X-Goog-Upload-Offset", "0")
		req.Header.Set("X-Goog-Upload-Command", "upload, finalize")
		return req, nil
	})
	if err != nil {
		return File{}, err
	}
	var uploaded struct {
		File File `json:"file"`
	}
	if err := json.Unmarshal(finishResp.Body, &uploaded); err != nil {
		return File{}, fmt.Errorf("decode upload response: %w", err)
	}
	if uploaded.File.Name == "" {
		return File{}, errors.New("upload response missing file name")
	}
	c.logger.Debug("uploaded audio",
		logging.String("file", filepath.Base(path)),
		logging.String("name", uploaded.File.Name),
		logging.String("state", uploaded.File.State),
	)
	return uploaded.File, nil
}

// waitActive polls at a fixed interval while the file is PROCESSING, giving up
// once the poll timeout has elapsed.
func (c *Client) waitActive(ctx context.Context, file File) (File, error) {
	polls := int(c.cfg.PollTimeout / c.cfg.PollInterval)
	if polls < 1 {
		polls = 1
	}
	for attempt := 0; ; attempt++ {
		switch file.State {
		case StateActive, "":
			if file.URI != "" {
				return file, nil
			}
		case StateFailed:
			detail := "file processing failed"
			if file.Error != nil && file.Error.Message != "" {
				detail += ": " + file.Error.Message
			}
			return File{}, services.Wrap(services.ErrInference, "gemini", "poll", detail, nil)
		}
		if attempt >= polls {
			return File{}, services.Wrap(services.ErrInference, "gemini", "poll", "file processing timed out", nil)
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return File{}, services.Wrap(services.ErrInference, "gemini", "poll", file.Name, err)
		}
		next, err := c.getFile(ctx, file.Name)
		if err != nil {
			return File{}, services.Wrap(services.ErrInference, "gemini", "poll", file.Name, err)
		}
		file = next
	}
}

func (c *Client) getFile(ctx context.Context, name string) (File, error) {
	resp, err := c.do(ctx, "get file", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL(name), nil)
	})
	if err != nil {
		return File{}, err
	}
	var file File
	if err := json.Unmarshal(resp.Body, &file); err != nil {
		return File{}, fmt.Errorf("decode file: %w", err)
	}
	return file, nil
}

// deleteFile removes the uploaded file. Failures are logged only.
func (c *Client) deleteFile(ctx context.Context, name string) {
	if name == "" {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	_, err := c.do(cleanupCtx, "delete file", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.resourceURL(name), nil)
	})
	if err != nil {
		c.logger.Debug("uploaded file cleanup failed", logging.String("name", name), logging.Error(err))
	}
}

func (c *Client) resourceURL(name string) string {
	return c.cfg.BaseURL + "/" + apiVersion + "/" + strings.TrimPrefix(name, "/")
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

// UsageMetadata holds token accounting for one generateContent call.
type UsageMetadata struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata UsageMetadata `json:"usageMetadata"`
}

type generated struct {
	text  string
	usage UsageMetadata
}

func (c *Client) generate(ctx context.Context, file File, prompt string) (generated, error) {
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = source.MimeType(file.Name)
	}
	payload := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: prompt},
				{FileData: &fileData{MimeType: mimeType, FileURI: file.URI}},
			},
		}},
		GenerationConfig: generationConfig{ResponseMimeType: jsonMimeType},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return generated{}, services.Wrap(services.ErrInference, "gemini", "generate", "encode request", err)
	}
	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent", c.cfg.BaseURL, apiVersion, c.cfg.Model)
	resp, err := c.do(ctx, "generate content", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", jsonMimeType)
		return req, nil
	})
	if err != nil {
		return generated{}, services.Wrap(services.ErrInference, "gemini", "generate", c.cfg.Model, err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return generated{}, services.Wrap(services.ErrInference, "gemini", "generate", "decode response", err)
	}
	var text strings.Builder
	finishReason := ""
	for _, candidate := range decoded.Candidates {
		if finishReason == "" {
			finishReason = candidate.FinishReason
		}
		for _, p := range candidate.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		detail := fmt.Sprintf("empty response (finish_reason=%q)", finishReason)
		if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
			detail = fmt.Sprintf("prompt blocked (%s)", decoded.PromptFeedback.BlockReason)
		}
		return generated{}, services.Wrap(services.ErrInference, "gemini", "generate", detail, nil)
	}
	return generated{text: text.String(), usage: decoded.UsageMetadata}, nil
}

// HealthCheck lists models to verify the API key and endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "gemini", "health", "api key required", nil)
	}
	resp, err := c.do(ctx, "list models", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/"+apiVersion+"/models?pageSize=1", nil)
	})
	if err != nil {
		return services.Wrap(services.ErrInference, "gemini", "health", "", err)
	}
	var listed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(resp.Body, &listed); err != nil {
		return services.Wrap(services.ErrInference, "gemini", "health", "decode models", err)
	}
	return nil
}
