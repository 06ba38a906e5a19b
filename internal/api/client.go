package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mediabatch/internal/jobs"
	"mediabatch/internal/services"
	"mediabatch/internal/usage"
)

const defaultClientTimeout = 15 * time.Second

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code back onto a services sentinel.
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusBadRequest:
		return services.ErrValidation
	case http.StatusServiceUnavailable:
		return services.ErrConfiguration
	default:
		return nil
	}
}

// Client calls the daemon HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for the daemon listening on bind, which may be a
// bare host:port or a full URL.
func NewClient(bind string, httpClient *http.Client) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address is empty")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{base: base, http: httpClient}, nil
}

// BaseURL returns the resolved daemon address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Submit queues a transcription job.
func (c *Client) Submit(ctx context.Context, req TranscribeRequest) (TranscribeResponse, error) {
	var resp TranscribeResponse
	err := c.do(ctx, http.MethodPost, "/transcribe", req, &resp)
	return resp, err
}

// Job fetches the status of one job.
func (c *Client) Job(ctx context.Context, id string) (JobStatus, error) {
	var resp JobStatus
	err := c.do(ctx, http.MethodGet, "/transcribe/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Results fetches the outcomes of a completed job.
func (c *Client) Results(ctx context.Context, id string) (jobs.Results, error) {
	var resp jobs.Results
	err := c.do(ctx, http.MethodGet, "/transcribe/"+url.PathEscape(id)+"/results", nil, &resp)
	return resp, err
}

// Jobs lists every job known to the daemon.
func (c *Client) Jobs(ctx context.Context) (JobListResponse, error) {
	var resp JobListResponse
	err := c.do(ctx, http.MethodGet, "/jobs", nil, &resp)
	return resp, err
}

// Usage fetches cumulative usage statistics.
func (c *Client) Usage(ctx context.Context) (usage.Stats, error) {
	var resp usage.Stats
	err := c.do(ctx, http.MethodGet, "/usage", nil, &resp)
	return resp, err
}

// BurnRate fetches today's spend and the monthly projection.
func (c *Client) BurnRate(ctx context.Context) (usage.BurnRate, error) {
	var resp usage.BurnRate
	err := c.do(ctx, http.MethodGet, "/usage/burn-rate", nil, &resp)
	return resp, err
}

// SetTier switches the active pricing tier.
func (c *Client) SetTier(ctx context.Context, tier string) (TierResponse, error) {
	var resp TierResponse
	err := c.do(ctx, http.MethodPost, "/usage/tier", TierRequest{Tier: tier}, &resp)
	return resp, err
}

// ResetUsage clears all usage counters.
func (c *Client) ResetUsage(ctx context.Context) (MessageResponse, error) {
	var resp MessageResponse
	err := c.do(ctx, http.MethodPost, "/usage/reset", nil, &resp)
	return resp, err
}

// Health fetches the daemon health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var payload ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
