package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultRequestTimeout = 10 * time.Minute

// Reference is a single machine-extracted entity reference emitted by a
// stage worker.
type Reference struct {
	EntityType string `json:"entity_type"`
	RawText    string `json:"raw_text"`
	Context    string `json:"context,omitempty"`
}

// Discovered describes a hearing found by the discovery worker.
type Discovered struct {
	StateCode   string `json:"state"`
	Title       string `json:"title"`
	HearingDate string `json:"hearing_date"`
	SourceURL   string `json:"source_url"`
}

// RunRequest identifies the hearing a stage worker should process.
type RunRequest struct {
	HearingID int64  `json:"hearing_id,omitempty"`
	StateCode string `json:"state,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

// RunResult is the outcome of one stage worker invocation.
type RunResult struct {
	Cost       float64      `json:"cost"`
	References []Reference  `json:"references,omitempty"`
	Discovered []Discovered `json:"discovered,omitempty"`
	Sources    int          `json:"sources_checked,omitempty"`
}

// Client is the contract a stage worker must satisfy.
type Client interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
	Ping(ctx context.Context) error
}

// Option customizes the HTTP client.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// HTTPClient invokes a stage worker service over HTTP.
type HTTPClient struct {
	stage      string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient constructs a worker client for one stage endpoint.
func NewHTTPClient(stage, baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	client := &HTTPClient{
		stage:      strings.TrimSpace(stage),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Endpoint returns the configured worker base URL.
func (c *HTTPClient) Endpoint() string {
	return c.baseURL
}

// Run invokes the worker's /run endpoint and decodes the outcome.
func (c *HTTPClient) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if c.baseURL == "" {
		return RunResult{}, Wrap(ErrValidation, c.stage, "run", "worker endpoint not configured", nil)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return RunResult{}, Wrap(ErrValidation, c.stage, "run", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(payload))
	if err != nil {
		return RunResult{}, Wrap(ErrWorker, c.stage, "run", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return RunResult{}, Wrap(ErrTimeout, c.stage, "run", "worker call timed out", err)
		}
		return RunResult{}, Wrap(ErrWorker, c.stage, "run", "worker unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RunResult{}, Wrap(ErrWorker, c.stage, "run", "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("worker returned %d", resp.StatusCode)
		if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
			detail = fmt.Sprintf("%s: %s", detail, truncate(trimmed, 200))
		}
		return RunResult{}, Wrap(ErrWorker, c.stage, "run", detail, nil)
	}

	var envelope struct {
		Success bool      `json:"success"`
		Error   string    `json:"error,omitempty"`
		Result  RunResult `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return RunResult{}, Wrap(ErrWorker, c.stage, "run", "decode response", err)
	}
	if !envelope.Success {
		message := envelope.Error
		if message == "" {
			message = "worker reported failure"
		}
		return RunResult{}, Wrap(ErrWorker, c.stage, "run", message, nil)
	}
	return envelope.Result, nil
}

// Ping checks worker reachability via its health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	if c.baseURL == "" {
		return Wrap(ErrValidation, c.stage, "ping", "worker endpoint not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return Wrap(ErrWorker, c.stage, "ping", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Wrap(ErrWorker, c.stage, "ping", "worker unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return Wrap(ErrWorker, c.stage, "ping", fmt.Sprintf("health returned %d", resp.StatusCode), nil)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

var _ Client = (*HTTPClient)(nil)
