// Package webhook implements an HTTP POST completion adapter.
//
// Publishes crash-processed events as JSON to a configurable URL. Each
// request is keyed by crash id so receivers can deduplicate redelivered
// crashes; a 409 from the receiver therefore counts as delivered.
// Transient failures retry with a linear backoff, honoring Retry-After
// when the receiver sends one.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lonnen/jansky/adapter"
	"github.com/lonnen/jansky/iox"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// retryStep is the backoff unit; attempt N waits N*retryStep unless the
// receiver asked for more via Retry-After.
const retryStep = 250 * time.Millisecond

// maxRetryAfter caps how long a Retry-After header can stall the worker.
// Crashes queue up behind a slow receiver otherwise.
const maxRetryAfter = 30 * time.Second

// Config configures the webhook adapter.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure. New takes the
	// value as given, so zero means a single attempt; the run command
	// supplies DefaultRetries when the config file sets none.
	Retries int
}

// Adapter publishes crash completion events via HTTP POST.
type Adapter struct {
	config Config
	client *http.Client
}

// New creates a webhook adapter from the given config.
// Returns an error if the URL is empty.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Publish delivers the event, retrying transient failures. Client errors
// other than 409 and 429 fail immediately; everything the receiver might
// recover from (5xx, 429, network trouble) retries until the attempt
// budget runs out.
func (a *Adapter) Publish(ctx context.Context, event *adapter.CrashProcessedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	for attempt := 0; ; attempt++ {
		retryAfter, err := a.post(ctx, event.CrashID, body)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return fmt.Errorf("webhook: %w", err)
		}
		if attempt >= a.config.Retries {
			return fmt.Errorf("webhook: failed after %d attempts: %w", attempt+1, err)
		}

		wait := time.Duration(attempt+1) * retryStep
		if retryAfter > wait {
			wait = min(retryAfter, maxRetryAfter)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("webhook: canceled during backoff: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// retryable reports whether another attempt could succeed. Network-level
// failures always qualify; for HTTP responses only 429 and 5xx do.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	return true
}

// post performs a single delivery attempt. The duration is the
// receiver's Retry-After wish, when it sent one.
func (a *Adapter) post(ctx context.Context, crashID string, body []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	// Crashes can be redelivered and reprocessed; the crash id lets the
	// receiver collapse duplicates.
	req.Header.Set("Idempotency-Key", crashID)
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return 0, nil
	case resp.StatusCode == http.StatusConflict:
		// the receiver already has this crash; delivered
		return 0, nil
	default:
		return parseRetryAfter(resp.Header.Get("Retry-After")), &StatusError{Code: resp.StatusCode}
	}
}

// parseRetryAfter reads a seconds-valued Retry-After header. HTTP-date
// values and garbage yield zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
