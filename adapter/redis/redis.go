// Package redis implements a Redis pub/sub completion adapter.
//
// Crash-processed events go out as JSON on a firehose channel, and again
// on a per-product channel so consumers can subscribe to just the
// product they care about. Transient connection failures are retried by
// the client itself via go-redis's built-in retry/backoff.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lonnen/jansky/adapter"
)

// DefaultChannel is the default firehose channel name.
const DefaultChannel = "jansky:crash_processed"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the firehose channel name (default: jansky:crash_processed).
	// Per-product events go to "<Channel>:<product>", lowercased.
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure. New takes the
	// value as given, so zero means no retries; the run command supplies
	// DefaultRetries when the config file sets none.
	Retries int
}

// Adapter publishes crash completion events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	// Retrying is the client's job: each command gets Retries extra
	// attempts with backoff before Publish sees an error at all.
	opts.MaxRetries = cfg.Retries
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 2 * time.Second

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends the event as JSON to the firehose channel and to the
// event's product channel. Pub/sub has no receipt to deduplicate on, so
// unlike the webhook adapter there is no idempotency handshake;
// subscribers receive a redelivered crash's event again.
func (a *Adapter) Publish(ctx context.Context, event *adapter.CrashProcessedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	if err := a.client.Publish(opCtx, a.config.Channel, body).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", a.config.Channel, err)
	}

	if channel := a.productChannel(event.Product); channel != "" {
		if err := a.client.Publish(opCtx, channel, body).Err(); err != nil {
			return fmt.Errorf("redis: publish %s: %w", channel, err)
		}
	}
	return nil
}

// productChannel derives the per-product channel name, or "" when the
// crash carries no usable product.
func (a *Adapter) productChannel(product string) string {
	product = strings.ToLower(strings.TrimSpace(product))
	if product == "" {
		return ""
	}
	return a.config.Channel + ":" + product
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
