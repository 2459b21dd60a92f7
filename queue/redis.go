package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lonnen/jansky/crashid"
	"github.com/lonnen/jansky/timeutil"
)

// DefaultQueueKey is the default Redis list holding pending work.
const DefaultQueueKey = "jansky:crashes"

// DefaultTimeout is the default per-operation timeout.
const DefaultTimeout = 5 * time.Second

// RedisConfig configures the Redis work-item source.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// QueueKey is the pending list name (default: jansky:crashes).
	QueueKey string
	// ProcessingKey is the in-flight list name
	// (default: QueueKey + ":processing").
	ProcessingKey string
	// Timeout is the per-operation timeout (default 5s).
	Timeout time.Duration
}

// RedisSource pulls crash ids from a Redis reliable queue.
//
// Next atomically moves an item from the pending list to a processing
// list; Ack removes it from the processing list. Items left on the
// processing list by a dead worker can be requeued by an external
// sweeper, which keeps no-ack-means-redelivery without broker support.
type RedisSource struct {
	config RedisConfig
	client *goredis.Client
}

// NewRedisSource creates a Redis source from the given config.
// Returns an error if the URL is empty or invalid.
func NewRedisSource(cfg RedisConfig) (*RedisSource, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis source requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis source: invalid URL: %w", err)
	}

	if cfg.QueueKey == "" {
		cfg.QueueKey = DefaultQueueKey
	}
	if cfg.ProcessingKey == "" {
		cfg.ProcessingKey = cfg.QueueKey + ":processing"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &RedisSource{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Next pops the next work item, moving it to the processing list. An
// empty queue yields (nil, nil).
func (s *RedisSource) Next(ctx context.Context) (*WorkItem, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	payload, err := s.client.LMove(opCtx,
		s.config.QueueKey, s.config.ProcessingKey, "LEFT", "RIGHT").Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis source: pop: %w", err)
	}

	var envelope WorkEnvelope
	if err := msgpack.Unmarshal(payload, &envelope); err != nil {
		// Undecodable payloads are dropped from the processing list so
		// they cannot wedge a requeue sweep.
		s.remove(ctx, payload)
		return nil, fmt.Errorf("redis source: undecodable work item: %w", err)
	}
	if err := crashid.Validate(envelope.CrashID); err != nil {
		s.remove(ctx, payload)
		return nil, fmt.Errorf("redis source: %w", err)
	}

	return &WorkItem{
		CrashID: envelope.CrashID,
		Context: &redisAck{source: s, payload: payload},
	}, nil
}

// Enqueue pushes a crash id onto the pending list. Used by seeding
// tools and tests; production traffic arrives from the collector.
func (s *RedisSource) Enqueue(ctx context.Context, crashID string) error {
	if err := crashid.Validate(crashID); err != nil {
		return err
	}
	payload, err := msgpack.Marshal(&WorkEnvelope{
		CrashID:    crashID,
		EnqueuedAt: timeutil.DateToString(timeutil.UTCNow()),
		Attempt:    1,
	})
	if err != nil {
		return fmt.Errorf("redis source: marshal: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	if err := s.client.RPush(opCtx, s.config.QueueKey, payload).Err(); err != nil {
		return fmt.Errorf("redis source: enqueue: %w", err)
	}
	return nil
}

// remove deletes a payload from the processing list, best effort.
func (s *RedisSource) remove(ctx context.Context, payload []byte) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.Timeout)
	defer cancel()
	_ = s.client.LRem(opCtx, s.config.ProcessingKey, 1, payload).Err()
}

// Close releases source resources.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

// redisAck removes the acked payload from the processing list.
type redisAck struct {
	source  *RedisSource
	payload []byte
}

func (a *redisAck) Ack() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.source.config.Timeout)
	defer cancel()
	if err := a.source.client.LRem(ctx,
		a.source.config.ProcessingKey, 1, a.payload).Err(); err != nil {
		return fmt.Errorf("redis source: ack: %w", err)
	}
	return nil
}

// Verify RedisSource implements Source.
var _ Source = (*RedisSource)(nil)
