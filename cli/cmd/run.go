package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lonnen/jansky/adapter"
	adapterredis "github.com/lonnen/jansky/adapter/redis"
	"github.com/lonnen/jansky/adapter/webhook"
	"github.com/lonnen/jansky/cli/config"
	"github.com/lonnen/jansky/iox"
	"github.com/lonnen/jansky/log"
	"github.com/lonnen/jansky/metrics"
	"github.com/lonnen/jansky/queue"
	"github.com/lonnen/jansky/store"
	"github.com/lonnen/jansky/worker"
)

// RunCommand returns the run command: the worker loop itself.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Consume crash ids from the queue and process them",
		Flags:  RunFlags(),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := resolveConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	level, err := log.ParseLevel(cfg.LoggingLevel)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	logger := log.NewLogger(level)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	crashStore, err := buildStore(ctx, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage: %v", err), 1)
	}
	defer iox.DiscardClose(crashStore)

	source, err := buildSource(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("queue: %v", err), 1)
	}
	defer iox.DiscardClose(source)

	completion, err := buildAdapter(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter: %v", err), 1)
	}
	if completion != nil {
		defer iox.DiscardClose(completion)
	}

	collector := metrics.NewCollector("redis", cfg.Storage.Backend)

	processor := worker.NewProcessor(worker.ProcessorConfig{
		Store:              crashStore,
		Logger:             logger,
		Collector:          collector,
		Deadline:           cfg.Deadline.Duration,
		StackwalkerCommand: cfg.Stackwalker.Command,
		StackwalkerArgs:    cfg.Stackwalker.Args,
		StackwalkerTimeout: cfg.Stackwalker.Timeout.Duration,
	})

	w, err := worker.New(worker.Config{
		Source:             source,
		Processor:          processor,
		Logger:             logger,
		Collector:          collector,
		Adapter:            completion,
		SleepWhenExhausted: time.Duration(cfg.SleepWhenExhausted) * time.Second,
		Workers:            cfg.Workers,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger.Info("worker starting", map[string]any{
		"workers":              cfg.Workers,
		"sleep_when_exhausted": cfg.SleepWhenExhausted,
		"storage_backend":      cfg.Storage.Backend,
	})

	runErr := w.Run(ctx)

	snap := collector.Snapshot()
	logger.Info("worker stopped", map[string]any{
		"crashes_started":   snap.CrashesStarted,
		"crashes_completed": snap.CrashesCompleted,
		"crashes_failed":    snap.CrashesFailed,
		"items_acked":       snap.ItemsAcked,
		"queue_errors":      snap.QueueErrors,
	})

	if runErr != nil && ctx.Err() == nil {
		return cli.Exit(fmt.Sprintf("worker: %v", runErr), 1)
	}
	return nil
}

// resolveConfig merges the config file (if any) with flag overrides.
func resolveConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v := c.String("logging-level"); v != "" {
		cfg.LoggingLevel = v
	}
	if c.IsSet("sleep-when-exhausted") {
		cfg.SleepWhenExhausted = c.Int("sleep-when-exhausted")
	}
	if v := c.Int("workers"); v > 0 {
		cfg.Workers = v
	}
	if v := c.String("queue-url"); v != "" {
		cfg.Queue.URL = v
	}
	return cfg, nil
}

// buildStore constructs the crash store from config.
func buildStore(ctx context.Context, cfg *config.Config) (store.CrashStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return store.NewS3Store(ctx, store.S3Config{
			Bucket:       cfg.Storage.Bucket,
			Prefix:       cfg.Storage.Prefix,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.S3PathStyle,
		})
	case "memory":
		// local smoke testing only; nothing persists
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildSource constructs the work-item source from config.
func buildSource(cfg *config.Config) (queue.Source, error) {
	return queue.NewRedisSource(queue.RedisConfig{
		URL:           cfg.Queue.URL,
		QueueKey:      cfg.Queue.Key,
		ProcessingKey: cfg.Queue.ProcessingKey,
		Timeout:       cfg.Queue.Timeout.Duration,
	})
}

// buildAdapter constructs the optional completion adapter. No adapter
// type configured means no completion events.
func buildAdapter(cfg *config.Config) (adapter.Adapter, error) {
	retries := -1
	if cfg.Adapter.Retries != nil {
		retries = *cfg.Adapter.Retries
	}

	switch cfg.Adapter.Type {
	case "":
		return nil, nil
	case "webhook":
		wcfg := webhook.Config{
			URL:     cfg.Adapter.URL,
			Headers: cfg.Adapter.Headers,
			Timeout: cfg.Adapter.Timeout.Duration,
		}
		if retries >= 0 {
			wcfg.Retries = retries
		} else {
			wcfg.Retries = webhook.DefaultRetries
		}
		return webhook.New(wcfg)
	case "redis":
		rcfg := adapterredis.Config{
			URL:     cfg.Adapter.URL,
			Channel: cfg.Adapter.Channel,
			Timeout: cfg.Adapter.Timeout.Duration,
		}
		if retries >= 0 {
			rcfg.Retries = retries
		} else {
			rcfg.Retries = adapterredis.DefaultRetries
		}
		return adapterredis.New(rcfg)
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Adapter.Type)
	}
}
