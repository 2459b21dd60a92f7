package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lonnen/jansky/adapter"
	"github.com/lonnen/jansky/log"
	"github.com/lonnen/jansky/metrics"
	"github.com/lonnen/jansky/queue"
)

// Config configures a worker process.
type Config struct {
	// Source yields work items.
	Source queue.Source
	// Processor runs each crash.
	Processor *Processor
	// Logger receives worker diagnostics.
	Logger *log.Logger
	// Collector records counters; nil disables metrics.
	Collector *metrics.Collector
	// Adapter optionally publishes completion events after ack.
	Adapter adapter.Adapter
	// SleepWhenExhausted is how long to nap on an empty source; a
	// non-positive value exits the loop on exhaustion instead.
	SleepWhenExhausted time.Duration
	// Workers is the number of independent pull loops (default 1).
	// Crash contexts are never shared between them.
	Workers int
}

// Worker runs one or more pull loops over the source.
type Worker struct {
	config Config
}

// New builds a worker.
func New(cfg Config) (*Worker, error) {
	if cfg.Source == nil {
		return nil, errors.New("worker requires a source")
	}
	if cfg.Processor == nil {
		return nil, errors.New("worker requires a processor")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Worker{config: cfg}, nil
}

// Run drives the pull loops until the source is exhausted (with
// exit-on-exhaustion configured) or the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, w.config.Workers)

	for i := 0; i < w.config.Workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			worklist := NewWorklist(w.config.Source, w.config.SleepWhenExhausted, w.config.Logger, w.config.Collector)
			errs[i] = worklist.Run(ctx, w.handle)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return ctx.Err()
}

// handle processes one work item. The item is acked only when fetch,
// pipeline, and save all completed; otherwise it is left for the source
// to redeliver.
func (w *Worker) handle(ctx context.Context, item *queue.WorkItem) {
	logger := w.config.Logger.WithCrashID(item.CrashID)
	logger.Info("processing", nil)

	start := time.Now()
	c, err := w.config.Processor.ProcessOne(ctx, item.CrashID)
	if err != nil {
		// no ack: the source redelivers
		return
	}

	if err := item.Context.Ack(); err != nil {
		w.config.Collector.IncAckFailure()
		logger.Warn("ack failed", map[string]any{"error": err.Error()})
		return
	}
	w.config.Collector.IncItemAcked()

	if w.config.Adapter != nil {
		event := newProcessedEvent(c, time.Since(start))
		if err := w.config.Adapter.Publish(ctx, event); err != nil {
			// best effort: the crash is saved and acked regardless
			logger.Warn("completion publish failed", map[string]any{"error": err.Error()})
		}
	}
}
