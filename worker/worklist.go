package worker

import (
	"context"
	"time"

	"github.com/lonnen/jansky/log"
	"github.com/lonnen/jansky/metrics"
	"github.com/lonnen/jansky/queue"
)

// Worklist generates work items from a source.
//
// When the source is exhausted it sleeps for sleepWhenExhausted and
// tries again; a non-positive sleep means the loop returns instead.
// Source errors are logged and the loop continues — the source is
// responsible for its own recovery.
type Worklist struct {
	source             queue.Source
	sleepWhenExhausted time.Duration
	logger             *log.Logger
	collector          *metrics.Collector
}

// NewWorklist builds a worklist over the given source.
func NewWorklist(source queue.Source, sleepWhenExhausted time.Duration, logger *log.Logger, collector *metrics.Collector) *Worklist {
	return &Worklist{
		source:             source,
		sleepWhenExhausted: sleepWhenExhausted,
		logger:             logger,
		collector:          collector,
	}
}

// Run pulls items and hands each to handle. Cancellation is honored
// between items; an item already handed off runs to completion. Returns
// nil when the source is exhausted and exit-on-exhaustion is configured,
// or the context error on cancellation.
func (w *Worklist) Run(ctx context.Context, handle func(ctx context.Context, item *queue.WorkItem)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.collector.IncQueueError()
			w.logger.Warn("work item pull failed", map[string]any{"error": err.Error()})
			continue
		}

		if item != nil {
			handle(ctx, item)
			continue
		}

		if w.sleepWhenExhausted <= 0 {
			return nil
		}
		w.collector.IncExhaustionNap()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.sleepWhenExhausted):
		}
	}
}
