// Package queue provides the upstream work-item source.
//
// A source hands out crash ids paired with an opaque ack context. Acking
// confirms end-to-end processing; an item that is never acked is
// redelivered by the source's backing broker.
package queue

import "context"

// AckContext acknowledges one delivered work item. It is opaque to the
// pipeline.
type AckContext interface {
	// Ack positively acknowledges the item. Without it the item is
	// eventually redelivered.
	Ack() error
}

// WorkItem pairs a crash id with its ack context.
type WorkItem struct {
	CrashID string
	Context AckContext
}

// Source yields work items.
type Source interface {
	// Next returns the next work item, or nil when the source is
	// currently exhausted.
	Next(ctx context.Context) (*WorkItem, error)

	// Close releases source resources.
	Close() error
}

// WorkEnvelope is the wire shape of a queued work item.
type WorkEnvelope struct {
	// CrashID is the crash to process.
	CrashID string `msgpack:"crash_id"`
	// EnqueuedAt is the enqueue timestamp in ISO 8601 UTC format.
	EnqueuedAt string `msgpack:"enqueued_at,omitempty"`
	// Attempt counts deliveries, starting at 1.
	Attempt int `msgpack:"attempt,omitempty"`
}
