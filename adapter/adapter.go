// Package adapter defines the completion-event boundary.
//
// Adapters publish crash-processed notifications to downstream systems
// after a crash has been saved and acked. The worker owns adapter
// lifecycle; users provide configuration only. Publishing is best
// effort: a failed publish never un-acks the crash.
package adapter

import "context"

// CrashProcessedEvent is the payload published when a crash finishes
// processing.
type CrashProcessedEvent struct {
	EventType  string `json:"event_type"` // always "crash_processed"
	CrashID    string `json:"crash_id"`
	Product    string `json:"product"`
	Version    string `json:"version"`
	Signature  string `json:"signature"`
	Success    bool   `json:"success"`
	NotesCount int    `json:"notes_count"`
	Timestamp  string `json:"timestamp"` // ISO 8601
	// Partition is the Monday-based weekly partition key (YYYYMMDD) of
	// the processing time, for downstream aggregation consumers.
	Partition  string `json:"partition"`
	DurationMs int64  `json:"duration_ms"`
}

// Adapter publishes crash completion events to a downstream system.
type Adapter interface {
	// Publish sends a completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *CrashProcessedEvent) error

	// Close releases adapter resources.
	Close() error
}
