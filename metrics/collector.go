// Package metrics provides in-process counters for the worker.
//
// The Collector accumulates counts for the lifetime of one worker
// process. It is a leaf package with no internal dependencies; external
// metrics sinks consume Snapshot.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the collected counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	// Crash lifecycle
	CrashesStarted   int64
	CrashesCompleted int64
	CrashesFailed    int64

	// Failure classification
	FetchFailures int64
	SaveFailures  int64
	RuleFailures  int64
	AckFailures   int64

	// Worklist
	QueueErrors    int64
	ExhaustionNaps int64
	ItemsAcked     int64

	// Dimensions (informational, set at construction)
	QueueBackend   string
	StorageBackend string
}

// Collector accumulates worker counters. Thread-safe via sync.Mutex.
// All increment methods are nil-receiver safe so wiring metrics stays
// optional.
type Collector struct {
	mu sync.Mutex

	crashesStarted   int64
	crashesCompleted int64
	crashesFailed    int64

	fetchFailures int64
	saveFailures  int64
	ruleFailures  int64
	ackFailures   int64

	queueErrors    int64
	exhaustionNaps int64
	itemsAcked     int64

	queueBackend   string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(queueBackend, storageBackend string) *Collector {
	return &Collector{
		queueBackend:   queueBackend,
		storageBackend: storageBackend,
	}
}

func (c *Collector) inc(field *int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// IncCrashStarted records a crash entering the pipeline.
func (c *Collector) IncCrashStarted() {
	if c == nil {
		return
	}
	c.inc(&c.crashesStarted)
}

// IncCrashCompleted records a crash processed and saved end-to-end.
func (c *Collector) IncCrashCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.crashesCompleted)
}

// IncCrashFailed records a crash rejected before completion.
func (c *Collector) IncCrashFailed() {
	if c == nil {
		return
	}
	c.inc(&c.crashesFailed)
}

// IncFetchFailure records a raw artifact fetch failure.
func (c *Collector) IncFetchFailure() {
	if c == nil {
		return
	}
	c.inc(&c.fetchFailures)
}

// IncSaveFailure records a processed crash save failure.
func (c *Collector) IncSaveFailure() {
	if c == nil {
		return
	}
	c.inc(&c.saveFailures)
}

// IncRuleFailure records a transformation rule failure.
func (c *Collector) IncRuleFailure() {
	if c == nil {
		return
	}
	c.inc(&c.ruleFailures)
}

// IncAckFailure records an ack that could not reach the queue.
func (c *Collector) IncAckFailure() {
	if c == nil {
		return
	}
	c.inc(&c.ackFailures)
}

// IncQueueError records a failed pull from the source.
func (c *Collector) IncQueueError() {
	if c == nil {
		return
	}
	c.inc(&c.queueErrors)
}

// IncExhaustionNap records a sleep on an empty queue.
func (c *Collector) IncExhaustionNap() {
	if c == nil {
		return
	}
	c.inc(&c.exhaustionNaps)
}

// IncItemAcked records a successful ack.
func (c *Collector) IncItemAcked() {
	if c == nil {
		return
	}
	c.inc(&c.itemsAcked)
}

// Snapshot returns a consistent copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		CrashesStarted:   c.crashesStarted,
		CrashesCompleted: c.crashesCompleted,
		CrashesFailed:    c.crashesFailed,
		FetchFailures:    c.fetchFailures,
		SaveFailures:     c.saveFailures,
		RuleFailures:     c.ruleFailures,
		AckFailures:      c.ackFailures,
		QueueErrors:      c.queueErrors,
		ExhaustionNaps:   c.exhaustionNaps,
		ItemsAcked:       c.itemsAcked,
		QueueBackend:     c.queueBackend,
		StorageBackend:   c.storageBackend,
	}
}
