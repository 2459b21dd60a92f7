// Package crash holds the in-memory aggregate for a single crash event
// and its processing lifecycle.
//
// A Crash moves through fetch → transform → save. Each work item owns
// its Crash exclusively; rules receive the internal mappings by
// reference and there is no locking within the pipeline.
//
// Usage:
//
//	c := crash.New(crashID)
//	defer c.Close()
//	if err := c.Fetch(ctx, st, false); err != nil { ... }
//	if err := c.Pipeline(false, rules...); err != nil { ... }
//	if err := c.Save(ctx, st, false); err != nil { ... }
package crash

import (
	"context"
	"errors"
	"fmt"

	"github.com/lonnen/jansky/iox"
	"github.com/lonnen/jansky/rule"
	"github.com/lonnen/jansky/store"
)

// Crash is the aggregate for one crash event: the immutable crash id,
// the submitter-supplied raw header, the binary dumps (by temp-file
// path), the processed view built up by the pipeline, and the log of
// suppressed transformation failures.
type Crash struct {
	crashID string

	// RawCrash carries the submitter-supplied metadata.
	RawCrash map[string]any

	// Dumps maps dump names to filesystem paths of the binary minidumps.
	Dumps rule.Dumps

	// ProcessedCrash is the enriched mapping built by the pipeline.
	ProcessedCrash map[string]any

	// Errors stores suppressed failures captured during transformation,
	// append-only for the lifetime of the crash.
	Errors []error
}

// New constructs a Crash for the given id with empty state.
func New(crashID string) *Crash {
	return &Crash{
		crashID:        crashID,
		RawCrash:       map[string]any{},
		Dumps:          rule.Dumps{},
		ProcessedCrash: map[string]any{},
	}
}

// ID returns the crash id. It is immutable after construction.
func (c *Crash) ID() string { return c.crashID }

// Transform applies one rule to the crash state.
//
// With suppress false (the default at every call site) a rule failure is
// returned to the caller. With suppress true the failure is appended to
// Errors and processing may continue; historically transformation
// failures were not treated as fatal, but silencing failure stays
// explicit.
func (c *Crash) Transform(r rule.Rule, suppress bool) error {
	err := rule.Apply(r, c.crashID, c.RawCrash, c.Dumps, c.ProcessedCrash)
	if err == nil {
		return nil
	}
	if suppress {
		c.Errors = append(c.Errors, err)
		return nil
	}
	return err
}

// Pipeline applies rules in order. Under suppression the chain continues
// past individual failures; otherwise the first failure aborts.
func (c *Crash) Pipeline(suppress bool, rules ...rule.Rule) error {
	for _, r := range rules {
		if err := c.Transform(r, suppress); err != nil {
			return err
		}
	}
	return nil
}

// Fetch pulls the raw crash, dumps, and any pre-existing processed crash
// from the store, overwriting local state. A missing processed crash is
// normal (first processing) and yields an empty mapping; a missing raw
// crash or dump set is fatal. Network failures here are generally fatal
// and should not be suppressed.
func (c *Crash) Fetch(ctx context.Context, st store.CrashStore, suppress bool) error {
	return c.Transform(fetchRule{ctx: ctx, store: st, crash: c}, suppress)
}

// Save writes the raw and processed crash back to the store,
// overwriting the remote representation with this object's state.
// Errors here are generally fatal and should not be suppressed.
func (c *Crash) Save(ctx context.Context, st store.CrashStore, suppress bool) error {
	return c.Transform(saveRule{ctx: ctx, store: st}, suppress)
}

// Close releases resources owned by the crash. Dump files whose path
// carries the TEMPORARY marker are unlinked regardless of processing
// outcome. Call via defer so cleanup runs on every exit path.
func (c *Crash) Close() error {
	var errs []error
	for name, path := range c.Dumps {
		if _, err := iox.RemoveIfTemporary(path); err != nil {
			errs = append(errs, fmt.Errorf("removing dump %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// fetchRule is the built-in fetch transformation. It closes over the
// store and context because the rule contract has neither.
type fetchRule struct {
	ctx   context.Context
	store store.CrashStore
	crash *Crash
}

func (fetchRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (r fetchRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	fetched, err := r.store.GetRawCrash(r.ctx, crashID)
	if err != nil {
		return err
	}
	fetchedDumps, err := r.store.GetDumps(r.ctx, crashID)
	if err != nil {
		return err
	}

	// NotFound on the processed crash means first processing.
	fetchedProcessed, err := r.store.GetProcessed(r.ctx, crashID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if fetchedProcessed == nil {
		fetchedProcessed = map[string]any{}
	}

	r.crash.RawCrash = fetched
	r.crash.Dumps = fetchedDumps
	r.crash.ProcessedCrash = fetchedProcessed
	return nil
}

// saveRule is the built-in save transformation.
type saveRule struct {
	ctx   context.Context
	store store.CrashStore
}

func (saveRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (r saveRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	return r.store.Save(r.ctx, crashID, raw, processed)
}
