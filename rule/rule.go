// Package rule defines the transformation contract applied to crash state.
//
// A rule is a predicate/action pair. The predicate decides whether the
// action runs and must not mutate state; the action may rewrite the raw
// and processed crash mappings (and the dump set, if it extracts
// sub-artifacts). Rules have no identity: they are created once and
// applied to many crashes, and are expected to be idempotent under
// repeated application to the same crash.
//
// Usage:
//
//	r := rule.Func(func(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
//		processed["crash_id"] = raw["uuid"]
//		return nil
//	})
//	err := rule.Apply(r, crashID, rawCrash, dumps, processedCrash)
package rule

import (
	"go.uber.org/zap"
)

// Dumps maps dump names to filesystem paths of binary minidumps.
type Dumps map[string]string

// Rule transforms crash state.
type Rule interface {
	// Predicate reports whether the action should run. It must not
	// mutate any of its arguments.
	Predicate(crashID string, raw map[string]any, dumps Dumps, processed map[string]any) bool

	// Action applies the transformation. It runs only when the
	// predicate returned true. Failures propagate to the caller; rules
	// do not catch their own unexpected errors.
	Action(crashID string, raw map[string]any, dumps Dumps, processed map[string]any) error
}

// Apply is the callable form of a rule: action iff predicate.
func Apply(r Rule, crashID string, raw map[string]any, dumps Dumps, processed map[string]any) error {
	if !r.Predicate(crashID, raw, dumps, processed) {
		return nil
	}
	return r.Action(crashID, raw, dumps, processed)
}

// ApplyUntilSuccess applies rules in order and stops at the first one
// whose predicate matched and whose action completed without error.
// Classifier rule sets use this policy: the first classification wins.
func ApplyUntilSuccess(crashID string, raw map[string]any, dumps Dumps, processed map[string]any, rules ...Rule) error {
	var lastErr error
	for _, r := range rules {
		if !r.Predicate(crashID, raw, dumps, processed) {
			continue
		}
		if err := r.Action(crashID, raw, dumps, processed); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// Func adapts a bare transformation function into a Rule whose predicate
// is always true.
type Func func(crashID string, raw map[string]any, dumps Dumps, processed map[string]any) error

// Predicate always returns true.
func (f Func) Predicate(string, map[string]any, Dumps, map[string]any) bool { return true }

// Action invokes the function.
func (f Func) Action(crashID string, raw map[string]any, dumps Dumps, processed map[string]any) error {
	return f(crashID, raw, dumps, processed)
}

// Identity is a no-op transformation that always proceeds.
type Identity struct{}

func (Identity) Predicate(string, map[string]any, Dumps, map[string]any) bool { return true }

func (Identity) Action(string, map[string]any, Dumps, map[string]any) error { return nil }

// Introspector logs the current crash state without transforming it.
type Introspector struct {
	Logger *zap.Logger
}

func (r Introspector) Predicate(string, map[string]any, Dumps, map[string]any) bool { return true }

func (r Introspector) Action(crashID string, raw map[string]any, dumps Dumps, processed map[string]any) error {
	r.Logger.Info("crash state",
		zap.String("crash_id", crashID),
		zap.Any("raw_crash", raw),
		zap.Any("dumps", dumps),
		zap.Any("processed_crash", processed),
	)
	return nil
}

// UUIDCorrection sets the uuid in the raw crash if it is missing. This
// happened between load and transform in older processors; it is a rule
// here so reprocessing tolerates it.
type UUIDCorrection struct{}

func (UUIDCorrection) Predicate(crashID string, raw map[string]any, dumps Dumps, processed map[string]any) bool {
	_, ok := raw["uuid"]
	return !ok
}

func (UUIDCorrection) Action(crashID string, raw map[string]any, dumps Dumps, processed map[string]any) error {
	raw["uuid"] = crashID
	return nil
}
