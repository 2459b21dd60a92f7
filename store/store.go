// Package store persists raw and processed crashes.
//
// A crash is addressed by its crash id. The raw crash is a string-keyed
// metadata mapping; dumps are opaque binary minidumps delivered as
// temporary files; the processed crash is the pipeline's enriched
// mapping. Storage shapes are dictated by existing consumers and are not
// redesigned here.
package store

import (
	"context"

	"github.com/lonnen/jansky/rule"
)

// CrashStore fetches raw crash artifacts and saves processed results.
//
// GetProcessed returns ErrNotFound for a crash that has never been
// processed; callers treat that as an empty processed crash. ErrNotFound
// from GetRawCrash or GetDumps is fatal for the work item.
type CrashStore interface {
	// GetRawCrash fetches the submitter-supplied metadata mapping.
	GetRawCrash(ctx context.Context, crashID string) (map[string]any, error)

	// GetDumps downloads the crash's binary dumps to temporary files
	// and returns a mapping of dump name to filesystem path. The caller
	// owns the files.
	GetDumps(ctx context.Context, crashID string) (rule.Dumps, error)

	// GetProcessed fetches a previously processed crash, if any.
	GetProcessed(ctx context.Context, crashID string) (map[string]any, error)

	// Save persists the raw and processed crash mappings.
	Save(ctx context.Context, crashID string, raw, processed map[string]any) error

	// Close releases client resources.
	Close() error
}
