package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/lonnen/jansky/iox"
	"github.com/lonnen/jansky/rule"
)

// MemoryStore is an in-process CrashStore for tests and local
// development. Dumps are materialized as temporary files on every
// GetDumps call so callers exercise the same ownership and cleanup paths
// as with real storage.
type MemoryStore struct {
	mu        sync.Mutex
	raw       map[string]map[string]any
	dumps     map[string]map[string][]byte
	processed map[string]map[string]any
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		raw:       make(map[string]map[string]any),
		dumps:     make(map[string]map[string][]byte),
		processed: make(map[string]map[string]any),
	}
}

// PutRawCrash seeds a raw crash. Test setup helper.
func (m *MemoryStore) PutRawCrash(crashID string, raw map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[crashID] = deepCopy(raw)
}

// PutDump seeds a named dump payload. Test setup helper.
func (m *MemoryStore) PutDump(crashID, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dumps[crashID] == nil {
		m.dumps[crashID] = make(map[string][]byte)
	}
	m.dumps[crashID][name] = append([]byte(nil), data...)
}

// GetRawCrash returns a copy of the stored raw crash.
func (m *MemoryStore) GetRawCrash(_ context.Context, crashID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.raw[crashID]
	if !ok {
		return nil, wrapError(ErrNotFound, "get_raw_crash", crashID)
	}
	return deepCopy(raw), nil
}

// GetDumps writes each stored dump to a temporary file and returns the
// name-to-path mapping. Paths carry the TEMPORARY marker so crash
// teardown deletes them.
func (m *MemoryStore) GetDumps(_ context.Context, crashID string) (rule.Dumps, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.dumps[crashID]
	if !ok {
		return nil, wrapError(ErrNotFound, "get_dumps", crashID)
	}

	dumps := make(rule.Dumps, len(stored))
	for name, data := range stored {
		f, err := os.CreateTemp("", fmt.Sprintf("%s.%s.%s.*.dmp", crashID, name, iox.TemporaryMarker))
		if err != nil {
			return nil, wrapError(err, "get_dumps", crashID)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return nil, wrapError(err, "get_dumps", crashID)
		}
		if err := f.Close(); err != nil {
			return nil, wrapError(err, "get_dumps", crashID)
		}
		dumps[name] = f.Name()
	}
	return dumps, nil
}

// GetProcessed returns a copy of the stored processed crash, or
// ErrNotFound if the crash has never been processed.
func (m *MemoryStore) GetProcessed(_ context.Context, crashID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	processed, ok := m.processed[crashID]
	if !ok {
		return nil, wrapError(ErrNotFound, "get_processed", crashID)
	}
	return deepCopy(processed), nil
}

// Save stores copies of the raw and processed crash mappings.
func (m *MemoryStore) Save(_ context.Context, crashID string, raw, processed map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[crashID] = deepCopy(raw)
	m.processed[crashID] = deepCopy(processed)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// deepCopy clones a crash mapping so stored state cannot alias caller
// state. Values are limited to the JSON-shaped types rules produce.
func deepCopy(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case [][2]string:
		return append([][2]string(nil), t...)
	default:
		return t
	}
}

// Verify MemoryStore implements CrashStore.
var _ CrashStore = (*MemoryStore)(nil)
