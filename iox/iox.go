// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"io"
	"os"
	"strings"
)

// TemporaryMarker identifies dump files the processor owns. Paths
// containing this substring are deleted when their crash is torn down;
// anything else is left alone.
const TemporaryMarker = "TEMPORARY"

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// RemoveIfTemporary unlinks path if it carries the TemporaryMarker.
// Returns true when a removal was attempted. A missing file is not an
// error; the path is gone either way.
func RemoveIfTemporary(path string) (bool, error) {
	if !strings.Contains(path, TemporaryMarker) {
		return false, nil
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		err = nil
	}
	return true, err
}
