// Package rules is the concrete transform library applied to crashes.
//
// Rules that hit an expected data gap (a missing optional key) record a
// processor note and proceed; any other failure propagates to the
// pipeline. Five rules rewrite the raw crash before the raw-to-processed
// stage, and JavaProcessRule writes its nil default back into the raw
// crash; everything else writes only the processed crash.
package rules

import (
	"errors"
	"net/url"

	"github.com/lonnen/jansky/types"
)

// ErrMissingField marks a required raw crash field that was absent.
var ErrMissingField = errors.New("missing field")

// valueOrNil returns m[key], or an explicit nil when the key is absent.
// Matches the "default null" convention of the persisted shapes.
func valueOrNil(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	return nil
}

// dig walks nested mappings. On a miss it returns the name of the first
// key that could not be resolved.
func dig(m map[string]any, keys ...string) (any, string, bool) {
	var cur any = m
	for _, k := range keys {
		mm := types.Mapping(cur)
		if mm == nil {
			return nil, k, false
		}
		v, ok := mm[k]
		if !ok {
			return nil, k, false
		}
		cur = v
	}
	return cur, "", true
}

// unquotePlus reverses URL encoding with '+' as space. Undecodable
// input is passed through untouched, the way submitters sent it.
func unquotePlus(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
