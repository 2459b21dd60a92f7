// Package types holds shared shapes and value helpers for crash data.
//
// Raw and processed crashes are open-ended string-keyed mappings of
// heterogeneous values (string | int64 | float64 | bool | list | nested
// mapping | nil), the shape JSON decoding naturally produces. Rules read
// and write keys by name; the helpers here centralize the coercions.
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AsString coerces a crash mapping value to a string.
// Numbers are formatted; nil and absent values yield "".
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		// JSON decodes all numbers as float64; render integral values
		// without a fractional part.
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// AsInt64 coerces a crash mapping value to an int64.
// Strings are parsed; floats are truncated. The second return is false
// when the value is absent or not a number.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Truthy reports whether a crash mapping value counts as set.
// nil, "", "0", 0, and false are all falsy; everything else is truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != "" && t != "0"
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// Mapping returns v as a nested crash mapping, or nil if it is not one.
func Mapping(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// List returns v as a list value, or nil if it is not one.
func List(v any) []any {
	l, _ := v.([]any)
	return l
}
