// Package crashid encodes and decodes crash identifiers.
//
// Crash ids look like ordinary UUIDs but the tail carries data:
//
//	de1bb258-cbbf-4589-a673-34f800160918
//	                             ^^^^^^^
//	                             ||____|
//	                             |  yymmdd
//	                             |
//	                             throttle
//
// The throttle digit is 0 (accept) or 1 (defer). The century is fixed to
// "20" when decoding.
package crashid

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Length is the fixed length of a crash id.
const Length = 36

// Throttle instructions encoded in a crash id.
const (
	ThrottleAccept = 0
	ThrottleDefer  = 1
)

// ErrInvalid is returned when a string cannot be interpreted as a crash id.
var ErrInvalid = errors.New("invalid crash id")

// New generates a crash id encoding the given timestamp and throttle
// instruction. The timestamp is coerced to UTC before encoding.
func New(ts time.Time, throttle int) string {
	ts = ts.UTC()
	id := uuid.New().String()
	return fmt.Sprintf("%s%d%02d%02d%02d",
		id[:Length-7], throttle, ts.Year()%100, int(ts.Month()), ts.Day())
}

// Validate checks the shape of a crash id: length, throttle digit, and a
// decodable date.
func Validate(crashID string) error {
	if len(crashID) != Length {
		return fmt.Errorf("%w: length %d", ErrInvalid, len(crashID))
	}
	if _, err := Throttle(crashID); err != nil {
		return err
	}
	if _, err := Date(crashID); err != nil {
		return err
	}
	return nil
}

// Throttle extracts the throttle instruction digit.
func Throttle(crashID string) (int, error) {
	if len(crashID) != Length {
		return 0, fmt.Errorf("%w: length %d", ErrInvalid, len(crashID))
	}
	c := crashID[Length-7]
	if c < '0' || c > '9' {
		return 0, fmt.Errorf("%w: throttle %q", ErrInvalid, c)
	}
	return int(c - '0'), nil
}

// Date extracts the submission date encoded in the last six characters.
// The returned time is midnight UTC of that date.
func Date(crashID string) (time.Time, error) {
	if len(crashID) != Length {
		return time.Time{}, fmt.Errorf("%w: length %d", ErrInvalid, len(crashID))
	}
	t, err := time.ParseInLocation("20060102", "20"+crashID[Length-6:], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalid, crashID[Length-6:])
	}
	return t, nil
}
