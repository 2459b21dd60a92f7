// Package timeutil parses and formats the date shapes that show up in
// crash data. Submitters and earlier processors produced several ISO-8601
// variants plus a few legacy oddities; everything is coerced to
// timezone-aware UTC on the way in.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// isoLayouts are tried in order by ParseDatetime. Fractional seconds and
// numeric offsets are the common cases; the bare forms come from legacy
// processors.
var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UTCNow returns the current time in UTC.
func UTCNow() time.Time {
	return time.Now().UTC()
}

// ParseDatetime converts an ISO-8601 string into a timezone-aware UTC
// time. Accepted forms include:
//
//	2012-01-10T12:13:14
//	2012-01-10T12:13:14.98765
//	2012-01-10T12:13:14.98765+03:00
//	2012-01-10T12:13:14.98765Z
//	2012-01-10 12:13:14          (space instead of T)
//	2012-01-10
//
// Times without an offset are taken as UTC.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime string")
	}
	// Legacy records use a space separator, e.g. "2012-01-10 12:13:14Z".
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable datetime %q", s)
}

// DateToString renders a time as an ISO-8601 string with a numeric
// offset, e.g. "2012-01-03T12:23:34.454482+00:00".
func DateToString(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.999999-07:00")
}

// WeeklyPartition returns the YYYYMMDD key of the partition containing t.
// Partitions start on Mondays.
func WeeklyPartition(t time.Time) string {
	t = t.UTC()
	// time.Weekday counts Sunday as 0; shift so Monday is 0.
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return monday.Format("20060102")
}
