package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lonnen/jansky/crashid"
	"github.com/lonnen/jansky/rule"
	"github.com/lonnen/jansky/timeutil"
	"github.com/lonnen/jansky/types"
)

// DatesAndTimesRule derives the temporal fields of the processed crash:
// submission time, crash time, startup/install ages, and seconds since
// the previous crash. Submitter clocks are untrusted, so every parse has
// a fallback and each failure mode leaves a distinct processor note.
type DatesAndTimesRule struct{}

func (DatesAndTimesRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool {
	return true
}

func (DatesAndTimesRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	submitted, err := submittedTimestamp(raw)
	if err != nil {
		return err
	}
	processed["submitted_timestamp"] = timeutil.DateToString(submitted)
	processed["date_processed"] = processed["submitted_timestamp"]

	// default crash time: must have crashed before date processed
	submittedEpoch := submitted.Unix()

	// "timestamp" is the old name for crash time
	timestampTime := submittedEpoch
	if v, ok := raw["timestamp"]; ok {
		n, ok := types.AsInt64(v)
		if !ok {
			timestampTime = 0
			rule.AddNote(processed, `non-integer value of "timestamp"`)
		} else {
			timestampTime = n
		}
	}

	var crashTime int64
	if v, ok := raw["CrashTime"]; ok {
		s := types.AsString(v)
		if len(s) > 10 {
			s = s[:10]
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			rule.AddNote(processed, fmt.Sprintf("non-integer value of \"CrashTime\" (%s)", types.AsString(v)))
			crashTime = 0
		} else {
			crashTime = n
		}
	} else {
		rule.AddNote(processed, "WARNING: raw_crash missing CrashTime")
		crashTime = timestampTime
	}

	processed["crash_time"] = crashTime
	if crashTime == submittedEpoch {
		rule.AddNote(processed, "client_crash_date is unknown")
	}
	processed["client_crash_date"] = timeutil.DateToString(time.Unix(crashTime, 0).UTC())

	// StartupTime: must have started up some time before crash
	startupTime := intField(raw, "StartupTime", crashTime, processed)

	// InstallTime: must have installed some time before startup
	installTime := intField(raw, "InstallTime", startupTime, processed)

	processed["install_age"] = crashTime - installTime
	processed["uptime"] = max(int64(0), crashTime-startupTime)

	processed["last_crash"] = lastCrash(raw, processed)
	return nil
}

// submittedTimestamp reads the submission time from the raw crash,
// falling back to the date encoded in the crash id.
func submittedTimestamp(raw map[string]any) (time.Time, error) {
	if v, ok := raw["submitted_timestamp"]; ok {
		t, err := timeutil.ParseDatetime(types.AsString(v))
		if err != nil {
			return time.Time{}, fmt.Errorf("unparsable submitted_timestamp: %w", err)
		}
		return t, nil
	}
	t, err := crashid.Date(types.AsString(raw["uuid"]))
	if err != nil {
		return time.Time{}, fmt.Errorf("no submitted_timestamp and %w", err)
	}
	return t, nil
}

// intField parses an integer-valued raw field, noting a failure and
// returning 0; an absent field yields the supplied default.
func intField(raw map[string]any, key string, def int64, processed map[string]any) int64 {
	v, ok := raw[key]
	if !ok {
		return def
	}
	n, ok := types.AsInt64(v)
	if !ok {
		rule.AddNote(processed, fmt.Sprintf("non-integer value of %q", key))
		return 0
	}
	return n
}

// lastCrash parses SecondsSinceLastCrash with a ceiling at the maximum
// signed integer; values above it (or unparsable) yield nil.
func lastCrash(raw map[string]any, processed map[string]any) any {
	v, ok := raw["SecondsSinceLastCrash"]
	if !ok {
		rule.AddNote(processed, `non-integer value of "SecondsSinceLastCrash"`)
		return nil
	}
	s := strings.TrimSpace(types.AsString(v))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			rule.AddNote(processed, `"SecondsSinceLastCrash" larger than MAXINT - set to NULL`)
			return nil
		}
		rule.AddNote(processed, `non-integer value of "SecondsSinceLastCrash"`)
		return nil
	}
	return n
}
