package rules

import (
	"fmt"
	"strings"

	"github.com/lonnen/jansky/rule"
	"github.com/lonnen/jansky/types"
)

// IdentifierRule sets processed crash id values.
type IdentifierRule struct{}

func (IdentifierRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (IdentifierRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	uuid, ok := raw["uuid"]
	if !ok {
		return fmt.Errorf(`%w: "uuid" missing from raw_crash`, ErrMissingField)
	}
	processed["crash_id"] = uuid
	processed["uuid"] = uuid
	return nil
}

// CPUInfoRule lifts cpu_info and count out of the dump and into
// top-level fields.
type CPUInfoRule struct{}

func (CPUInfoRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (CPUInfoRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	processed["cpu_info"] = ""
	processed["cpu_name"] = ""

	info, key, ok := dig(processed, "json_dump", "system_info", "cpu_info")
	if !ok {
		return fmt.Errorf("%w: %q missing from json_dump", ErrMissingField, key)
	}
	if count, _, ok := dig(processed, "json_dump", "system_info", "cpu_count"); ok {
		processed["cpu_info"] = fmt.Sprintf("%s | %s", types.AsString(info), types.AsString(count))
	} else {
		// cpu_count is likely missing
		processed["cpu_info"] = types.AsString(info)
	}

	arch, key, ok := dig(processed, "json_dump", "system_info", "cpu_arch")
	if !ok {
		return fmt.Errorf("%w: %q missing from json_dump", ErrMissingField, key)
	}
	processed["cpu_name"] = types.AsString(arch)
	return nil
}

// OSInfoRule lifts os_name and os_version out of the dump and into
// top-level fields.
type OSInfoRule struct{}

func (OSInfoRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool { return true }

func (OSInfoRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	osName, key, ok := dig(processed, "json_dump", "system_info", "os")
	if !ok {
		return fmt.Errorf("%w: %q missing from json_dump", ErrMissingField, key)
	}
	osVer, key, ok := dig(processed, "json_dump", "system_info", "os_ver")
	if !ok {
		return fmt.Errorf("%w: %q missing from json_dump", ErrMissingField, key)
	}
	processed["os_name"] = strings.TrimSpace(types.AsString(osName))
	processed["os_version"] = strings.TrimSpace(types.AsString(osVer))
	return nil
}
