package config

import (
	"os"
	"strings"
)

// ExpandEnv substitutes environment variables into config file text.
// Both $VAR and ${VAR} forms expand; ${VAR:-default} falls back to the
// default when the variable is unset or empty.
//
// Unset variables without defaults expand to empty string rather than
// failing here: a required secret that stays empty is caught by the
// downstream validation that owns it (e.g. the queue URL check).
func ExpandEnv(input string) string {
	return os.Expand(input, func(ref string) string {
		// os.Expand hands over everything between the braces, so a
		// ${VAR:-default} reference arrives as "VAR:-default".
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		return ""
	})
}
