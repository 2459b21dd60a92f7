// Package cmd provides CLI commands for the jansky binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for the run command. Flags override config file values.
var (
	// ConfigFlag points at the YAML config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to jansky.yaml",
	}

	// LoggingLevelFlag overrides logging_level.
	LoggingLevelFlag = &cli.StringFlag{
		Name:  "logging-level",
		Usage: "Logging level: DEBUG, INFO, WARNING, ERROR, CRITICAL",
	}

	// SleepWhenExhaustedFlag overrides sleep_when_exhausted.
	SleepWhenExhaustedFlag = &cli.IntFlag{
		Name:  "sleep-when-exhausted",
		Usage: "Seconds to nap on an empty queue; <= 0 exits on exhaustion",
		Value: -1, // sentinel: unset
	}

	// WorkersFlag overrides workers.
	WorkersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "Number of independent pull loops",
	}

	// QueueURLFlag overrides queue.url.
	QueueURLFlag = &cli.StringFlag{
		Name:  "queue-url",
		Usage: "Redis URL of the work queue",
	}
)

// RunFlags returns the flags for the run command.
func RunFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		LoggingLevelFlag,
		SleepWhenExhaustedFlag,
		WorkersFlag,
		QueueURLFlag,
	}
}
