// Package config handles YAML config file loading for the worker.
package config

import (
	"fmt"
	"time"
)

// Config represents a jansky.yaml configuration file.
// All values are optional and act as defaults for run flags.
// CLI flags always override config values.
type Config struct {
	// LoggingLevel is one of DEBUG, INFO, WARNING, ERROR, CRITICAL.
	LoggingLevel string `yaml:"logging_level"`
	// SleepWhenExhausted is the nap, in seconds, on an empty queue.
	// A value <= 0 exits the worker on exhaustion.
	SleepWhenExhausted int `yaml:"sleep_when_exhausted"`
	// Workers is the number of independent pull loops.
	Workers int `yaml:"workers"`
	// Deadline bounds a single crash's fetch-transform-save.
	Deadline Duration `yaml:"deadline"`

	Queue       QueueConfig       `yaml:"queue"`
	Storage     StorageConfig     `yaml:"storage"`
	Stackwalker StackwalkerConfig `yaml:"stackwalker"`
	Adapter     AdapterConfig     `yaml:"adapter"`
}

// QueueConfig holds work-item source defaults from the config file.
type QueueConfig struct {
	URL           string   `yaml:"url"`
	Key           string   `yaml:"key"`
	ProcessingKey string   `yaml:"processing_key"`
	Timeout       Duration `yaml:"timeout"`
}

// StorageConfig holds crash store defaults from the config file.
type StorageConfig struct {
	// Backend is "s3" or "memory" (memory is for local smoke tests).
	Backend     string `yaml:"backend"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// StackwalkerConfig holds the external minidump walker invocation.
type StackwalkerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Timeout Duration `yaml:"timeout"`
}

// AdapterConfig holds completion adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Defaults returns a Config with the worker's default settings.
func Defaults() *Config {
	return &Config{
		LoggingLevel:       "INFO",
		SleepWhenExhausted: 2,
		Workers:            1,
	}
}
