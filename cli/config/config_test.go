package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jansky.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
logging_level: DEBUG
sleep_when_exhausted: 5
workers: 4
deadline: 2m
queue:
  url: redis://localhost:6379
  key: crashes
storage:
  backend: s3
  bucket: crash-reports
  prefix: prod
  region: us-east-1
  s3_path_style: true
stackwalker:
  command: /usr/local/bin/stackwalker
  args: ["--pretty"]
  timeout: 30s
adapter:
  type: webhook
  url: https://hooks.example.com/crashes
  headers:
    Authorization: Bearer token
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LoggingLevel != "DEBUG" {
		t.Errorf("LoggingLevel = %q", cfg.LoggingLevel)
	}
	if cfg.SleepWhenExhausted != 5 {
		t.Errorf("SleepWhenExhausted = %d", cfg.SleepWhenExhausted)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.Deadline.Duration != 2*time.Minute {
		t.Errorf("Deadline = %v", cfg.Deadline.Duration)
	}
	if cfg.Queue.URL != "redis://localhost:6379" || cfg.Queue.Key != "crashes" {
		t.Errorf("Queue = %+v", cfg.Queue)
	}
	if cfg.Storage.Backend != "s3" || !cfg.Storage.S3PathStyle {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Stackwalker.Command != "/usr/local/bin/stackwalker" {
		t.Errorf("Stackwalker = %+v", cfg.Stackwalker)
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer token" {
		t.Errorf("Adapter = %+v", cfg.Adapter)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LoggingLevel != "INFO" {
		t.Errorf("LoggingLevel = %q", cfg.LoggingLevel)
	}
	if cfg.SleepWhenExhausted != 2 {
		t.Errorf("SleepWhenExhausted = %d", cfg.SleepWhenExhausted)
	}
	if cfg.Workers != 1 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
}

func TestLoadExplicitZeroSleep(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sleep_when_exhausted: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	// Explicit 0 means exit-on-exhaustion, not the default nap.
	if cfg.SleepWhenExhausted != 0 {
		t.Errorf("SleepWhenExhausted = %d", cfg.SleepWhenExhausted)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	if _, err := Load(writeConfig(t, "sleeep_when_exhausted: 2\n")); err == nil {
		t.Error("typo key accepted")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	if _, err := Load(writeConfig(t, "deadline: soonish\n")); err == nil {
		t.Error("bad duration accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("JANSKY_TEST_REDIS", "redis://broker:6379")

	out := ExpandEnv("url: ${JANSKY_TEST_REDIS}")
	if out != "url: redis://broker:6379" {
		t.Errorf("out = %q", out)
	}

	out = ExpandEnv("bucket: ${JANSKY_TEST_UNSET:-fallback}")
	if out != "bucket: fallback" {
		t.Errorf("out = %q", out)
	}

	out = ExpandEnv("key: ${JANSKY_TEST_UNSET}")
	if out != "key: " {
		t.Errorf("out = %q", out)
	}

	// the bare form works too
	out = ExpandEnv("url: $JANSKY_TEST_REDIS")
	if out != "url: redis://broker:6379" {
		t.Errorf("out = %q", out)
	}
}

func TestLoadExpandsEnvInValues(t *testing.T) {
	t.Setenv("JANSKY_TEST_BUCKET", "crash-reports-stage")
	cfg, err := Load(writeConfig(t, "storage:\n  bucket: ${JANSKY_TEST_BUCKET}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Bucket != "crash-reports-stage" {
		t.Errorf("Bucket = %q", cfg.Storage.Bucket)
	}
}
