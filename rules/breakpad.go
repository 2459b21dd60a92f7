package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lonnen/jansky/rule"
)

// PrimaryDumpName is the dump whose walker output becomes json_dump.
const PrimaryDumpName = "upload_file_minidump"

// StackwalkerRule runs the external native minidump walker over each
// dump and merges its JSON output into the processed crash. The walker
// binary itself is a black box; a failure here is fatal for the
// pipeline because nearly every post-processing rule reads json_dump.
type StackwalkerRule struct {
	command string
	args    []string
	timeout time.Duration
	logger  *zap.Logger
}

// NewStackwalkerRule builds the rule. The dump path is appended to args
// when the walker is invoked. A timeout of zero means no per-dump limit.
func NewStackwalkerRule(command string, args []string, timeout time.Duration, logger *zap.Logger) *StackwalkerRule {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StackwalkerRule{command: command, args: args, timeout: timeout, logger: logger}
}

func (r *StackwalkerRule) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool {
	return true
}

func (r *StackwalkerRule) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	if len(dumps) == 0 {
		return fmt.Errorf("stackwalker: no dumps for crash %s", crashID)
	}

	// Walk dumps in a stable order; the primary dump's output becomes
	// json_dump, secondary dumps land under their own names.
	names := make([]string, 0, len(dumps))
	for name := range dumps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		output, err := r.walk(dumps[name])
		if err != nil {
			return fmt.Errorf("stackwalker: dump %s: %w", name, err)
		}
		if name == PrimaryDumpName {
			processed["json_dump"] = output
		} else {
			processed[name] = output
		}
	}
	return nil
}

// walk invokes the walker on one dump file and decodes its stdout.
func (r *StackwalkerRule) walk(dumpPath string) (map[string]any, error) {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), r.args...), dumpPath)
	cmd := exec.CommandContext(ctx, r.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %v: %w (stderr: %s)", r.command, args, err, stderr.String())
	}
	r.logger.Debug("stackwalker finished",
		zap.String("dump", dumpPath),
		zap.Duration("duration", time.Since(start)),
	)

	var output map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("undecodable walker output: %w", err)
	}
	return output, nil
}
