// Package worker drives crash processing: it pulls work items from the
// upstream source, runs each crash through the canonical rule pipeline,
// saves the result, and acks the item only on end-to-end success.
package worker

import (
	"context"
	"strings"
	"time"

	"github.com/lonnen/jansky/adapter"
	"github.com/lonnen/jansky/crash"
	"github.com/lonnen/jansky/log"
	"github.com/lonnen/jansky/metrics"
	"github.com/lonnen/jansky/rule"
	"github.com/lonnen/jansky/rules"
	"github.com/lonnen/jansky/store"
	"github.com/lonnen/jansky/timeutil"
	"github.com/lonnen/jansky/types"
)

// ProcessorConfig configures crash processing.
type ProcessorConfig struct {
	// Store fetches raw artifacts and saves processed crashes.
	Store store.CrashStore
	// Logger receives processing diagnostics.
	Logger *log.Logger
	// Collector records counters; nil disables metrics.
	Collector *metrics.Collector
	// Deadline bounds one crash's fetch-transform-save; zero means
	// no per-crash limit.
	Deadline time.Duration

	// StackwalkerCommand is the external minidump walker binary. Empty
	// omits the stackwalker stage (dump-derived rules then require a
	// json_dump preserved from earlier processing).
	StackwalkerCommand string
	// StackwalkerArgs precede the dump path on the walker command line.
	StackwalkerArgs []string
	// StackwalkerTimeout bounds one walker invocation.
	StackwalkerTimeout time.Duration

	// SupportClassifiers, JitClassifiers, and SkunkClassifiers occupy
	// the reserved classifier positions. Each category applies its
	// rules until the first success.
	SupportClassifiers []rule.Rule
	JitClassifiers     []rule.Rule
	SkunkClassifiers   []rule.Rule
}

// Processor runs one crash at a time through fetch, the canonical rule
// sequence, and save. It holds no per-crash state and is safe to share
// across pull loops.
type Processor struct {
	config ProcessorConfig
	rules  []rule.Rule
}

// NewProcessor builds the processor and its rule sequence. Order is
// significant: ESRVersionRewrite must precede anything reading Version,
// UUIDCorrection must precede anything reading raw uuid,
// ThemePrettyNameRule must follow AddonsRule, and SaveMetadata is last.
func NewProcessor(cfg ProcessorConfig) *Processor {
	zlog := cfg.Logger.Zap()

	sequence := []rule.Rule{
		// initialize
		rule.UUIDCorrection{},
		rule.CreateMetadata{},

		// rules to change the internals of the raw crash
		rules.NewProductRewrite(zlog),
		rules.ESRVersionRewrite{},
		rules.PluginContentURL{},
		rules.PluginUserComment{},
		rules.FennecBetaError20150430{},

		// rules to transform a raw crash into a processed crash
		rules.IdentifierRule{},
	}
	if cfg.StackwalkerCommand != "" {
		sequence = append(sequence, rules.NewStackwalkerRule(
			cfg.StackwalkerCommand,
			cfg.StackwalkerArgs,
			cfg.StackwalkerTimeout,
			zlog,
		))
	}
	sequence = append(sequence,
		rules.ProductRule{},
		rules.UserDataRule{},
		rules.EnvironmentRule{},
		rules.PluginRule{},
		rules.NewAddonsRule(zlog),
		rules.DatesAndTimesRule{},
		rules.JavaProcessRule{},
		rules.WinsockLSPRule{},

		// post processing of the processed crash
		rules.CPUInfoRule{},
		rules.OSInfoRule{},
		rules.ExploitabilityRule{},
		rules.FlashVersionRule{},
		rules.TopMostFilesRule{},
		rules.ThemePrettyNameRule{},

		// classifier categories, each applied until first success
		classifierSet{rules: cfg.SupportClassifiers},
		classifierSet{rules: cfg.JitClassifiers},
		classifierSet{rules: cfg.SkunkClassifiers},

		// finalize
		rule.SaveMetadata{},
	)

	return &Processor{config: cfg, rules: sequence}
}

// ProcessOne runs one crash through fetch, pipeline, and save with
// suppression off. The returned Crash is closed (temporary dumps are
// gone) but its mappings remain readable for event publishing.
func (p *Processor) ProcessOne(ctx context.Context, crashID string) (*crash.Crash, error) {
	logger := p.config.Logger.WithCrashID(crashID)
	p.config.Collector.IncCrashStarted()

	if p.config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Deadline)
		defer cancel()
	}

	c := crash.New(crashID)
	// Temporary dumps are released on every exit path.
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("dump cleanup failed", map[string]any{"error": err.Error()})
		}
	}()

	if err := c.Fetch(ctx, p.config.Store, false); err != nil {
		p.config.Collector.IncFetchFailure()
		p.config.Collector.IncCrashFailed()
		logger.Warn("fetch failed", map[string]any{"error": err.Error()})
		return c, err
	}

	if err := c.Pipeline(false, p.rules...); err != nil {
		rule.AddNote(c.ProcessedCrash, "unrecoverable processor error: "+err.Error())
		p.config.Collector.IncRuleFailure()
		p.config.Collector.IncCrashFailed()
		logger.Warn("pipeline aborted", map[string]any{"error": err.Error()})
		return c, err
	}

	if err := c.Save(ctx, p.config.Store, false); err != nil {
		p.config.Collector.IncSaveFailure()
		p.config.Collector.IncCrashFailed()
		logger.Warn("save failed", map[string]any{"error": err.Error()})
		return c, err
	}

	p.config.Collector.IncCrashCompleted()
	return c, nil
}

// classifierSet adapts an apply-until-first-success rule category into a
// single pipeline stage. An empty category is skipped entirely.
type classifierSet struct {
	rules []rule.Rule
}

func (s classifierSet) Predicate(string, map[string]any, rule.Dumps, map[string]any) bool {
	return len(s.rules) > 0
}

func (s classifierSet) Action(crashID string, raw map[string]any, dumps rule.Dumps, processed map[string]any) error {
	return rule.ApplyUntilSuccess(crashID, raw, dumps, processed, s.rules...)
}

// newProcessedEvent projects a finished crash into the completion event
// shape.
func newProcessedEvent(c *crash.Crash, duration time.Duration) *adapter.CrashProcessedEvent {
	processed := c.ProcessedCrash
	notes := types.AsString(processed["processor_notes"])
	notesCount := 0
	if notes != "" {
		notesCount = len(strings.Split(notes, ";"))
	}
	success, _ := processed["success"].(bool)

	now := timeutil.UTCNow()
	return &adapter.CrashProcessedEvent{
		EventType:  "crash_processed",
		CrashID:    c.ID(),
		Product:    types.AsString(processed["product"]),
		Version:    types.AsString(processed["version"]),
		Signature:  types.AsString(processed["signature"]),
		Success:    success,
		NotesCount: notesCount,
		Timestamp:  timeutil.DateToString(now),
		Partition:  timeutil.WeeklyPartition(now),
		DurationMs: duration.Milliseconds(),
	}
}
