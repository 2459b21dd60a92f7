package rule

import (
	"errors"
	"testing"
)

// recordingRule tracks invocations for ordering and skip assertions.
type recordingRule struct {
	pred      bool
	err       error
	predCalls int
	actCalls  int
}

func (r *recordingRule) Predicate(string, map[string]any, Dumps, map[string]any) bool {
	r.predCalls++
	return r.pred
}

func (r *recordingRule) Action(string, map[string]any, Dumps, map[string]any) error {
	r.actCalls++
	return r.err
}

func TestApplyRunsActionWhenPredicateTrue(t *testing.T) {
	r := &recordingRule{pred: true}
	if err := Apply(r, "id", map[string]any{}, Dumps{}, map[string]any{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if r.actCalls != 1 {
		t.Errorf("action calls = %d, want 1", r.actCalls)
	}
}

func TestApplySkipsActionWhenPredicateFalse(t *testing.T) {
	r := &recordingRule{pred: false, err: errors.New("should not run")}
	if err := Apply(r, "id", map[string]any{}, Dumps{}, map[string]any{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if r.actCalls != 0 {
		t.Errorf("action calls = %d, want 0", r.actCalls)
	}
}

func TestApplyPropagatesActionError(t *testing.T) {
	boom := errors.New("boom")
	r := &recordingRule{pred: true, err: boom}
	if err := Apply(r, "id", map[string]any{}, Dumps{}, map[string]any{}); !errors.Is(err, boom) {
		t.Fatalf("Apply = %v, want boom", err)
	}
}

func TestApplyUntilSuccessStopsAtFirstSuccess(t *testing.T) {
	first := &recordingRule{pred: true, err: errors.New("nope")}
	second := &recordingRule{pred: true}
	third := &recordingRule{pred: true}

	err := ApplyUntilSuccess("id", map[string]any{}, Dumps{}, map[string]any{}, first, second, third)
	if err != nil {
		t.Fatalf("ApplyUntilSuccess: %v", err)
	}
	if second.actCalls != 1 {
		t.Errorf("second action calls = %d, want 1", second.actCalls)
	}
	if third.actCalls != 0 {
		t.Errorf("third action ran after success")
	}
}

func TestApplyUntilSuccessSkipsFalsePredicates(t *testing.T) {
	skipped := &recordingRule{pred: false}
	matched := &recordingRule{pred: true}

	if err := ApplyUntilSuccess("id", map[string]any{}, Dumps{}, map[string]any{}, skipped, matched); err != nil {
		t.Fatalf("ApplyUntilSuccess: %v", err)
	}
	if skipped.actCalls != 0 {
		t.Error("skipped rule's action ran")
	}
	if matched.actCalls != 1 {
		t.Error("matched rule's action did not run")
	}
}

func TestApplyUntilSuccessReturnsLastErrorWhenNoneSucceed(t *testing.T) {
	last := errors.New("last failure")
	err := ApplyUntilSuccess("id", map[string]any{}, Dumps{}, map[string]any{},
		&recordingRule{pred: true, err: errors.New("first failure")},
		&recordingRule{pred: true, err: last},
	)
	if !errors.Is(err, last) {
		t.Fatalf("ApplyUntilSuccess = %v, want last failure", err)
	}
}

func TestFuncPredicateAlwaysTrue(t *testing.T) {
	called := false
	f := Func(func(string, map[string]any, Dumps, map[string]any) error {
		called = true
		return nil
	})
	if err := Apply(f, "id", map[string]any{}, Dumps{}, map[string]any{}); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("Func action not invoked")
	}
}

func TestIdentityLeavesStateUntouched(t *testing.T) {
	raw := map[string]any{"ProductName": "Firefox"}
	processed := map[string]any{}
	if err := Apply(Identity{}, "id", raw, Dumps{}, processed); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 1 || len(processed) != 0 {
		t.Error("Identity mutated state")
	}
}

func TestUUIDCorrection(t *testing.T) {
	crashID := "00000000-0000-0000-0000-000002140504"
	raw := map[string]any{}

	if err := Apply(UUIDCorrection{}, crashID, raw, Dumps{}, map[string]any{}); err != nil {
		t.Fatal(err)
	}
	if raw["uuid"] != crashID {
		t.Errorf("uuid = %v, want %s", raw["uuid"], crashID)
	}

	// Idempotent: a second application is a no-op even with a different
	// uuid already present.
	raw["uuid"] = "something-else"
	if err := Apply(UUIDCorrection{}, crashID, raw, Dumps{}, map[string]any{}); err != nil {
		t.Fatal(err)
	}
	if raw["uuid"] != "something-else" {
		t.Error("UUIDCorrection overwrote an existing uuid")
	}
}

func TestUUIDCorrectionPredicatePure(t *testing.T) {
	raw := map[string]any{}
	r := UUIDCorrection{}
	first := r.Predicate("id", raw, Dumps{}, map[string]any{})
	second := r.Predicate("id", raw, Dumps{}, map[string]any{})
	if first != second {
		t.Error("predicate not stable without intervening mutation")
	}
}
