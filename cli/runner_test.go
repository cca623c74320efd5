package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/richinex/reasonloop/model"
	"github.com/richinex/reasonloop/policy"
	"github.com/richinex/reasonloop/session"
	"github.com/richinex/reasonloop/storage"
)

var testPricing = model.Pricing{InputTokens: 2.5, CachedTokens: 1.25, OutputTokens: 10}

// lockedBuffer is safe to read while signal listeners write to it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func validStep(id int, final bool, language string) model.Step {
	step := model.Step{
		StepID:            id,
		ConfidenceLevel:   3,
		ReasoningLanguage: language,
		HiddenMetadata:    model.HiddenMetadata{TrueConfidence: 2, PathQuality: model.PathSuboptimal, EmbeddedIssues: []string{"skipped a case"}},
		StepTitle:         "Step title",
		StepText:          "Reasoning text",
		Solution:          model.Solution{Type: model.SolutionNone},
	}
	if final {
		step.IsFinalResult = true
		step.Solution = model.Solution{Type: model.SolutionFinal, Content: "42", Completeness: 100}
	}
	return step
}

// stepPort answers every request with a valid step; finalAt marks the step
// that finishes the session (0 for never).
func stepPort(finalAt int) session.Port {
	return session.PortFunc(func(ctx context.Context, req session.Request) (map[string]any, *model.Usage, error) {
		payload, err := session.StepPayload(validStep(req.ExpectedStepID, req.ExpectedStepID == finalAt, req.ReasoningLanguage))
		return payload, &model.Usage{InputTokens: 1000, OutputTokens: 100}, err
	})
}

func newTestRunner(port session.Port, input string, out *lockedBuffer) (*Runner, *storage.InMemoryStorage) {
	store := storage.NewInMemoryStorage()
	r := NewRunner(port, session.ProviderInfo{Name: "fake", Model: "fake-model"}, testPricing).
		WithStore(store).
		WithInput(strings.NewReader(input)).
		WithOutput(out)
	return r, store
}

func autoOptions(strategy policy.Strategy, maxSteps int) Options {
	opts := DefaultOptions()
	opts.Task = "What is 6 times 7?"
	opts.MaxSteps = maxSteps
	opts.Auto = true
	opts.Policy = policy.Config{Strategy: strategy, Mode: model.ModeGoSlightlyWrong}
	return opts
}

func TestThinkAutoRunsToMaxSteps(t *testing.T) {
	out := &lockedBuffer{}
	r, store := newTestRunner(stepPort(0), "", out)

	rec, err := r.Think(context.Background(), autoOptions(policy.StrategyContinue, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.Steps) != 3 {
		t.Errorf("expected 3 steps, got %d", len(rec.Steps))
	}
	if rec.Status != session.StatusTerminated || rec.TerminationReason != session.ReasonMaxSteps {
		t.Errorf("expected max_steps termination, got %s/%s", rec.Status, rec.TerminationReason)
	}
	if want := 3 * 0.0035; rec.Totals.CostUSD < want-1e-12 || rec.Totals.CostUSD > want+1e-12 {
		t.Errorf("expected total cost %v, got %v", want, rec.Totals.CostUSD)
	}

	saved, err := store.Load(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("record not saved: %v", err)
	}
	if len(saved.Steps) != 3 {
		t.Errorf("expected saved record with 3 steps, got %d", len(saved.Steps))
	}

	text := out.String()
	for _, want := range []string{"Step 3/3", "Auto-selecting command: CONTINUE", "Cost Summary:", "Total: $0.0105"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestThinkAutoStopsOnFinalStep(t *testing.T) {
	r, _ := newTestRunner(stepPort(2), "", &lockedBuffer{})

	rec, err := r.Think(context.Background(), autoOptions(policy.StrategyFixed, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Steps) != 2 || rec.TerminationReason != session.ReasonFinalResult {
		t.Errorf("expected final result at step 2, got %d steps, %s", len(rec.Steps), rec.TerminationReason)
	}
	if rec.Commands[1] != model.SwitchMode(model.ModeGoSlightlyWrong) {
		t.Errorf("expected fixed policy directive, got %v", rec.Commands[1])
	}
}

func TestThinkInteractive(t *testing.T) {
	out := &lockedBuffer{}
	r, _ := newTestRunner(stepPort(0), "2\n5\nFrench\nexit\n", out)

	opts := DefaultOptions()
	opts.Task = "Plan a trip"
	rec, err := r.Think(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.Directive{
		model.Continue(),
		model.SwitchMode(model.ModeExploreOptimal),
		model.SetLanguage("French"),
	}
	if len(rec.Commands) != len(want) {
		t.Fatalf("expected %d commands, got %v", len(want), rec.Commands)
	}
	for i := range want {
		if rec.Commands[i] != want[i] {
			t.Errorf("command %d: expected %v, got %v", i, want[i], rec.Commands[i])
		}
	}
	if rec.TerminationReason != session.ReasonFinished {
		t.Errorf("expected operator finish, got %s", rec.TerminationReason)
	}
	if rec.Steps[2].Step.ReasoningLanguage != "French" {
		t.Errorf("expected French step, got %s", rec.Steps[2].Step.ReasoningLanguage)
	}
	if !strings.Contains(out.String(), "Commands:") {
		t.Errorf("expected command menu in output")
	}
}

func TestThinkInteractiveRejectsUnknownCommand(t *testing.T) {
	out := &lockedBuffer{}
	r, _ := newTestRunner(stepPort(0), "FOO\nGO_VERY_WRONG\n", out)

	opts := DefaultOptions()
	opts.Task = "t"
	rec, err := r.Think(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Invalid choice") {
		t.Errorf("expected invalid choice notice:\n%s", out.String())
	}
	if len(rec.Steps) != 2 || rec.ModeHistory[1] != model.ModeGoVeryWrong {
		t.Errorf("expected a second step in GO_VERY_WRONG, got %v", rec.ModeHistory)
	}
}

func TestThinkReadsInitBlock(t *testing.T) {
	r, _ := newTestRunner(stepPort(0), "TASK: ```Sort a list```\nMODE: GO_VERY_WRONG\nMAX_STEPS: 2\n\nCONTINUE\n", &lockedBuffer{})

	rec, err := r.Think(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Task != "Sort a list" || rec.InitialMode != model.ModeGoVeryWrong || rec.MaxSteps != 2 {
		t.Errorf("init block not applied: %+v", rec)
	}
	if rec.TerminationReason != session.ReasonMaxSteps {
		t.Errorf("expected max_steps termination, got %s", rec.TerminationReason)
	}
}

func TestThinkBadInitBlock(t *testing.T) {
	r, store := newTestRunner(stepPort(0), "MODE: GO_VERY_WRONG\n\n", &lockedBuffer{})

	if _, err := r.Think(context.Background(), DefaultOptions()); err == nil {
		t.Fatal("expected error for missing TASK")
	}
	if list, _ := store.List(context.Background()); len(list) != 0 {
		t.Errorf("expected nothing saved, got %v", list)
	}
}

func TestThinkPrintsRetryNotice(t *testing.T) {
	var calls atomic.Int32
	inner := stepPort(1)
	out := &lockedBuffer{}
	port := session.PortFunc(func(ctx context.Context, req session.Request) (map[string]any, *model.Usage, error) {
		if calls.Add(1) == 1 {
			return nil, nil, errors.New("connection reset")
		}
		// The notice is delivered asynchronously; hold the retry until it shows.
		deadline := time.Now().Add(2 * time.Second)
		for !strings.Contains(out.String(), "Retrying step 1: ") {
			if time.Now().After(deadline) {
				return nil, nil, errors.New("retry notice not printed")
			}
			time.Sleep(10 * time.Millisecond)
		}
		return inner.Generate(ctx, req)
	})

	r, _ := newTestRunner(port, "", out)
	if _, err := r.Think(context.Background(), autoOptions(policy.StrategyContinue, 5)); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "connection reset") {
		t.Errorf("expected retry reason in output:\n%s", out.String())
	}
}

func TestThinkAutoTurnFailureSavesRecord(t *testing.T) {
	var calls atomic.Int32
	inner := stepPort(0)
	port := session.PortFunc(func(ctx context.Context, req session.Request) (map[string]any, *model.Usage, error) {
		if req.ExpectedStepID == 2 {
			calls.Add(1)
			return nil, nil, errors.New("service unavailable")
		}
		return inner.Generate(ctx, req)
	})

	r, store := newTestRunner(port, "", &lockedBuffer{})
	rec, err := r.Think(context.Background(), autoOptions(policy.StrategyVary, 5))

	var turnErr *session.TurnError
	if !errors.As(err, &turnErr) {
		t.Fatalf("expected TurnError, got %v", err)
	}
	if turnErr.LastGoodStepID != 1 || calls.Load() != 2 {
		t.Errorf("unexpected failure details %+v after %d calls", turnErr, calls.Load())
	}
	if len(rec.Steps) != 1 {
		t.Errorf("expected 1 committed step, got %d", len(rec.Steps))
	}
	if ok, _ := store.Exists(context.Background(), rec.ID); !ok {
		t.Error("expected partial record to be saved")
	}
}

func TestThinkInteractiveTurnFailureKeepsSession(t *testing.T) {
	var fail atomic.Bool
	inner := stepPort(0)
	port := session.PortFunc(func(ctx context.Context, req session.Request) (map[string]any, *model.Usage, error) {
		if req.ExpectedStepID == 2 && !fail.Swap(true) {
			return map[string]any{"step_id": 2}, nil, nil
		}
		if req.ExpectedStepID == 2 && req.Attempt == 2 && req.Directive.Kind == model.DirectiveGoVeryWrong {
			return map[string]any{"step_id": 2}, nil, nil
		}
		return inner.Generate(ctx, req)
	})

	out := &lockedBuffer{}
	r, _ := newTestRunner(port, "GO_VERY_WRONG\nCONTINUE\nexit\n", out)
	opts := DefaultOptions()
	opts.Task = "t"
	rec, err := r.Think(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "The session is unchanged") {
		t.Errorf("expected failure notice:\n%s", out.String())
	}
	if len(rec.Steps) != 2 || rec.Commands[1] != model.Continue() {
		t.Errorf("expected step 2 from the retried command, got %v", rec.Commands)
	}
	if len(rec.Issued) != 3 || rec.Issued[1].Outcome != session.OutcomeFailed ||
		rec.Issued[1].Directive != model.SwitchMode(model.ModeGoVeryWrong) {
		t.Errorf("expected the failed command in the issued log, got %+v", rec.Issued)
	}

	var replay bytes.Buffer
	if err := Replay(context.Background(), r.store, rec.ID, &replay, false); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !strings.Contains(replay.String(), "Failed: > GO_VERY_WRONG at step 2") {
		t.Errorf("replay does not show the failed command:\n%s", replay.String())
	}
}

func TestThinkSavesTraceFile(t *testing.T) {
	dir := t.TempDir()
	out := &lockedBuffer{}
	r := NewRunner(stepPort(1), session.ProviderInfo{Name: "fake", Model: "m"}, testPricing).
		WithStore(storage.NewFileStorage(dir)).
		WithInput(strings.NewReader("")).
		WithOutput(out)

	rec, err := r.Think(context.Background(), autoOptions(policy.StrategyContinue, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(dir, storage.TraceName(rec))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected trace at %s: %v", path, err)
	}
	if !strings.Contains(out.String(), "Trace saved to") {
		t.Errorf("expected trace notice:\n%s", out.String())
	}
}

func TestThinkRejectsBadPolicy(t *testing.T) {
	r, _ := newTestRunner(stepPort(0), "", &lockedBuffer{})
	opts := autoOptions(policy.StrategyFixed, 3)
	opts.Policy.Mode = ""
	if _, err := r.Think(context.Background(), opts); err == nil {
		t.Error("expected error for fixed policy without mode")
	}
}

func TestCompleteKeyword(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"cont", "CONTINUE"},
		{"go_v", "GO_VERY_WRONG"},
		{"go", "go"},
		{"reas French", "REASONING_LANGUAGE French"},
		{"exi", "EXIT"},
		{"FOO", "FOO"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := completeKeyword(tt.input); got != tt.want {
			t.Errorf("completeKeyword(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		value, total int
		filled       int
	}{
		{0, 5, 0},
		{5, 5, 20},
		{3, 5, 12},
		{150, 100, 20},
		{1, 0, 0},
	}
	for _, tt := range tests {
		got := bar(tt.value, tt.total)
		if n := strings.Count(got, "█"); n != tt.filled {
			t.Errorf("bar(%d, %d) filled %d, want %d", tt.value, tt.total, n, tt.filled)
		}
	}
}
