package dub

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRun(t *testing.T) {
	run := NewRun(DubPlan)

	if !strings.HasPrefix(run.ID, "run-") {
		t.Errorf("expected generated ID, got %q", run.ID)
	}
	if run.Stage() != StageIdle {
		t.Errorf("expected stage %s, got %s", StageIdle, run.Stage())
	}
	if run.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if run.IsTerminal() {
		t.Error("new run must not be terminal")
	}
}

func TestRun_FollowsPlan(t *testing.T) {
	for name, plan := range map[string]Plan{"dub": DubPlan, "detect": DetectPlan} {
		t.Run(name, func(t *testing.T) {
			run := NewRunWithID("test", plan)
			for _, s := range plan {
				if err := run.TransitionTo(s); err != nil {
					t.Fatalf("transition to %s: %v", s, err)
				}
			}
			if err := run.TransitionTo(StageDone); err != nil {
				t.Fatalf("transition to done: %v", err)
			}
			if !run.IsTerminal() {
				t.Error("expected terminal run")
			}

			history := run.History()
			if len(history) != len(plan)+2 {
				t.Fatalf("expected %d history entries, got %v", len(plan)+2, history)
			}
			if history[0] != StageIdle || history[len(history)-1] != StageDone {
				t.Errorf("unexpected history bounds: %v", history)
			}
		})
	}
}

func TestRun_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		advance int
		to      Stage
	}{
		{"idle to extracting skips acquiring", 0, StageExtracting},
		{"idle to done", 0, StageDone},
		{"acquiring to transcribing skips two", 1, StageTranscribing},
		{"extracting back to acquiring", 2, StageAcquiring},
		{"repeat current stage", 3, StageProfiling},
		{"done before publishing", 8, StageDone},
		{"to idle", 1, StageIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewRunWithID("test", DubPlan)
			for _, s := range DubPlan[:tt.advance] {
				if err := run.TransitionTo(s); err != nil {
					t.Fatalf("setup transition to %s: %v", s, err)
				}
			}
			before := run.Stage()

			err := run.TransitionTo(tt.to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if run.Stage() != before {
				t.Errorf("stage changed on rejected transition: %s -> %s", before, run.Stage())
			}
		})
	}
}

func TestRun_FailFromAnyActiveStage(t *testing.T) {
	for i := range DubPlan {
		run := NewRunWithID("test", DubPlan)
		for _, s := range DubPlan[:i+1] {
			_ = run.TransitionTo(s)
		}
		if err := run.TransitionTo(StageFailed); err != nil {
			t.Errorf("fail from %s: %v", DubPlan[i], err)
		}
	}
}

func TestRun_TerminalStagesAreFinal(t *testing.T) {
	failed := NewRunWithID("failed", DetectPlan)
	failed.Fail()
	if failed.Stage() != StageFailed {
		t.Fatalf("expected failed, got %s", failed.Stage())
	}
	for _, s := range append(Plan{StageIdle, StageDone, StageFailed}, DetectPlan...) {
		if err := failed.TransitionTo(s); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("failed -> %s: expected ErrInvalidTransition, got %v", s, err)
		}
	}

	// Fail on a terminal run is a no-op
	failed.Fail()
	if n := len(failed.History()); n != 2 {
		t.Errorf("expected history [idle failed], got %v", failed.History())
	}

	done := NewRunWithID("done", DetectPlan)
	for _, s := range DetectPlan {
		_ = done.TransitionTo(s)
	}
	_ = done.TransitionTo(StageDone)
	if err := done.TransitionTo(StageFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("done -> failed: expected ErrInvalidTransition, got %v", err)
	}
}

func TestRun_PlanIsCopied(t *testing.T) {
	plan := Plan{StageAcquiring, StageExtracting}
	run := NewRunWithID("test", plan)
	plan[0] = StagePublishing

	if err := run.TransitionTo(StageAcquiring); err != nil {
		t.Errorf("run must keep its own plan: %v", err)
	}
}

func TestStageError(t *testing.T) {
	cause := errors.New("boom")
	err := newStageError(StageRemuxing, cause)

	if !errors.Is(err, ErrRemuxFailed) {
		t.Error("expected kind to match")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to match")
	}
	if errors.Is(err, ErrPublishFailed) {
		t.Error("unexpected kind match")
	}
	if st, ok := FailedStage(err); !ok || st != StageRemuxing {
		t.Errorf("FailedStage = %s, %v", st, ok)
	}
	if !strings.Contains(err.Error(), "remuxing") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("unexpected message: %s", err.Error())
	}

	if _, ok := FailedStage(cause); ok {
		t.Error("plain errors carry no stage")
	}
}

func TestErrPublishPartialMatchesPublishFailed(t *testing.T) {
	if !errors.Is(ErrPublishPartial, ErrPublishFailed) {
		t.Error("ErrPublishPartial must match ErrPublishFailed")
	}
}
