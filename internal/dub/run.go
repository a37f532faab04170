// Package dub orchestrates a dubbing run: it owns the stage state machine,
// classifies failures, and drives every pipeline component in order inside
// a per-run workspace.
package dub

import (
	"fmt"
	"sync"
	"time"

	"github.com/maauso/dubbing-api/internal/dub/id"
)

// Stage is the position of a run in its pipeline.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageAcquiring      Stage = "acquiring"
	StageExtracting     Stage = "extracting"
	StageProfiling      Stage = "profiling"
	StageTranscribing   Stage = "transcribing"
	StageTranslating    Stage = "translating"
	StageSynthesizing   Stage = "synthesizing"
	StagePitchAdjusting Stage = "pitch_adjusting"
	StageRemuxing       Stage = "remuxing"
	StagePublishing     Stage = "publishing"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// IsTerminal reports whether no further transition is possible from s.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// Plan is the ordered list of active stages a run walks through between
// Idle and Done.
type Plan []Stage

var (
	// DubPlan is the full dubbing pipeline.
	DubPlan = Plan{
		StageAcquiring,
		StageExtracting,
		StageProfiling,
		StageTranscribing,
		StageTranslating,
		StageSynthesizing,
		StagePitchAdjusting,
		StageRemuxing,
		StagePublishing,
	}
	// DetectPlan stops after voice profiling.
	DetectPlan = Plan{
		StageAcquiring,
		StageExtracting,
		StageProfiling,
	}
)

// Run tracks the stage of one execution of a plan. It is safe for concurrent
// reads while the owning goroutine advances it.
type Run struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string

	plan    Plan
	stage   Stage
	next    int
	history []Stage

	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// UpdatedAt is when the stage last changed.
	UpdatedAt time.Time
}

// NewRun creates an Idle run with a generated ID.
func NewRun(plan Plan) *Run {
	return NewRunWithID(id.Generate(), plan)
}

// NewRunWithID creates an Idle run with the specified ID.
func NewRunWithID(runID string, plan Plan) *Run {
	now := time.Now()
	p := make(Plan, len(plan))
	copy(p, plan)
	return &Run{
		ID:        runID,
		plan:      p,
		stage:     StageIdle,
		history:   []Stage{StageIdle},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo moves the run to s. Active stages must follow the plan in
// order, Done is only reachable after the last planned stage, and Failed is
// reachable from any non-terminal stage.
func (r *Run) TransitionTo(s Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.stage, s)
	}

	switch {
	case s == StageFailed:
	case s == StageDone:
		if r.next != len(r.plan) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.stage, s)
		}
	case r.next < len(r.plan) && r.plan[r.next] == s:
		r.next++
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.stage, s)
	}

	r.stage = s
	r.history = append(r.history, s)
	r.UpdatedAt = time.Now()
	return nil
}

// Fail moves the run to Failed. It is a no-op on a terminal run.
func (r *Run) Fail() {
	if r.Stage().IsTerminal() {
		return
	}
	_ = r.TransitionTo(StageFailed)
}

// Stage returns the current stage (thread-safe).
func (r *Run) Stage() Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stage
}

// History returns every stage the run has entered, starting with Idle.
func (r *Run) History() []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Stage, len(r.history))
	copy(out, r.history)
	return out
}

// IsTerminal returns true if the run is Done or Failed.
func (r *Run) IsTerminal() bool {
	return r.Stage().IsTerminal()
}
