package dub

import (
	"errors"
	"fmt"

	"github.com/maauso/dubbing-api/internal/storage"
)

// Failure kinds. Every pipeline error matches exactly one of these with errors.Is.
var (
	ErrAcquisitionFailed     = errors.New("acquisition failed")
	ErrExtractionFailed      = errors.New("audio extraction failed")
	ErrTranscriptionFailed   = errors.New("transcription failed")
	ErrTranslationFailed     = errors.New("translation failed")
	ErrSynthesisFailed       = errors.New("speech synthesis failed")
	ErrPitchAdjustmentFailed = errors.New("pitch adjustment failed")
	ErrRemuxFailed           = errors.New("remux failed")
	ErrPublishFailed         = errors.New("publish failed")
	// ErrPublishPartial means the video was uploaded but could not be made
	// public. It also matches ErrPublishFailed.
	ErrPublishPartial = fmt.Errorf("%w: uploaded but not publicly readable", ErrPublishFailed)
)

// Request and state errors.
var (
	// ErrInvalidRequest is returned when a request is missing its source.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidTransition is returned when a run is moved out of plan order.
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// stageKinds maps each fallible stage to its failure kind. Profiling is absent
// because it cannot fail.
var stageKinds = map[Stage]error{
	StageAcquiring:      ErrAcquisitionFailed,
	StageExtracting:     ErrExtractionFailed,
	StageTranscribing:   ErrTranscriptionFailed,
	StageTranslating:    ErrTranslationFailed,
	StageSynthesizing:   ErrSynthesisFailed,
	StagePitchAdjusting: ErrPitchAdjustmentFailed,
	StageRemuxing:       ErrRemuxFailed,
	StagePublishing:     ErrPublishFailed,
}

// StageError reports which stage of a run failed, its failure kind and the
// underlying cause. errors.Is matches both the kind and the cause.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func newStageError(stage Stage, err error) *StageError {
	kind, ok := stageKinds[stage]
	if !ok {
		kind = fmt.Errorf("%s failed", stage)
	}
	if stage == StagePublishing && errors.Is(err, storage.ErrPermissionGrant) {
		kind = ErrPublishPartial
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the failure kind and the cause.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// FailedStage returns the stage recorded in err, if err carries a *StageError.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// PublishedLink returns the link of an upload that succeeded before its
// permission grant failed.
func PublishedLink(err error) (string, bool) {
	var partial *storage.PartialPublishError
	if errors.As(err, &partial) && partial.Link != "" {
		return partial.Link, true
	}
	return "", false
}
