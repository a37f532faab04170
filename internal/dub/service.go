package dub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/maauso/dubbing-api/internal/acquire"
	"github.com/maauso/dubbing-api/internal/audio"
	"github.com/maauso/dubbing-api/internal/media"
	"github.com/maauso/dubbing-api/internal/storage"
	"github.com/maauso/dubbing-api/internal/transcribe"
	"github.com/maauso/dubbing-api/internal/translate"
	"github.com/maauso/dubbing-api/internal/tts"
	"github.com/maauso/dubbing-api/internal/workspace"
)

// Request is the input of one dubbing run.
type Request struct {
	// SourceURL references the video to dub.
	SourceURL string
	// TargetLanguage is a language name or code; unknown values mean English.
	TargetLanguage string
}

// Result is the outcome of a successful dubbing run.
type Result struct {
	RunID    string
	Register audio.Register
	Profile  audio.Profile
	// Language is the resolved target language.
	Language translate.Language
	// Link is the public URL of the dubbed video.
	Link string
	// Transcript and Translation are the recognized and translated texts.
	Transcript  string
	Translation string
	Elapsed     time.Duration
}

// VoiceResult is the outcome of voice detection.
type VoiceResult struct {
	RunID    string
	Register audio.Register
	Profile  audio.Profile
}

// Dependencies are the pipeline components a Service drives.
// All of them must be safe for concurrent use.
type Dependencies struct {
	Workspaces  *workspace.Manager
	Acquirer    acquire.Acquirer
	Media       media.Processor
	Profiler    audio.Profiler
	Transcriber transcribe.Transcriber
	Translator  translate.Translator
	Synthesizer tts.Synthesizer
	Publisher   storage.Publisher
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Workspaces == nil {
		missing = append(missing, "workspaces")
	}
	if d.Acquirer == nil {
		missing = append(missing, "acquirer")
	}
	if d.Media == nil {
		missing = append(missing, "media")
	}
	if d.Profiler == nil {
		missing = append(missing, "profiler")
	}
	if d.Transcriber == nil {
		missing = append(missing, "transcriber")
	}
	if d.Translator == nil {
		missing = append(missing, "translator")
	}
	if d.Synthesizer == nil {
		missing = append(missing, "synthesizer")
	}
	if d.Publisher == nil {
		missing = append(missing, "publisher")
	}
	if len(missing) > 0 {
		return fmt.Errorf("dub: missing dependencies: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Service runs dubbing pipelines. Runs share nothing but the injected
// components, so any number may execute concurrently up to the slot limit.
type Service struct {
	deps       Dependencies
	logger     *slog.Logger
	slots      chan struct{}
	runTimeout time.Duration
}

// ServiceOption configures optional parameters for a Service.
type ServiceOption func(*Service)

// WithMaxConcurrentRuns bounds simultaneous runs. Values below 1 mean 1.
func WithMaxConcurrentRuns(n int) ServiceOption {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		s.slots = make(chan struct{}, n)
	}
}

// WithRunTimeout sets a deadline for each run. Zero disables it.
func WithRunTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.runTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. It returns an error if any dependency is nil.
func NewService(deps Dependencies, opts ...ServiceOption) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		deps:   deps,
		logger: slog.Default(),
		slots:  make(chan struct{}, 2),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dub executes the full pipeline for req and returns the public link of the
// dubbed video. On failure the error is a *StageError naming the stage, and
// the workspace has already been removed.
func (s *Service) Dub(ctx context.Context, req Request) (*Result, error) {
	sourceURL := strings.TrimSpace(req.SourceURL)
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: source url is required", ErrInvalidRequest)
	}
	lang := translate.Resolve(req.TargetLanguage)

	run := NewRun(DubPlan)
	logger := s.logger.With(slog.String("run_id", run.ID))
	logger.Info("dubbing run requested",
		slog.String("url", sourceURL),
		slog.String("language", lang.Name),
	)

	ctx, done, err := s.begin(ctx, run, logger)
	if err != nil {
		return nil, err
	}
	defer done()

	start := time.Now()
	result := &Result{RunID: run.ID, Language: lang}

	err = s.deps.Workspaces.With(ctx, run.ID, func(ws *workspace.Workspace) error {
		src, err := s.profileSource(ctx, run, logger, ws, sourceURL)
		if err != nil {
			return err
		}
		result.Profile = src.profile
		result.Register = src.profile.Register

		transcriptArt, err := ws.Artifact(workspace.KindText, "transcript.txt")
		if err != nil {
			return err
		}
		transcript, err := runStage(ctx, run, logger, StageTranscribing, func(ctx context.Context) (transcribe.Result, error) {
			return s.deps.Transcriber.Transcribe(ctx, src.wav.Path, transcriptArt.Path)
		})
		if err != nil {
			return err
		}
		result.Transcript = transcript.Text

		translationArt, err := ws.Artifact(workspace.KindText, "translation.txt")
		if err != nil {
			return err
		}
		translated, err := runStage(ctx, run, logger, StageTranslating, func(ctx context.Context) (translate.Result, error) {
			res, err := s.deps.Translator.Translate(ctx, transcript.Text, lang.Code)
			if err != nil {
				return res, err
			}
			return res, os.WriteFile(translationArt.Path, []byte(res.Text), 0o600)
		})
		if err != nil {
			return err
		}
		result.Translation = translated.Text

		speech, err := ws.Artifact(workspace.KindSynthesizedAudio, "speech.mp3")
		if err != nil {
			return err
		}
		if _, err := runStage(ctx, run, logger, StageSynthesizing, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.deps.Synthesizer.Synthesize(ctx, translated.Text, lang.Code, speech.Path)
		}); err != nil {
			return err
		}

		pitched, err := ws.Artifact(workspace.KindSynthesizedAudio, "speech_pitched.mp3")
		if err != nil {
			return err
		}
		factor := src.profile.Register.PitchFactor()
		if _, err := runStage(ctx, run, logger, StagePitchAdjusting, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.deps.Media.AdjustPitch(ctx, speech.Path, pitched.Path, factor)
		}); err != nil {
			return err
		}

		final, err := ws.Artifact(workspace.KindFinalVideo, "final.mp4")
		if err != nil {
			return err
		}
		if _, err := runStage(ctx, run, logger, StageRemuxing, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.deps.Media.Remux(ctx, src.video.Path, pitched.Path, final.Path)
		}); err != nil {
			return err
		}

		name := fmt.Sprintf("%s_dubbed_%s.mp4", run.ID, lang.Name)
		link, err := runStage(ctx, run, logger, StagePublishing, func(ctx context.Context) (string, error) {
			return s.deps.Publisher.Publish(ctx, final.Path, name)
		})
		if err != nil {
			return err
		}
		result.Link = link
		return nil
	})

	return finish(run, logger, start, result, err)
}

// DetectVoice acquires the video at sourceURL and classifies its speaker
// without dubbing it.
func (s *Service) DetectVoice(ctx context.Context, sourceURL string) (*VoiceResult, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: source url is required", ErrInvalidRequest)
	}

	run := NewRun(DetectPlan)
	logger := s.logger.With(slog.String("run_id", run.ID))
	logger.Info("voice detection requested", slog.String("url", sourceURL))

	ctx, done, err := s.begin(ctx, run, logger)
	if err != nil {
		return nil, err
	}
	defer done()

	start := time.Now()
	result := &VoiceResult{RunID: run.ID}

	err = s.deps.Workspaces.With(ctx, run.ID, func(ws *workspace.Workspace) error {
		src, err := s.profileSource(ctx, run, logger, ws, sourceURL)
		if err != nil {
			return err
		}
		result.Profile = src.profile
		result.Register = src.profile.Register
		return nil
	})

	return finish(run, logger, start, result, err)
}

// profiledSource is what the stages shared by both plans produce.
type profiledSource struct {
	video   workspace.Artifact
	wav     workspace.Artifact
	profile audio.Profile
}

// profileSource runs the stages shared by both plans: acquire, extract and profile.
func (s *Service) profileSource(ctx context.Context, run *Run, logger *slog.Logger, ws *workspace.Workspace, sourceURL string) (profiledSource, error) {
	var out profiledSource

	src, err := runStage(ctx, run, logger, StageAcquiring, func(ctx context.Context) (acquire.Source, error) {
		return s.deps.Acquirer.Acquire(ctx, sourceURL, ws)
	})
	if err != nil {
		return out, err
	}
	out.video = src.Artifact
	logger.Debug("source acquired",
		slog.String("file", src.Filename),
		slog.String("title", src.Title),
		slog.Float64("duration_sec", src.DurationSec),
	)

	out.wav, err = ws.Artifact(workspace.KindAudio, "audio.wav")
	if err != nil {
		return out, err
	}
	if _, err := runStage(ctx, run, logger, StageExtracting, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.deps.Media.ExtractAudio(ctx, out.video.Path, out.wav.Path)
	}); err != nil {
		return out, err
	}

	out.profile, err = runStage(ctx, run, logger, StageProfiling, func(ctx context.Context) (audio.Profile, error) {
		return s.deps.Profiler.Profile(ctx, out.wav.Path), nil
	})
	if err != nil {
		return out, err
	}
	logger.Info("voice profiled",
		slog.String("register", out.profile.Register.String()),
		slog.Float64("median_f0_hz", out.profile.MedianF0Hz),
		slog.Bool("detected", out.profile.Detected),
	)

	return out, nil
}

// begin waits for a run slot and applies the run deadline. The returned
// function releases both.
func (s *Service) begin(ctx context.Context, run *Run, logger *slog.Logger) (context.Context, func(), error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		run.Fail()
		logger.Warn("run cancelled while waiting for a slot", slog.String("error", ctx.Err().Error()))
		return ctx, nil, fmt.Errorf("wait for run slot: %w", ctx.Err())
	}

	cancel := func() {}
	if s.runTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
	}
	return ctx, func() {
		cancel()
		<-s.slots
	}, nil
}

// finish records the terminal stage and logs the outcome.
func finish[T any](run *Run, logger *slog.Logger, start time.Time, result *T, err error) (*T, error) {
	elapsed := time.Since(start)
	if err != nil {
		run.Fail()
		attrs := []any{
			slog.String("error", err.Error()),
			slog.Duration("elapsed", elapsed),
		}
		if st, ok := FailedStage(err); ok {
			attrs = append(attrs, slog.String("stage", string(st)))
		}
		logger.Error("run failed", attrs...)
		return nil, err
	}

	if err := run.TransitionTo(StageDone); err != nil {
		logger.Error("run finished out of order", slog.String("error", err.Error()))
		return nil, err
	}
	if r, ok := any(result).(*Result); ok {
		r.Elapsed = elapsed
	}
	logger.Info("run completed", slog.Duration("elapsed", elapsed))
	return result, nil
}

// runStage advances run to stage, executes fn, logs the outcome and wraps
// any failure in a *StageError. Cancellation is checked before fn starts.
func runStage[T any](ctx context.Context, run *Run, logger *slog.Logger, stage Stage, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := run.TransitionTo(stage); err != nil {
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		return zero, newStageError(stage, err)
	}

	start := time.Now()
	logger.Info("stage started", slog.String("stage", string(stage)))

	v, err := fn(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("stage interrupted", slog.String("stage", string(stage)), slog.String("error", err.Error()))
		} else {
			logger.Error("stage failed",
				slog.String("stage", string(stage)),
				slog.String("error", err.Error()),
				slog.Duration("elapsed", time.Since(start)),
			)
		}
		return zero, newStageError(stage, err)
	}

	logger.Info("stage completed",
		slog.String("stage", string(stage)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return v, nil
}
