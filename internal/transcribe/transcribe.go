// Package transcribe converts speech audio to text with the whisper CLI.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maauso/dubbing-api/internal/command"
)

// Static errors for transcription.
var (
	// ErrNoTranscript is returned when whisper exits cleanly without writing its JSON output.
	ErrNoTranscript = errors.New("transcribe: whisper produced no transcript")
)

// Defaults for the whisper CLI.
const (
	DefaultBinary = "whisper"
	DefaultModel  = "base"
)

// Result is a transcript. Text may be empty when no speech was recognized.
type Result struct {
	Text     string
	Language string
}

// Transcriber produces a transcript from an audio file.
// Implementations must be safe for concurrent use.
type Transcriber interface {
	// Transcribe recognizes speech in audioPath and writes the plain text to
	// transcriptPath.
	Transcribe(ctx context.Context, audioPath, transcriptPath string) (Result, error)
}

// Whisper implements Transcriber by running the openai-whisper CLI.
// Model invocations are memory heavy, so at most maxConcurrent run at once.
type Whisper struct {
	binary string
	model  string
	runner command.Runner
	sem    chan struct{}
}

// Option is a function that configures a Whisper transcriber.
type Option func(*Whisper)

// WithBinary sets the whisper binary. Empty keeps the default.
func WithBinary(path string) Option {
	return func(w *Whisper) {
		if path != "" {
			w.binary = path
		}
	}
}

// WithModel sets the whisper model size (tiny, base, small, ...).
func WithModel(model string) Option {
	return func(w *Whisper) {
		if model != "" {
			w.model = model
		}
	}
}

// WithRunner sets the command runner.
func WithRunner(r command.Runner) Option {
	return func(w *Whisper) {
		w.runner = r
	}
}

// WithMaxConcurrent bounds simultaneous whisper processes. Values below 1 mean 1.
func WithMaxConcurrent(n int) Option {
	return func(w *Whisper) {
		if n < 1 {
			n = 1
		}
		w.sem = make(chan struct{}, n)
	}
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(opts ...Option) *Whisper {
	w := &Whisper{
		binary: DefaultBinary,
		model:  DefaultModel,
		runner: command.NewExecRunner(),
		sem:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Model returns the configured model name for logging.
func (w *Whisper) Model() string {
	return w.model
}

// whisperOutput is the subset of whisper's JSON output we read.
type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe implements Transcriber.
func (w *Whisper) Transcribe(ctx context.Context, audioPath, transcriptPath string) (Result, error) {
	if audioPath == "" {
		return Result{}, fmt.Errorf("transcribe: audio path required")
	}

	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("transcribe: waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.sem }()

	outputDir := filepath.Dir(transcriptPath)
	args := []string{
		audioPath,
		"--model", w.model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--fp16", "False",
		"--verbose", "False",
	}
	if _, err := w.runner.Run(ctx, w.binary, args...); err != nil {
		return Result{}, fmt.Errorf("whisper: %w", err)
	}

	// whisper names its output after the input file
	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")

	res, err := loadResult(jsonPath)
	if err != nil {
		return Result{}, err
	}

	if err := os.WriteFile(transcriptPath, []byte(res.Text), 0o600); err != nil {
		return Result{}, fmt.Errorf("transcribe: write transcript: %w", err)
	}
	return res, nil
}

func loadResult(path string) (Result, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is inside the run workspace
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrNoTranscript, filepath.Base(path))
		}
		return Result{}, fmt.Errorf("transcribe: read output: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("transcribe: parse output: %w", err)
	}
	return Result{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
	}, nil
}

// Verify interface implementation at compile time.
var _ Transcriber = (*Whisper)(nil)
