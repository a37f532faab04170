package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/maauso/dubbing-api/internal/command"
)

// Static errors for media operations.
var (
	// ErrInvalidFactor is returned when the pitch factor is not positive.
	ErrInvalidFactor = errors.New("invalid pitch factor: must be positive")
	// ErrInvalidSampleRate is returned when a sample rate is not positive.
	ErrInvalidSampleRate = errors.New("invalid sample rate: must be positive")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrInputMissing is returned when an input file does not exist.
	ErrInputMissing = errors.New("input file does not exist")
)

// Extraction output format expected by the transcriber and the profiler.
const (
	ExtractSampleRate = 16000
	ExtractChannels   = 1
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	runner      command.Runner
}

// Option is a function that configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithFFmpegPath sets the ffmpeg binary. Empty keeps the default.
func WithFFmpegPath(path string) Option {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffmpegPath = path
		}
	}
}

// WithFFprobePath sets the ffprobe binary. Empty keeps the default.
func WithFFprobePath(path string) Option {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// WithRunner sets the command runner.
func WithRunner(r command.Runner) Option {
	return func(p *FFmpegProcessor) {
		p.runner = r
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Binaries default to "ffmpeg" and "ffprobe" found via PATH.
func NewFFmpegProcessor(opts ...Option) *FFmpegProcessor {
	p := &FFmpegProcessor{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      command.NewExecRunner(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExtractAudio implements Processor.
func (p *FFmpegProcessor) ExtractAudio(ctx context.Context, src, dst string) error {
	if err := requireFile(src); err != nil {
		return err
	}

	args := []string{
		"-y",      // Overwrite output file without asking
		"-i", src, // Input file
		"-vn",                                  // Drop video
		"-ac", strconv.Itoa(ExtractChannels), // Mono
		"-ar", strconv.Itoa(ExtractSampleRate), // 16 kHz
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-f", "wav", // WAV container
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// AdjustPitch implements Processor. The shift is done by declaring the
// samples to be at sr*factor and resampling back to sr, which scales pitch
// and tempo together.
func (p *FFmpegProcessor) AdjustPitch(ctx context.Context, src, dst string, factor float64) error {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidFactor, factor)
	}
	if err := requireFile(src); err != nil {
		return err
	}

	sr, err := p.SampleRate(ctx, src)
	if err != nil {
		return fmt.Errorf("probe sample rate: %w", err)
	}
	filter, err := PitchFilter(sr, factor)
	if err != nil {
		return err
	}

	args := []string{
		"-y",
		"-i", src,
		"-af", filter,
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// PitchFilter builds the ffmpeg audio filter for a pitch factor at sampleRate.
// It is deterministic for a given input.
func PitchFilter(sampleRate int, factor float64) (string, error) {
	if sampleRate <= 0 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return "", fmt.Errorf("%w: got %v", ErrInvalidFactor, factor)
	}
	shifted := int(math.Round(float64(sampleRate) * factor))
	return fmt.Sprintf("asetrate=%d,aresample=%d", shifted, sampleRate), nil
}

// Remux implements Processor.
func (p *FFmpegProcessor) Remux(ctx context.Context, video, audio, dst string) error {
	if err := requireFile(video); err != nil {
		return err
	}
	if err := requireFile(audio); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-i", video, // Input 0: original video
		"-i", audio, // Input 1: dubbed audio
		"-map", "0:v:0", // First video stream of input 0
		"-map", "1:a:0", // First audio stream of input 1
		"-c:v", "copy", // Keep video bytes unchanged
		"-c:a", "aac", // Audio codec
		"-shortest",               // Stop at the shorter input
		"-movflags", "+faststart", // Streamable mp4
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// SampleRate returns the sample rate of the first audio stream in path.
func (p *FFmpegProcessor) SampleRate(ctx context.Context, path string) (int, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	sr, err := strconv.Atoi(firstLine(out))
	if err != nil {
		return 0, fmt.Errorf("parse sample rate: %w", err)
	}
	if sr <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sr)
	}
	return sr, nil
}

// GetMediaDuration returns the duration in seconds of a media file.
// It uses ffprobe to extract the duration metadata.
func (p *FFmpegProcessor) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	var duration float64
	if _, err := fmt.Sscanf(firstLine(out), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// runFFmpeg executes ffmpeg with the given arguments. Failures carry the
// stderr output through *command.Error.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	full := append([]string{"-hide_banner", "-nostdin"}, args...)
	if _, err := p.runner.Run(ctx, p.ffmpegPath, full...); err != nil {
		return err
	}
	return nil
}

// runFFprobe executes ffprobe and returns its stdout.
func (p *FFmpegProcessor) runFFprobe(ctx context.Context, args ...string) (string, error) {
	out, err := p.runner.Run(ctx, p.ffprobePath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
	}
	return out.Stdout, nil
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return fmt.Errorf("stat input: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Verify interface implementation at compile time.
var _ Processor = (*FFmpegProcessor)(nil)
