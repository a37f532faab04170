// Package audio estimates the speaking register of a recording from its
// fundamental frequency.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/go-audio/wav"
)

// Register is the two-way voice classification used to pick a pitch shift.
type Register string

const (
	// Male is chosen for low median F0 and whenever no voice is found.
	Male Register = "male"
	// Female is chosen when median F0 is above the threshold.
	Female Register = "female"
)

// pitchFactors maps each register to the resampling factor applied to the
// synthesized voice.
var pitchFactors = map[Register]float64{
	Female: 1.1,
	Male:   0.9,
}

// PitchFactor returns the pitch multiplier for r. Unknown values get the male factor.
func (r Register) PitchFactor() float64 {
	if f, ok := pitchFactors[r]; ok {
		return f
	}
	return pitchFactors[Male]
}

// String returns the register name.
func (r Register) String() string {
	return string(r)
}

// Profile is the result of voice analysis.
type Profile struct {
	// MedianF0Hz is the median fundamental frequency of voiced frames, 0 if none.
	MedianF0Hz float64
	// Detected reports whether any voiced frame was found.
	Detected bool
	// Register is the classification derived from MedianF0Hz.
	Register Register
	// VoicedFrames and Frames count analysed frames.
	VoicedFrames int
	Frames       int
}

// Profiler classifies the voice in an audio file.
// Profiling never fails: undecodable or silent input yields the male default.
type Profiler interface {
	Profile(ctx context.Context, wavPath string) Profile
}

// ErrNotWAV is returned when the input is not a PCM WAV file.
var ErrNotWAV = errors.New("audio: not a valid WAV file")

// Default analysis parameters.
const (
	DefaultThresholdHz = 165.0
	DefaultMinHz       = 65.0
	DefaultMaxHz       = 523.0
	DefaultMaxFrames   = 2000

	frameDuration = 0.05
	yinThreshold  = 0.15
	// rmsFloor is roughly -40 dBFS; quieter frames are treated as unvoiced.
	rmsFloor = 0.01
)

// PitchProfiler implements Profiler with a YIN pitch estimator.
type PitchProfiler struct {
	thresholdHz float64
	minHz       float64
	maxHz       float64
	maxFrames   int
	logger      *slog.Logger
}

// Option is a function that configures a PitchProfiler.
type Option func(*PitchProfiler)

// WithThreshold sets the median F0 above which a voice is classified female.
func WithThreshold(hz float64) Option {
	return func(p *PitchProfiler) {
		if hz > 0 {
			p.thresholdHz = hz
		}
	}
}

// WithBand sets the F0 search band.
func WithBand(minHz, maxHz float64) Option {
	return func(p *PitchProfiler) {
		if minHz > 0 && maxHz > minHz {
			p.minHz = minHz
			p.maxHz = maxHz
		}
	}
}

// WithMaxFrames caps the number of analysed frames.
func WithMaxFrames(n int) Option {
	return func(p *PitchProfiler) {
		if n > 0 {
			p.maxFrames = n
		}
	}
}

// WithLogger sets the logger used to report decode failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *PitchProfiler) {
		p.logger = l
	}
}

// NewPitchProfiler creates a PitchProfiler with default parameters.
func NewPitchProfiler(opts ...Option) *PitchProfiler {
	p := &PitchProfiler{
		thresholdHz: DefaultThresholdHz,
		minHz:       DefaultMinHz,
		maxHz:       DefaultMaxHz,
		maxFrames:   DefaultMaxFrames,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profile implements Profiler.
func (p *PitchProfiler) Profile(ctx context.Context, wavPath string) Profile {
	samples, sampleRate, err := ReadMono(wavPath)
	if err != nil {
		p.logger.Warn("voice profiling fell back to default", "path", wavPath, "error", err)
		return Profile{Register: Male}
	}
	return p.Analyze(ctx, samples, sampleRate)
}

// Analyze profiles normalized mono samples directly.
func (p *PitchProfiler) Analyze(ctx context.Context, samples []float64, sampleRate int) Profile {
	est := newYIN(sampleRate, p.minHz, p.maxHz, yinThreshold)
	frameLen := int(float64(sampleRate) * frameDuration)
	starts := frameStarts(len(samples), frameLen, p.maxFrames)

	f0s := make([]float64, 0, len(starts))
	for i, start := range starts {
		if i%64 == 0 && ctx.Err() != nil {
			break
		}
		frame := samples[start : start+frameLen]
		if rms(frame) < rmsFloor {
			continue
		}
		if f0, ok := est.estimate(frame); ok {
			f0s = append(f0s, f0)
		}
	}

	prof := Profile{
		VoicedFrames: len(f0s),
		Frames:       len(starts),
	}
	if len(f0s) > 0 {
		prof.Detected = true
		prof.MedianF0Hz = median(f0s)
	}
	prof.Register = Classify(prof.MedianF0Hz, p.thresholdHz)
	return prof
}

// Classify maps a median F0 to a register. Only values strictly above
// thresholdHz are female, so zero (no voice) is male.
func Classify(medianHz, thresholdHz float64) Register {
	if medianHz > thresholdHz {
		return Female
	}
	return Male
}

// ReadMono decodes a PCM WAV file into mono samples in [-1, 1].
func ReadMono(path string) ([]float64, int, error) {
	f, err := os.Open(path) // #nosec G304 - path is a workspace artifact
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, ErrNotWAV
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = int(dec.BitDepth)
	}
	if depth <= 0 {
		depth = 16
	}
	scale := math.Pow(2, float64(depth-1))

	n := len(buf.Data) / channels
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = sum / float64(channels) / scale
	}
	return out, buf.Format.SampleRate, nil
}

// frameStarts returns up to maxFrames evenly spaced frame offsets.
// Frames overlap by half when the signal is short.
func frameStarts(total, frameLen, maxFrames int) []int {
	if frameLen <= 0 || total < frameLen {
		return nil
	}
	hop := frameLen / 2
	if hop < 1 {
		hop = 1
	}
	available := (total-frameLen)/hop + 1
	count := available
	if maxFrames > 0 && count > maxFrames {
		count = maxFrames
	}

	starts := make([]int, count)
	if count == 1 {
		return starts
	}
	last := total - frameLen
	for i := range starts {
		starts[i] = int(int64(i) * int64(last) / int64(count-1))
	}
	return starts
}

func rms(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Verify interface implementation at compile time.
var _ Profiler = (*PitchProfiler)(nil)
