// Package media provides the ffmpeg-backed audio and video steps of a dubbing run.
package media

import "context"

// Processor defines the interface for audio and video processing operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
// Every operation reads src and writes a new file at dst; inputs are never
// modified in place.
type Processor interface {
	// ExtractAudio writes the audio track of src to dst as mono 16 kHz
	// 16-bit PCM WAV. It fails if src has no audio stream.
	ExtractAudio(ctx context.Context, src, dst string) error

	// AdjustPitch resamples src by factor and writes the result to dst.
	// Factors above 1 raise pitch and shorten duration; below 1 lower both.
	AdjustPitch(ctx context.Context, src, dst string, factor float64) error

	// Remux combines the first video stream of video with the first audio
	// stream of audio into dst. Video is stream-copied; output duration is
	// the shorter of the two inputs.
	Remux(ctx context.Context, video, audio, dst string) error
}
