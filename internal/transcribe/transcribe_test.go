package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/dubbing-api/internal/command"
)

// fakeWhisper writes a JSON transcript into --output_dir like the real CLI.
type fakeWhisper struct {
	json    string
	err     error
	delay   time.Duration
	active  int32
	peak    int32
	mu      sync.Mutex
	lastArg []string
}

func (f *fakeWhisper) Run(ctx context.Context, _ string, args ...string) (command.Output, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}

	f.mu.Lock()
	f.lastArg = args
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return command.Output{}, ctx.Err()
		}
	}
	if f.err != nil {
		return command.Output{}, f.err
	}
	if f.json == "" {
		return command.Output{}, nil
	}

	var outDir string
	for i, a := range args {
		if a == "--output_dir" {
			outDir = args[i+1]
		}
	}
	base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	return command.Output{}, os.WriteFile(filepath.Join(outDir, base+".json"), []byte(f.json), 0600)
}

func paths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0600))
	return audio, filepath.Join(dir, "transcript.txt")
}

func TestWhisper_Transcribe(t *testing.T) {
	audio, transcript := paths(t)
	r := &fakeWhisper{json: `{"text":"  Hello there, friends. ","language":"en","segments":[]}`}
	w := NewWhisper(WithRunner(r), WithModel("small"))

	res, err := w.Transcribe(context.Background(), audio, transcript)
	require.NoError(t, err)
	assert.Equal(t, "Hello there, friends.", res.Text)
	assert.Equal(t, "en", res.Language)

	data, err := os.ReadFile(transcript)
	require.NoError(t, err)
	assert.Equal(t, "Hello there, friends.", string(data))

	joined := strings.Join(r.lastArg, " ")
	assert.Equal(t, audio, r.lastArg[0])
	assert.Contains(t, joined, "--model small")
	assert.Contains(t, joined, "--output_format json")
	assert.Contains(t, joined, "--fp16 False")
}

func TestWhisper_EmptyTranscriptIsNotAnError(t *testing.T) {
	audio, transcript := paths(t)
	r := &fakeWhisper{json: `{"text":"","language":"en"}`}

	res, err := NewWhisper(WithRunner(r)).Transcribe(context.Background(), audio, transcript)
	require.NoError(t, err)
	assert.Empty(t, res.Text)
}

func TestWhisper_MissingOutput(t *testing.T) {
	audio, transcript := paths(t)

	_, err := NewWhisper(WithRunner(&fakeWhisper{})).Transcribe(context.Background(), audio, transcript)
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestWhisper_MalformedOutput(t *testing.T) {
	audio, transcript := paths(t)

	_, err := NewWhisper(WithRunner(&fakeWhisper{json: "{not json"})).Transcribe(context.Background(), audio, transcript)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse output")
}

func TestWhisper_CommandFailure(t *testing.T) {
	audio, transcript := paths(t)
	r := &fakeWhisper{err: &command.Error{Name: "whisper", ExitCode: 1, Err: assert.AnError}}

	_, err := NewWhisper(WithRunner(r)).Transcribe(context.Background(), audio, transcript)
	var cmdErr *command.Error
	assert.ErrorAs(t, err, &cmdErr)
}

func TestWhisper_ConcurrencyLimit(t *testing.T) {
	r := &fakeWhisper{json: `{"text":"hi"}`, delay: 20 * time.Millisecond}
	w := NewWhisper(WithRunner(r), WithMaxConcurrent(2))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		audio, transcript := paths(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Transcribe(context.Background(), audio, transcript)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&r.peak), int32(2))
}

func TestWhisper_WaitHonoursContext(t *testing.T) {
	r := &fakeWhisper{json: `{"text":"hi"}`, delay: time.Second}
	w := NewWhisper(WithRunner(r), WithMaxConcurrent(1))

	audio, transcript := paths(t)
	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = w.Transcribe(context.Background(), audio, transcript)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	audio2, transcript2 := paths(t)
	_, err := w.Transcribe(ctx, audio2, transcript2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewWhisper_Defaults(t *testing.T) {
	w := NewWhisper()
	assert.Equal(t, DefaultBinary, w.binary)
	assert.Equal(t, DefaultModel, w.Model())
	assert.Equal(t, 1, cap(w.sem))

	w = NewWhisper(WithMaxConcurrent(0), WithBinary("/opt/whisper"))
	assert.Equal(t, 1, cap(w.sem))
	assert.Equal(t, "/opt/whisper", w.binary)
}
