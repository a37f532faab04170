package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/dubbing-api/internal/httpretry"
)

func newTestTTS(t *testing.T, handler http.HandlerFunc, opts ...Option) *GoogleTTS {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithBaseURL(server.URL),
		WithClient(httpretry.New(httpretry.WithBaseBackoff(time.Millisecond))),
	}, opts...)
	return NewGoogleTTS(opts...)
}

func TestGoogleTTS_Synthesize(t *testing.T) {
	g := newTestTTS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate_tts", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "tw-ob", q.Get("client"))
		assert.Equal(t, "hi", q.Get("tl"))
		assert.Equal(t, "नमस्ते", q.Get("q"))
		assert.Equal(t, "1", q.Get("total"))
		assert.Equal(t, "0", q.Get("idx"))
		assert.Equal(t, "6", q.Get("textlen"))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-mp3"))
	})

	out := filepath.Join(t.TempDir(), "speech.mp3")
	require.NoError(t, g.Synthesize(context.Background(), "नमस्ते", "hi", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID3-mp3", string(data))
}

func TestGoogleTTS_ChunksAreConcatenatedInOrder(t *testing.T) {
	var calls int32
	g := newTestTTS(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		assert.LessOrEqual(t, len([]rune(q.Get("q"))), maxChunkRunes)
		_, _ = w.Write([]byte("[" + q.Get("idx") + "/" + q.Get("total") + "]"))
	})

	text := strings.Repeat("This sentence is spoken aloud. ", 10)
	out := filepath.Join(t.TempDir(), "speech.mp3")
	require.NoError(t, g.Synthesize(context.Background(), text, "en", out))

	n := int(atomic.LoadInt32(&calls))
	require.Greater(t, n, 1)

	var want strings.Builder
	for i := 0; i < n; i++ {
		want.WriteString("[" + strconv.Itoa(i) + "/" + strconv.Itoa(n) + "]")
	}
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, want.String(), string(data))
}

func TestGoogleTTS_NoText(t *testing.T) {
	var calls int32
	g := newTestTTS(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	err := g.Synthesize(context.Background(), " \n ", "hi", filepath.Join(t.TempDir(), "x.mp3"))
	assert.ErrorIs(t, err, ErrNoText)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestGoogleTTS_UnsupportedLanguage(t *testing.T) {
	g := newTestTTS(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("service must not be called")
	}, WithLanguageFilter(func(code string) bool { return code == "hi" }))

	err := g.Synthesize(context.Background(), "bonjour", "fr", filepath.Join(t.TempDir(), "x.mp3"))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	err = g.Synthesize(context.Background(), "hello", "", filepath.Join(t.TempDir(), "x.mp3"))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestGoogleTTS_EmptyAudio(t *testing.T) {
	g := newTestTTS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	err := g.Synthesize(context.Background(), "hello", "en", filepath.Join(t.TempDir(), "x.mp3"))
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestGoogleTTS_ServiceError(t *testing.T) {
	g := newTestTTS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := g.Synthesize(context.Background(), "hello", "en", filepath.Join(t.TempDir(), "x.mp3"))
	assert.ErrorIs(t, err, httpretry.ErrRequestFailed)
}
