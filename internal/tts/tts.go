// Package tts turns translated text into speech audio using the public
// Google Translate speech endpoint.
package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/maauso/dubbing-api/internal/httpretry"
	"github.com/maauso/dubbing-api/internal/textchunk"
)

// Static errors for speech synthesis.
var (
	// ErrNoText is returned when there is nothing to speak.
	ErrNoText = errors.New("tts: no text to synthesize")
	// ErrUnsupportedLanguage is returned for language codes outside the supported table.
	ErrUnsupportedLanguage = errors.New("tts: unsupported language")
	// ErrEmptyAudio is returned when the service answers with an empty body.
	ErrEmptyAudio = errors.New("tts: empty audio response")
)

// maxChunkRunes is the longest text the speech endpoint accepts per request.
const maxChunkRunes = 100

// Synthesizer produces speech audio for text in a given language.
// Implementations must be safe for concurrent use.
type Synthesizer interface {
	// Synthesize writes MP3 speech for text in langCode to outPath.
	Synthesize(ctx context.Context, text, langCode, outPath string) error
}

// GoogleTTS implements Synthesizer using translate_tts.
type GoogleTTS struct {
	baseURL   string
	client    *httpretry.Client
	supported func(code string) bool
}

// Option is a function that configures a GoogleTTS.
type Option func(*GoogleTTS)

// WithBaseURL sets a custom base URL for the speech endpoint.
func WithBaseURL(u string) Option {
	return func(g *GoogleTTS) {
		g.baseURL = strings.TrimRight(u, "/")
	}
}

// WithClient sets the HTTP client used for requests.
func WithClient(c *httpretry.Client) Option {
	return func(g *GoogleTTS) {
		g.client = c
	}
}

// WithLanguageFilter restricts which language codes are accepted.
// Without one every non-empty code is sent to the service.
func WithLanguageFilter(fn func(code string) bool) Option {
	return func(g *GoogleTTS) {
		g.supported = fn
	}
}

// NewGoogleTTS creates a GoogleTTS.
func NewGoogleTTS(opts ...Option) *GoogleTTS {
	g := &GoogleTTS{
		baseURL: "https://translate.google.com",
		client:  httpretry.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Synthesize implements Synthesizer. Long text is spoken in chunks whose MP3
// frames are concatenated in order into a single file.
func (g *GoogleTTS) Synthesize(ctx context.Context, text, langCode, outPath string) error {
	if langCode == "" || (g.supported != nil && !g.supported(langCode)) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, langCode)
	}

	chunks := textchunk.Split(text, maxChunkRunes)
	if len(chunks) == 0 {
		return ErrNoText
	}

	f, err := os.Create(outPath) // #nosec G304 - outPath is a workspace artifact
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	for i, chunk := range chunks {
		audio, err := g.fetch(ctx, chunk, langCode, i, len(chunks))
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if _, err := f.Write(audio); err != nil {
			_ = f.Close()
			return fmt.Errorf("write audio: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// fetch downloads the MP3 for one chunk.
func (g *GoogleTTS) fetch(ctx context.Context, text, lang string, idx, total int) ([]byte, error) {
	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("tl", lang)
	query.Set("q", text)
	query.Set("total", strconv.Itoa(total))
	query.Set("idx", strconv.Itoa(idx))
	query.Set("textlen", strconv.Itoa(len([]rune(text))))
	endpoint := g.baseURL + "/translate_tts?" + query.Encode()

	body, err := g.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Referer", g.baseURL+"/")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyAudio
	}
	return body, nil
}

// Verify interface implementation at compile time.
var _ Synthesizer = (*GoogleTTS)(nil)
