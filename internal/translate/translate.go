// Package translate resolves target languages and translates transcripts
// through the public Google Translate endpoint.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/maauso/dubbing-api/internal/httpretry"
	"github.com/maauso/dubbing-api/internal/textchunk"
)

// Static errors for translation operations.
var (
	// ErrTargetRequired is returned when no target language code is given.
	ErrTargetRequired = errors.New("translate: target language is required")
	// ErrUnexpectedResponse is returned when the response body cannot be parsed.
	ErrUnexpectedResponse = errors.New("translate: unexpected response format")
)

// maxChunkRunes keeps each request under the endpoint's 5000 character limit.
const maxChunkRunes = 4500

// Result is the outcome of one translation.
type Result struct {
	// Text is the translated text.
	Text string
	// LanguageCode is the target language code.
	LanguageCode string
	// DetectedSource is the source language reported by the service, if any.
	DetectedSource string
}

// Translator converts text into a target language.
// Implementations must be safe for concurrent use.
type Translator interface {
	// Translate returns text translated into targetCode. Empty input yields
	// an empty result without contacting the service.
	Translate(ctx context.Context, text, targetCode string) (Result, error)
}

// GoogleTranslator implements Translator using translate_a/single.
type GoogleTranslator struct {
	baseURL string
	client  *httpretry.Client
}

// GoogleOption is a function that configures a GoogleTranslator.
type GoogleOption func(*GoogleTranslator)

// WithBaseURL sets a custom base URL for the translation endpoint.
func WithBaseURL(u string) GoogleOption {
	return func(g *GoogleTranslator) {
		g.baseURL = strings.TrimRight(u, "/")
	}
}

// WithClient sets the HTTP client used for requests.
func WithClient(c *httpretry.Client) GoogleOption {
	return func(g *GoogleTranslator) {
		g.client = c
	}
}

// NewGoogleTranslator creates a GoogleTranslator.
func NewGoogleTranslator(opts ...GoogleOption) *GoogleTranslator {
	g := &GoogleTranslator{
		baseURL: "https://translate.googleapis.com",
		client:  httpretry.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Translate implements Translator.
func (g *GoogleTranslator) Translate(ctx context.Context, text, targetCode string) (Result, error) {
	if targetCode == "" {
		return Result{}, ErrTargetRequired
	}

	result := Result{LanguageCode: targetCode}
	chunks := textchunk.Split(text, maxChunkRunes)
	if len(chunks) == 0 {
		return result, nil
	}

	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		translated, source, err := g.translateChunk(ctx, chunk, targetCode)
		if err != nil {
			return Result{}, fmt.Errorf("translate chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if result.DetectedSource == "" {
			result.DetectedSource = source
		}
		parts = append(parts, translated)
	}

	result.Text = strings.Join(parts, " ")
	return result, nil
}

// translateChunk sends one request and returns the translation and detected source.
func (g *GoogleTranslator) translateChunk(ctx context.Context, text, target string) (string, string, error) {
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", "auto")
	query.Set("tl", target)
	query.Set("dt", "t")
	endpoint := g.baseURL + "/translate_a/single?" + query.Encode()

	form := url.Values{}
	form.Set("q", text)
	encoded := form.Encode()

	body, err := g.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
		return req, nil
	})
	if err != nil {
		return "", "", err
	}

	return parseResponse(body)
}

// parseResponse decodes the nested-array payload:
//
//	[[["translated","original",null,null,10], ...], null, "en", ...]
func parseResponse(body []byte) (string, string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	if len(top) == 0 {
		return "", "", ErrUnexpectedResponse
	}

	var segments [][]json.RawMessage
	if string(top[0]) != "null" {
		if err := json.Unmarshal(top[0], &segments); err != nil {
			return "", "", fmt.Errorf("%w: segments: %w", ErrUnexpectedResponse, err)
		}
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var piece *string
		if err := json.Unmarshal(seg[0], &piece); err != nil {
			return "", "", fmt.Errorf("%w: segment text: %w", ErrUnexpectedResponse, err)
		}
		if piece != nil {
			b.WriteString(*piece)
		}
	}

	var source string
	if len(top) > 2 {
		_ = json.Unmarshal(top[2], &source)
	}

	return strings.TrimSpace(b.String()), source, nil
}

// Verify interface implementation at compile time.
var _ Translator = (*GoogleTranslator)(nil)
