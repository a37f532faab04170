// Package textchunk splits long text into pieces that fit request size limits
// of the translation and speech services.
package textchunk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Split breaks text into chunks of at most max runes. It prefers to cut after
// sentence punctuation, then at whitespace, and only splits inside a word when
// a single word is longer than max. Chunks are trimmed; empty chunks are dropped.
func Split(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)

	for len(runes) > 0 {
		if len(runes) <= max {
			chunks = appendTrimmed(chunks, string(runes))
			break
		}

		cut := lastBoundary(runes[:max+1], isSentenceEnd)
		if cut <= 0 {
			cut = lastBoundary(runes[:max+1], unicode.IsSpace)
		}
		if cut <= 0 {
			cut = max
		}

		chunks = appendTrimmed(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}

	return chunks
}

// lastBoundary returns the index just after the last rune matching fn within
// window, or 0 if none matches.
func lastBoundary(window []rune, fn func(rune) bool) int {
	for i := len(window) - 1; i > 0; i-- {
		if fn(window[i-1]) {
			return i
		}
	}
	return 0
}

// isSentenceEnd matches Latin sentence punctuation and the Devanagari danda,
// which ends sentences in Hindi, Marathi and Bengali.
func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n', '।', '॥':
		return true
	}
	return false
}

func appendTrimmed(chunks []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}
