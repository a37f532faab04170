package translate

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Language is one supported dubbing target.
type Language struct {
	// Name is the lowercase English name accepted from callers (e.g. "hindi").
	Name string
	// Code is the ISO 639-1 code sent to the translation and speech services.
	Code string
	// Tag is the parsed BCP 47 tag for Code.
	Tag language.Tag
}

// String returns the language name.
func (l Language) String() string {
	return l.Name
}

// supported is the fixed language table. English is the fallback.
var supported = []Language{
	{Name: "english", Code: "en", Tag: language.English},
	{Name: "hindi", Code: "hi", Tag: language.Hindi},
	{Name: "tamil", Code: "ta", Tag: language.Tamil},
	{Name: "telugu", Code: "te", Tag: language.Telugu},
	{Name: "malayalam", Code: "ml", Tag: language.Malayalam},
	{Name: "kannada", Code: "kn", Tag: language.Kannada},
	{Name: "marathi", Code: "mr", Tag: language.Marathi},
	{Name: "bengali", Code: "bn", Tag: language.Bengali},
	{Name: "gujarati", Code: "gu", Tag: language.Gujarati},
}

// English is returned by Resolve for unrecognized input.
var English = supported[0]

var (
	byName = make(map[string]Language, len(supported))
	byCode = make(map[string]Language, len(supported))
)

func init() {
	for _, l := range supported {
		byName[l.Name] = l
		byCode[l.Code] = l
	}
}

// Lookup finds a supported language by name or two-letter code, ignoring case.
func Lookup(name string) (Language, bool) {
	key := fold(name)
	if key == "" {
		return Language{}, false
	}
	if l, ok := byName[key]; ok {
		return l, true
	}
	if l, ok := byCode[key]; ok {
		return l, true
	}
	return Language{}, false
}

// Resolve maps a caller-supplied language to a supported one.
// Anything not in the table resolves to English.
func Resolve(name string) Language {
	if l, ok := Lookup(name); ok {
		return l
	}
	return English
}

// Supported returns the language table in display order.
func Supported() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// IsSupportedCode reports whether code is the two-letter code of a supported language.
func IsSupportedCode(code string) bool {
	_, ok := byCode[fold(code)]
	return ok
}

// fold trims and case-folds s. A Caser is stateful, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
