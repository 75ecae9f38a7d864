// Package language decides which language a chat reply should be written in.
//
// It covers three concerns:
//   - Code and Normalize: the closed set of supported reply languages and the
//     mapping from free-form tags and aliases onto that set.
//   - Detector: a keyword/diacritic heuristic that guesses the language of a
//     piece of text.
//   - Resolver: combines a stored user preference, an optional forced language
//     and explicit in-message requests into one Resolution per message.
//
// Every type in this package is immutable after construction and safe for
// concurrent use.
package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Code is a canonical two-letter reply language code.
type Code string

// Supported reply languages.
const (
	English Code = "en"
	German  Code = "de"
	Turkish Code = "tr"

	// Default is used whenever input is blank or unrecognized.
	Default = English
)

// Supported returns the reply languages in tie-break order.
func Supported() []Code {
	return []Code{English, German, Turkish}
}

// Valid reports whether c is one of the supported codes.
func (c Code) Valid() bool {
	switch c {
	case English, German, Turkish:
		return true
	}
	return false
}

func (c Code) String() string { return string(c) }

// Tag returns the BCP 47 tag for c. Unsupported codes map to the default.
func (c Code) Tag() xlang.Tag {
	switch c {
	case German:
		return xlang.German
	case Turkish:
		return xlang.Turkish
	default:
		return xlang.English
	}
}

// Name returns the English display name of c, e.g. "German".
func (c Code) Name() string {
	if !c.Valid() {
		c = Default
	}
	if n := display.English.Languages().Name(c.Tag()); n != "" {
		return n
	}
	return string(c)
}

// aliases maps lowercase language names in the three supported languages to
// their code.
var aliases = map[string]Code{
	"english":   English,
	"englisch":  English,
	"ingilizce": English,
	"german":    German,
	"deutsch":   German,
	"almanca":   German,
	"turkish":   Turkish,
	"türkisch":  Turkish,
	"turkisch":  Turkish,
	"türkçe":    Turkish,
	"turkce":    Turkish,
}

// Normalize maps a language tag, regional variant or language name onto a
// supported Code. Blank or unrecognized input yields Default. Normalizing a
// canonical code returns it unchanged.
//
//	Normalize("de_DE")   // de
//	Normalize("Türkçe")  // tr
//	Normalize("deu")     // de
//	Normalize("fr")      // en
func Normalize(s string) Code {
	v := Fold(strings.TrimSpace(s))
	if v == "" {
		return Default
	}
	if c, ok := aliases[v]; ok {
		return c
	}

	base := v
	if i := strings.IndexAny(v, "-_"); i > 0 {
		base = v[:i]
	}
	if c := Code(base); c.Valid() {
		return c
	}

	// ISO 639-2/3 forms such as "deu" or "tur".
	if tag, err := xlang.Parse(v); err == nil {
		if b, conf := tag.Base(); conf != xlang.No {
			if c := Code(b.String()); c.Valid() {
				return c
			}
		}
	}
	return Default
}

// Fold lowercases s for keyword matching. A combining dot above (U+0307, as
// in decomposed "İ") is dropped so "İngilizce" and "ingilizce" compare equal.
func Fold(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "\u0307", "")
}
