package language

import (
	"regexp"
	"strings"
)

// Source records which rule produced a Resolution.
type Source string

const (
	// SourceForced means the user's forced language pinned the reply.
	SourceForced Source = "forced"
	// SourceExplicit means the message itself asked for a language.
	SourceExplicit Source = "explicit"
	// SourcePreference means the stored preferred language was used.
	SourcePreference Source = "preference"
)

// Preference is the stored per-user language setting. Forced only counts
// when Force is true.
type Preference struct {
	Preferred Code
	Force     bool
	Forced    Code
}

// Resolution is the reply language chosen for one message.
type Resolution struct {
	Language Code   `json:"language"`
	Source   Source `json:"source"`
}

// OverridePatterns returns the built-in explicit-request patterns in match
// order. Each pattern has capture groups; the first non-empty group holds a
// language code or language name.
func OverridePatterns() []string {
	return []string{
		`language\s*:\s*(en|de|tr)`,
		`(?:respond|reply|answer) in (english|german|turkish)`,
		`(türkçe|turkce|ingilizce|almanca).*(?:cevapla|yanıtla|yanitla)|(?:cevap|yanıt|yanit).*?(türkçe|turkce|ingilizce|almanca)`,
		`(?:auf )?(deutsch|englisch|türkisch)(?: bitte)?`,
	}
}

// Resolver picks the reply language for a message.
type Resolver struct {
	overrides []*regexp.Regexp
}

// NewResolver builds a Resolver over the built-in override patterns.
func NewResolver() *Resolver {
	r, err := NewResolverWithPatterns(OverridePatterns())
	if err != nil {
		panic(err)
	}
	return r
}

// NewResolverWithPatterns compiles patterns in order. Patterns are matched
// against folded (lowercase) text.
func NewResolverWithPatterns(patterns []string) (*Resolver, error) {
	r := &Resolver{overrides: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		r.overrides = append(r.overrides, re)
	}
	return r, nil
}

// Explicit reports the language a message explicitly asks the reply to be
// written in, if any.
func (r *Resolver) Explicit(message string) (Code, bool) {
	lower := Fold(message)
	if strings.TrimSpace(lower) == "" {
		return "", false
	}
	for _, re := range r.overrides {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		for _, g := range m[1:] {
			if g != "" {
				return Normalize(g), true
			}
		}
	}
	return "", false
}

// Resolve picks the reply language for message:
//  1. the forced language, when forcing is on and a language is set;
//  2. an explicit request inside the message (this message only);
//  3. the preferred language, or Default when unset.
func (r *Resolver) Resolve(message string, pref Preference) Resolution {
	if pref.Force && strings.TrimSpace(string(pref.Forced)) != "" {
		return Resolution{Language: Normalize(string(pref.Forced)), Source: SourceForced}
	}
	if c, ok := r.Explicit(message); ok {
		return Resolution{Language: c, Source: SourceExplicit}
	}
	return Resolution{Language: Normalize(string(pref.Preferred)), Source: SourcePreference}
}
