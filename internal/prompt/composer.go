// Package prompt builds the system prompt and language directive sent to the
// LLM for each chat message.
//
// The system prompt is assembled from fixed sections in a fixed order and
// joined by blank lines:
//
//  1. framing sentence naming the reply language
//  2. optional "User profile:" block
//  3. optional personality line
//  4. optional preferred-traits line
//  5. CRITICAL LANGUAGE POLICY block
//  6. a strict rule written in the reply language itself
//
// The directive is a short, localized reminder sent as a separate user-role
// message right before the user's own text.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tbourn/go-chat-relay/internal/language"
)

// DefaultPersonality is the personality value that adds no personality line.
const DefaultPersonality = "default"

// Profile is the subset of a user profile that shapes the prompt.
type Profile struct {
	Nickname       string
	Occupation     string
	AdditionalInfo string
	Personality    string
	Traits         []string
}

// strictRules are hardcoded in each language rather than translated at
// runtime.
var strictRules = map[language.Code]string{
	language.English: "STRICT RULE: Always answer in English, no matter which language the user writes in.",
	language.German:  "STRENGE REGEL: Antworte immer auf Deutsch, egal in welcher Sprache der Benutzer schreibt.",
	language.Turkish: "KESİN KURAL: Kullanıcı hangi dilde yazarsa yazsın, her zaman Türkçe cevap ver.",
}

var directives = map[language.Code]string{
	language.English: "IMPORTANT: Only respond in English.",
	language.German:  "WICHTIG: Antworte ausschließlich auf Deutsch.",
	language.Turkish: "ÖNEMLİ: Yalnızca Türkçe cevap ver.",
}

// StrictRule returns the localized strict-language rule for c.
func StrictRule(c language.Code) string {
	return strictRules[language.Normalize(string(c))]
}

// Directive returns the localized "only respond in" directive for c.
func Directive(c language.Code) string {
	return directives[language.Normalize(string(c))]
}

// Composer renders prompts. The zero value is ready to use and it holds no
// state, so one instance can be shared across goroutines.
type Composer struct{}

// NewComposer returns a Composer.
func NewComposer() *Composer { return &Composer{} }

// Compose returns the system prompt and the directive message for a reply in
// lang. Unsupported codes are normalized first, so the output always names a
// supported language.
func (c *Composer) Compose(lang language.Code, p Profile) (system, directive string) {
	lang = language.Normalize(string(lang))
	name := lang.Name()
	traits := cleanTraits(p.Traits)

	sections := make([]string, 0, 6)
	sections = append(sections, fmt.Sprintf("You are a helpful, friendly AI assistant. Respond in %s.", name))

	if block := profileBlock(p, traits); block != "" {
		sections = append(sections, block)
	}

	if pers := strings.TrimSpace(p.Personality); pers != "" && !strings.EqualFold(pers, DefaultPersonality) {
		sections = append(sections, fmt.Sprintf("Personality: %s. Adopt this personality consistently in your replies.", pers))
	}

	if len(traits) > 0 {
		sections = append(sections, fmt.Sprintf("Preferred response traits: %s.", strings.Join(traits, ", ")))
	}

	sections = append(sections, strings.Join([]string{
		"CRITICAL LANGUAGE POLICY:",
		fmt.Sprintf("- Default/preferred response language: %s.", name),
		fmt.Sprintf("- Always reply ONLY in %s.", name),
		fmt.Sprintf("- If the user writes in another language, translate their intent internally and still respond in %s. Never switch languages.", name),
		fmt.Sprintf("- Exception: if the user explicitly requests a different language for a specific message, comply for that message only, then revert to %s.", name),
	}, "\n"))

	sections = append(sections, strictRules[lang])

	return strings.Join(sections, "\n\n"), directives[lang]
}

func profileBlock(p Profile, traits []string) string {
	var lines []string
	if v := strings.TrimSpace(p.Nickname); v != "" {
		lines = append(lines, "Call me: "+v)
	}
	if v := strings.TrimSpace(p.Occupation); v != "" {
		lines = append(lines, "I am: "+v)
	}
	if v := strings.TrimSpace(p.AdditionalInfo); v != "" {
		lines = append(lines, "Additional info: "+v)
	}
	if len(traits) > 0 {
		lines = append(lines, "My preferred traits: "+strings.Join(traits, ", "))
	}
	if len(lines) == 0 {
		return ""
	}
	return "User profile:\n" + strings.Join(lines, "\n")
}

// cleanTraits trims, drops blanks and duplicates, and sorts so that equal
// trait sets render identically.
func cleanTraits(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
