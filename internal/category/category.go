// Package category tags chat messages with a coarse question category.
//
// Classification is an ordered list of keyword rules. A rule matches when any
// of its keywords is a substring of the lowercased message; the first matching
// rule wins and messages matching nothing are tagged General.
package category

import (
	"strings"

	"github.com/tbourn/go-chat-relay/internal/language"
)

// Category tags. The values are stored verbatim in chat history.
const (
	Weather  = "HAVA_DURUMU"
	Time     = "ZAMAN"
	Thanks   = "TEŞEKKÜR"
	Info     = "BİLGİ"
	Help     = "YARDIM"
	Greeting = "SELAMLAMA"
	How      = "NASIL"
	Why      = "NEDEN"
	Question = "SORU"
	General  = "GENEL"
)

// Rule maps a keyword set to a tag.
type Rule struct {
	Tag      string
	Keywords []string
}

// DefaultRules returns a fresh copy of the built-in rules in match order.
// Topical rules (weather, time) come before greetings so that
// "Hello, what's the weather?" is a weather question.
func DefaultRules() []Rule {
	return []Rule{
		{Tag: Weather, Keywords: []string{"hava", "weather"}},
		{Tag: Time, Keywords: []string{"saat", "time", "tarih", "date"}},
		{Tag: Thanks, Keywords: []string{"teşekkür", "thank"}},
		{Tag: Info, Keywords: []string{"ne yapıyorsun", "what do you do", "kimsin", "who are you"}},
		{Tag: Help, Keywords: []string{"yardım", "help"}},
		{Tag: Greeting, Keywords: []string{"merhaba", "selam", "hello", "hi", "nasılsın", "how are you"}},
		{Tag: How, Keywords: []string{"nasıl", "how"}},
		{Tag: Why, Keywords: []string{"neden", "why"}},
		{Tag: Question, Keywords: []string{"ne", "what"}},
	}
}

// Classifier applies rules in order. It is immutable and safe for concurrent
// use.
type Classifier struct {
	rules []Rule
}

// New builds a Classifier from rules. Keywords are folded to lowercase and
// blank ones dropped; the input is not retained.
func New(rules []Rule) *Classifier {
	c := &Classifier{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = language.Fold(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		if r.Tag == "" || len(kws) == 0 {
			continue
		}
		c.rules = append(c.rules, Rule{Tag: r.Tag, Keywords: kws})
	}
	return c
}

// Default builds a Classifier over DefaultRules.
func Default() *Classifier { return New(DefaultRules()) }

// Classify returns the tag of the first rule with a keyword contained in
// message, or General.
func (c *Classifier) Classify(message string) string {
	lower := language.Fold(message)
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(lower, k) {
				return r.Tag
			}
		}
	}
	return General
}

// Tags lists every tag Classify can return, in rule order, ending with
// General.
func (c *Classifier) Tags() []string {
	out := make([]string, 0, len(c.rules)+1)
	for _, r := range c.rules {
		out = append(out, r.Tag)
	}
	return append(out, General)
}
