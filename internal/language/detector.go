package language

import (
	"regexp"
	"strings"
)

// KeywordTable lists, per language, the lowercase words that count as
// evidence for that language.
type KeywordTable map[Code][]string

// DefaultKeywords returns a fresh copy of the built-in keyword table.
func DefaultKeywords() KeywordTable {
	return KeywordTable{
		Turkish: {
			"merhaba", "selam", "nasılsın", "teşekkür", "evet", "hayır", "tamam", "güzel",
			"iyi", "kötü", "ne", "nasıl", "neden", "kim", "nerede", "hangi", "kaç",
			"büyük", "küçük", "ben", "sen", "o", "biz", "siz", "onlar", "bu", "şu",
			"şey", "her", "hiç", "bazı", "ve", "veya", "ama", "çünkü", "eğer", "ise",
			"için", "ile", "gibi", "kadar", "çok", "az", "daha", "en", "hem", "ya",
			"da", "de", "den", "dan", "in", "ın", "un", "ün",
		},
		German: {
			"hallo", "guten", "tag", "morgen", "abend", "danke", "bitte", "ja", "nein",
			"okay", "gut", "schlecht", "was", "wie", "warum", "wer", "wo", "wann",
			"welche", "wieviel", "groß", "klein", "ich", "du", "er", "sie", "es", "wir",
			"ihr", "das", "der", "die", "ein", "eine", "und", "oder", "aber", "weil",
			"wenn", "dann", "für", "mit", "bis", "sehr", "wenig", "mehr", "am", "den",
			"ist", "sind", "war", "waren", "habe", "hat", "haben", "hatte", "hatten",
		},
		English: {
			"hello", "hi", "how", "are", "you", "thank", "thanks", "yes", "no", "okay",
			"good", "bad", "what", "why", "who", "where", "when", "which", "many",
			"big", "small", "i", "he", "she", "it", "we", "they", "this", "that", "the",
			"a", "an", "and", "or", "but", "because", "if", "then", "for", "with",
			"like", "until", "very", "little", "more", "most", "am", "is", "was",
			"were", "have", "has", "had",
		},
	}
}

// turkishLetters are the characters that only Turkish uses among the
// supported languages (compared after Fold).
const turkishLetters = "çğıöşü"

// wordRE splits text into words. Letters include combining marks so that
// decomposed input stays in one token.
var wordRE = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// Detector guesses the language of a text by counting keyword hits per
// language. Word boundaries are Unicode-aware, so "kötü" or "şu" match as
// whole words.
type Detector struct {
	order    []Code
	keywords map[Code]map[string]struct{}
}

// NewDetector builds a Detector over the default keyword table.
func NewDetector() *Detector {
	return NewDetectorWithKeywords(DefaultKeywords())
}

// NewDetectorWithKeywords builds a Detector over table. Languages missing
// from table never score. The table is copied.
func NewDetectorWithKeywords(table KeywordTable) *Detector {
	d := &Detector{
		order:    Supported(),
		keywords: make(map[Code]map[string]struct{}, len(table)),
	}
	for code, words := range table {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = Fold(strings.TrimSpace(w)); w != "" {
				set[w] = struct{}{}
			}
		}
		d.keywords[code] = set
	}
	return d
}

// Scores returns the per-language score for text: one point per keyword
// occurrence, plus one point per Turkish-only letter for Turkish.
func (d *Detector) Scores(text string) map[Code]int {
	scores := make(map[Code]int, len(d.order))
	for _, c := range d.order {
		scores[c] = 0
	}

	lower := Fold(text)
	for _, w := range wordRE.FindAllString(lower, -1) {
		for _, c := range d.order {
			if _, ok := d.keywords[c][w]; ok {
				scores[c]++
			}
		}
	}
	for _, r := range lower {
		if strings.ContainsRune(turkishLetters, r) {
			scores[Turkish]++
		}
	}
	return scores
}

// Detect returns the best-scoring language for text. Blank text yields
// Default. Ties go to the language listed first in Supported (en, de, tr),
// so text without any evidence is English.
func (d *Detector) Detect(text string) Code {
	if strings.TrimSpace(text) == "" {
		return Default
	}
	scores := d.Scores(text)

	best, bestScore := Default, -1
	for _, c := range d.order {
		if scores[c] > bestScore {
			best, bestScore = c, scores[c]
		}
	}
	return best
}
