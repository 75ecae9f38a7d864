package language

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Normalize ---

func TestNormalize_AliasesAndVariants(t *testing.T) {
	cases := map[string]Code{
		// English
		"en": English, "EN": English, "en-US": English, "en_US": English, "en_GB": English,
		"english": English, "English": English, "Englisch": English,
		"ingilizce": English, "İngilizce": English, "eng": English,
		// German
		"de": German, "de_DE": German, "de-AT": German, "DE-de": German,
		"german": German, "Deutsch": German, "almanca": German, "Almanca": German, "deu": German,
		// Turkish
		"tr": Turkish, "tr_TR": Turkish, "tr-TR": Turkish,
		"turkish": Turkish, "Türkçe": Turkish, "turkce": Turkish, "Türkisch": Turkish, "tur": Turkish,
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestNormalize_UnknownFallsBackToEnglish(t *testing.T) {
	for _, in := range []string{"", "   ", "fr", "fr-FR", "xx-YY", "klingon", "123"} {
		if got := Normalize(in); got != English {
			t.Errorf("Normalize(%q) = %q; want en", in, got)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"en", "de", "tr", "en-US", "Deutsch", "Türkçe", "", "fr", "deu"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(string(once))
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
	for _, c := range Supported() {
		if got := Normalize(string(c)); got != c {
			t.Errorf("Normalize(%q) = %q; canonical code must map to itself", c, got)
		}
	}
}

func TestCode_NameAndValid(t *testing.T) {
	names := map[Code]string{English: "English", German: "German", Turkish: "Turkish"}
	for c, want := range names {
		if !c.Valid() {
			t.Fatalf("%q should be valid", c)
		}
		if got := c.Name(); got != want {
			t.Errorf("%q.Name() = %q; want %q", c, got, want)
		}
	}
	if Code("fr").Valid() {
		t.Fatalf("fr must not be valid")
	}
	if got := Code("fr").Name(); got != "English" {
		t.Fatalf("unsupported code should render default name, got %q", got)
	}
}

// --- Detector ---

func TestDetect_EmptyIsEnglish(t *testing.T) {
	d := NewDetector()
	for _, in := range []string{"", "   ", "\n\t"} {
		if got := d.Detect(in); got != English {
			t.Fatalf("Detect(%q) = %q; want en", in, got)
		}
	}
}

func TestDetect_Languages(t *testing.T) {
	d := NewDetector()
	cases := map[string]Code{
		"Merhaba, nasılsın?":               Turkish,
		"Bugün hava çok güzel":             Turkish,
		"Hello, how are you today?":        English,
		"What is the weather like?":        English,
		"Guten Morgen, wie geht es dir?":   German,
		"Ich habe eine Frage für dich":     German,
		"Danke, das ist sehr gut":          German,
		"thanks, that was very good":       English,
		"Teşekkür ederim, çok iyi":         Turkish,
		"kötü":                             Turkish,
		"şu":                               Turkish,
		"zzz qqq":                          English, // no evidence: tie at zero
		"okay":                             English, // en/de tie broken by order
		"ja":                               German,
	}
	for in, want := range cases {
		if got := d.Detect(in); got != want {
			t.Errorf("Detect(%q) = %q; want %q (scores %v)", in, got, want, d.Scores(in))
		}
	}
}

func TestDetect_TurkishDiacriticsScore(t *testing.T) {
	d := NewDetector()
	s := d.Scores("Merhaba, nasılsın?")
	// two keywords + two dotless i
	if s[Turkish] != 4 {
		t.Fatalf("tr score = %d; want 4", s[Turkish])
	}
	if s[English] != 0 || s[German] != 0 {
		t.Fatalf("unexpected scores: %v", s)
	}

	// Uppercase diacritics count after folding.
	if got := d.Scores("ÇĞÖŞÜ")[Turkish]; got != 5 {
		t.Fatalf("uppercase diacritics = %d; want 5", got)
	}
}

func TestDetect_WholeWordsOnly(t *testing.T) {
	d := NewDetector()
	// "nasılsın" contains "ın" as a suffix; it must not count as a separate word.
	s := d.Scores("nasılsın")
	if s[Turkish] != 1+2 {
		t.Fatalf("tr score = %d; want 3 (one keyword + two diacritics)", s[Turkish])
	}
	// "this" contains "hi" but is only one English keyword.
	if got := d.Scores("this")[English]; got != 1 {
		t.Fatalf("en score for 'this' = %d; want 1", got)
	}
}

func TestNewDetectorWithKeywords_CustomTable(t *testing.T) {
	d := NewDetectorWithKeywords(KeywordTable{German: {" Servus "}})
	if got := d.Detect("servus"); got != German {
		t.Fatalf("custom table Detect = %q; want de", got)
	}
	if got := d.Detect("hello"); got != English {
		t.Fatalf("unknown words should fall back to en, got %q", got)
	}
}

// --- Resolver ---

func TestResolve_ForcedWins(t *testing.T) {
	r := NewResolver()
	pref := Preference{Preferred: English, Force: true, Forced: German}
	for _, msg := range []string{"", "Please respond in Turkish", "Merhaba", "language: en"} {
		got := r.Resolve(msg, pref)
		if got.Language != German || got.Source != SourceForced {
			t.Fatalf("Resolve(%q) = %+v; want de/forced", msg, got)
		}
	}
}

func TestResolve_ForcedNormalizesStoredValue(t *testing.T) {
	r := NewResolver()
	got := r.Resolve("hi", Preference{Force: true, Forced: Code("Türkçe")})
	if got.Language != Turkish || got.Source != SourceForced {
		t.Fatalf("got %+v; want tr/forced", got)
	}
}

func TestResolve_ForceWithoutLanguageFallsThrough(t *testing.T) {
	r := NewResolver()
	got := r.Resolve("Please respond in German", Preference{Preferred: Turkish, Force: true})
	if got.Language != German || got.Source != SourceExplicit {
		t.Fatalf("got %+v; want de/explicit", got)
	}
	got = r.Resolve("hello", Preference{Preferred: Turkish, Force: true, Forced: "  "})
	if got.Language != Turkish || got.Source != SourcePreference {
		t.Fatalf("got %+v; want tr/preference", got)
	}
}

func TestResolve_ForcedIgnoredWhenForceOff(t *testing.T) {
	r := NewResolver()
	got := r.Resolve("hello", Preference{Preferred: English, Force: false, Forced: German})
	if got.Language != English || got.Source != SourcePreference {
		t.Fatalf("got %+v; want en/preference", got)
	}
}

func TestResolve_ExplicitPatterns(t *testing.T) {
	r := NewResolver()
	pref := Preference{Preferred: English}
	cases := map[string]Code{
		"Please respond in German":               German,
		"Could you REPLY IN TURKISH?":             Turkish,
		"answer in english please":               English,
		"language: tr":                           Turkish,
		"Language:de what is this":               German,
		"Bunu Almanca cevapla":                   German,
		"Lütfen İngilizce yanıtla":               English,
		"Cevap Türkçe olsun":                     Turkish,
		"Antworte bitte auf Deutsch":             German,
		"Kannst du auf Englisch bitte antworten": English,
		"Bitte türkisch":                         Turkish,
		"ALMANCA YANITLA":                        German,
		"YANIT İNGİLİZCE OLSUN":                  English,
		"almanca yanitla lutfen":                 German,
	}
	for msg, want := range cases {
		got := r.Resolve(msg, pref)
		if got.Language != want || got.Source != SourceExplicit {
			t.Errorf("Resolve(%q) = %+v; want %q/explicit", msg, got, want)
		}
	}
}

func TestResolve_ExplicitUsesMatchedPhrase(t *testing.T) {
	r := NewResolver()
	// The requested language is the one in the phrase, not the first language
	// name in the message.
	got := r.Resolve("I speak turkish, but respond in german", Preference{})
	if got.Language != German {
		t.Fatalf("got %+v; want de", got)
	}
}

func TestResolve_PreferenceBeatsDetection(t *testing.T) {
	r := NewResolver()
	got := r.Resolve("Merhaba, nasılsın?", Preference{Preferred: English})
	if got.Language != English || got.Source != SourcePreference {
		t.Fatalf("got %+v; want en/preference", got)
	}
}

func TestResolve_UnsetPreferenceIsEnglish(t *testing.T) {
	r := NewResolver()
	got := r.Resolve("hello", Preference{})
	if got.Language != English || got.Source != SourcePreference {
		t.Fatalf("got %+v; want en/preference", got)
	}
	got = r.Resolve("hello", Preference{Preferred: "de_DE"})
	if got.Language != German {
		t.Fatalf("regional preference not normalized: %+v", got)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := NewResolver()
	pref := Preference{Preferred: Turkish}
	first := r.Resolve("respond in english", pref)
	for i := 0; i < 50; i++ {
		if got := r.Resolve("respond in english", pref); got != first {
			t.Fatalf("iteration %d: %+v != %+v", i, got, first)
		}
	}
}

func TestNewResolverWithPatterns_BadPattern(t *testing.T) {
	if _, err := NewResolverWithPatterns([]string{"("}); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestExplicit_None(t *testing.T) {
	r := NewResolver()
	if c, ok := r.Explicit("just a normal question"); ok {
		t.Fatalf("unexpected explicit override %q", c)
	}
	if _, ok := r.Explicit(""); ok {
		t.Fatalf("blank message must not match")
	}
}
