package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tbourn/go-chat-relay/internal/category"
	"github.com/tbourn/go-chat-relay/internal/language"
	"github.com/tbourn/go-chat-relay/internal/prompt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	t.Setenv("APP_VERSION", "")
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "dev" {
		t.Fatalf("got %q, want dev", out)
	}

	t.Setenv("APP_VERSION", "1.4.0")
	out, _ = execute(t, "version")
	if strings.TrimSpace(out) != "1.4.0" {
		t.Fatalf("got %q, want 1.4.0", out)
	}

	old := version
	version = "2.0.0"
	t.Cleanup(func() { version = old })
	out, _ = execute(t, "version")
	if strings.TrimSpace(out) != "2.0.0" {
		t.Fatalf("linker version should win, got %q", out)
	}
}

func TestResolve(t *testing.T) {
	tests := map[string]struct {
		args     []string
		detected string
		reply    string
		category string
		rule     string
	}{
		"explicit request": {
			args:     []string{"resolve", "Wie geht es dir? Antworte bitte auf Deutsch"},
			detected: "detected:  de",
			reply:    "reply:     de (explicit)",
			rule:     prompt.StrictRule(language.German),
		},
		"preference": {
			args:     []string{"resolve", "--preferred", "turkish", "hello there"},
			detected: "detected:  en",
			reply:    "reply:     tr (preference)",
			rule:     prompt.StrictRule(language.Turkish),
		},
		"forced beats explicit": {
			args:     []string{"resolve", "--force", "--forced", "en", "bitte auf Deutsch"},
			reply:    "reply:     en (forced)",
			rule:     prompt.StrictRule(language.English),
		},
		"words are joined": {
			args:     []string{"resolve", "what", "is", "the", "weather", "today"},
			reply:    "reply:     en (preference)",
			category: "category:  " + category.Weather,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, tc.args...)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			for _, want := range []string{tc.detected, tc.reply, tc.category, tc.rule} {
				if want != "" && !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			if !strings.Contains(out, "[system]") || !strings.Contains(out, "[directive]") {
				t.Errorf("prompts not printed:\n%s", out)
			}
		})
	}
}

func TestResolve_RequiresMessage(t *testing.T) {
	if _, err := execute(t, "resolve"); err == nil {
		t.Fatal("expected an error without a message")
	}
}

func TestResolve_TraitsInPrompt(t *testing.T) {
	out, err := execute(t, "resolve", "--nickname", "Ada", "--trait", "curious", "--trait", "direct", "hi")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, want := range []string{"Ada", "curious", "direct"} {
		if !strings.Contains(out, want) {
			t.Errorf("system prompt missing %q:\n%s", want, out)
		}
	}
}

func TestMigrate_CreatesSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", path)
	t.Setenv("LOG_LEVEL", "error")

	if _, err := execute(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("database not created: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CHATRELAY_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATRELAY_TEST_VALUE", "")
	os.Unsetenv("CHATRELAY_TEST_VALUE")
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("CHATRELAY_TEST_VALUE"); got != "from-file" {
		t.Fatalf("got %q", got)
	}
}
