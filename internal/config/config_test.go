package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "6s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"
	t.Setenv("GZIP_ENABLED", "off")

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("LOG_REDACT", "no")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// App
	t.Setenv("APP_VERSION", "1.2.3")
	t.Setenv("DB_DRIVER", "PostgreSQL")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/chat")

	// LLM
	t.Setenv("LLM_BASE_URL", "http://llm.local/v1/")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "m1")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("LLM_MAX_TOKENS", "256")
	t.Setenv("LLM_TEMPERATURE", "0.5")
	t.Setenv("LLM_REFERER", "https://example.com")
	t.Setenv("LLM_TITLE", "Relay")

	// Chat
	t.Setenv("CHAT_MAX_MESSAGE_RUNES", "100")
	t.Setenv("CHAT_MAX_REPLY_RUNES", "50")
	t.Setenv("CHAT_STRICT_PERSISTENCE", "false")
	t.Setenv("CHAT_RATE_LIMIT", "3")
	t.Setenv("CHAT_RATE_WINDOW", "30s")

	// Redis / Auth
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "1h")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// Idempotency
	t.Setenv("IDEMPOTENCY_TTL", "48h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 6*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" ||
		cfg.GzipEnabled {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging / Docs
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.LogRedact || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	// App
	if cfg.AppVersion != "1.2.3" || cfg.DB.Driver != "postgres" || cfg.DB.URL != "postgres://u:p@db:5432/chat" {
		t.Fatalf("app fields unexpected: %+v", cfg)
	}

	// LLM
	wantLLM := LLMConfig{
		BaseURL:     "http://llm.local/v1",
		APIKey:      "sk-test",
		Model:       "m1",
		Timeout:     5 * time.Second,
		MaxTokens:   256,
		Temperature: 0.5,
		Referer:     "https://example.com",
		Title:       "Relay",
	}
	if cfg.LLM != wantLLM || !cfg.LLM.Configured() {
		t.Fatalf("llm unexpected: %+v", cfg.LLM)
	}

	// Chat
	wantChat := ChatConfig{MaxMessageRunes: 100, MaxReplyRunes: 50, StrictPersistence: false, RateLimit: 3, RateWindow: 30 * time.Second}
	if cfg.Chat != wantChat {
		t.Fatalf("chat unexpected: %+v", cfg.Chat)
	}

	// Redis / Auth
	if !cfg.Redis.Enabled() || cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("redis unexpected: %+v", cfg.Redis)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Auth.JWTTTL != time.Hour || cfg.Auth.Issuer != "go-chat-relay" {
		t.Fatalf("auth unexpected: %+v", cfg.Auth)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// Idempotency
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want string
	}{
		"log level":            {map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		"blank port":           {map[string]string{"PORT": "   "}, "PORT must not be empty"},
		"zero read timeout":    {map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		"header bytes":         {map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		"blank db path":        {map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		"unknown driver":       {map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		"postgres without url": {map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		"llm timeout":          {map[string]string{"LLM_TIMEOUT": "0s"}, "LLM_TIMEOUT must be > 0"},
		"write before llm":     {map[string]string{"WRITE_TIMEOUT": "30s"}, "WRITE_TIMEOUT must exceed LLM_TIMEOUT"},
		"max tokens":           {map[string]string{"LLM_MAX_TOKENS": "-1"}, "LLM_MAX_TOKENS"},
		"temperature":          {map[string]string{"LLM_TEMPERATURE": "3"}, "LLM_TEMPERATURE"},
		"blank model":          {map[string]string{"LLM_MODEL": "  "}, "LLM_MODEL"},
		"message runes":        {map[string]string{"CHAT_MAX_MESSAGE_RUNES": "0"}, "CHAT_MAX_MESSAGE_RUNES"},
		"reply runes":          {map[string]string{"CHAT_MAX_REPLY_RUNES": "3"}, "CHAT_MAX_REPLY_RUNES"},
		"chat quota":           {map[string]string{"CHAT_RATE_LIMIT": "-2"}, "CHAT_RATE_LIMIT"},
		"chat window":          {map[string]string{"CHAT_RATE_WINDOW": "0s"}, "CHAT_RATE_WINDOW"},
		"redis db":             {map[string]string{"REDIS_DB": "-1"}, "REDIS_DB"},
		"jwt ttl":              {map[string]string{"JWT_TTL": "-1h"}, "JWT_TTL"},
		"negative rps":         {map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		"zero burst":           {map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		"hsts max age":         {map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		"idempotency ttl":      {map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		"sample ratio":         {map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	t.Setenv("PORT", " ")
	t.Setenv("RATE_BURST", "0")
	t.Setenv("LLM_TEMPERATURE", "9")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded, want errors")
	}
	for _, want := range []string{"PORT", "RATE_BURST", "LLM_TEMPERATURE"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if got := strings.Count(err.Error(), "\n") + 1; got != 3 {
		t.Errorf("got %d problems, want 3:\n%v", got, err)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CFG_STR", "val")
	t.Setenv("CFG_EMPTY", "")
	t.Setenv("CFG_FLOAT", "3.14")
	t.Setenv("CFG_INT", "42")
	t.Setenv("CFG_DUR", "150ms")
	t.Setenv("CFG_BAD", "zzz")

	if got := getenv("CFG_STR", "d"); got != "val" {
		t.Errorf("getenv set = %q", got)
	}
	if got := getenv("CFG_EMPTY", "d"); got != "d" {
		t.Errorf("getenv empty = %q, want default", got)
	}
	if got := getfloat("CFG_FLOAT", 0); got != 3.14 {
		t.Errorf("getfloat = %v", got)
	}
	if got := getfloat("CFG_BAD", 1.5); got != 1.5 {
		t.Errorf("getfloat bad = %v, want default", got)
	}
	if got := getint("CFG_INT", 0); got != 42 {
		t.Errorf("getint = %v", got)
	}
	if got := getint("CFG_BAD", 7); got != 7 {
		t.Errorf("getint bad = %v, want default", got)
	}
	if got := getdur("CFG_DUR", time.Second); got != 150*time.Millisecond {
		t.Errorf("getdur = %v", got)
	}
	if got := getdur("CFG_BAD", 2*time.Second); got != 2*time.Second {
		t.Errorf("getdur bad = %v, want default", got)
	}
}

func TestGetbool(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "TRUE": true, " yes ": true, "Y": true, "on": true,
		"0": false, "false": false, "FALSE": false, " no ": false, "N": false, "off": false,
	}
	for raw, want := range cases {
		t.Setenv("CFG_BOOL", raw)
		if got := getbool("CFG_BOOL", !want); got != want {
			t.Errorf("getbool(%q) = %v, want %v", raw, got, want)
		}
	}
	t.Setenv("CFG_BOOL", "")
	if !getbool("CFG_BOOL", true) || getbool("CFG_BOOL", false) {
		t.Error("getbool should return the default for an empty value")
	}
}

func TestSplitCSV(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV(\"\") = %#v, want nil", out)
	}
	want := []string{"a", "b", "c"}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV = %#v, want %#v", got, want)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":       "/",
		" / ":    "/",
		"v1":     "/v1",
		"/v1/":   "/v1",
		"api/v2": "/api/v2",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.WriteTimeout <= cfg.LLM.Timeout {
		t.Fatalf("server defaults unexpected: %+v", cfg)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "app.db" {
		t.Fatalf("db defaults unexpected: %+v", cfg.DB)
	}
	if cfg.LLM.BaseURL != "https://openrouter.ai/api/v1" || cfg.LLM.Timeout != 30*time.Second || cfg.LLM.Configured() {
		t.Fatalf("llm defaults unexpected: %+v", cfg.LLM)
	}
	wantChat := ChatConfig{MaxMessageRunes: 4000, MaxReplyRunes: 2000, StrictPersistence: true, RateLimit: 10, RateWindow: time.Minute}
	if cfg.Chat != wantChat {
		t.Fatalf("chat defaults unexpected: %+v", cfg.Chat)
	}
	if cfg.Redis.Enabled() || !cfg.LogRedact || !cfg.GzipEnabled {
		t.Fatalf("toggle defaults unexpected: %+v", cfg)
	}
}

func TestMustLoad_Defaults(t *testing.T) {
	if cfg := MustLoad(); cfg.AppName != "go-chat-relay" {
		t.Fatalf("AppName = %q", cfg.AppName)
	}
}

// Tests must not inherit deployment settings from the shell.
func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_PATH", "DATABASE_URL", "LLM_API_KEY", "LLM_TIMEOUT", "WRITE_TIMEOUT", "REDIS_ADDR", "JWT_SECRET"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}
