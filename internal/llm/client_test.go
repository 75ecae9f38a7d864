package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-chat-relay/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.LLMConfig{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "test-model",
		Timeout: 2 * time.Second,
		Referer: "https://relay.test",
		Title:   "Relay",
	})
}

func body(s string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s)
	}
}

func TestComplete_SendsThreeMessagesAndHeaders(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var referer, title, auth, path string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		body(`{"id":"c1","object":"chat.completion","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"Merhaba!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`)(w, r)
	})

	out, err := c.Complete(context.Background(), Request{System: "sys", Directive: "dir", User: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Content != "Merhaba!" || out.Model != "test-model" || out.FinishReason != "stop" {
		t.Fatalf("unexpected completion: %+v", out)
	}
	if out.PromptTokens != 12 || out.CompletionTokens != 3 {
		t.Fatalf("usage not copied: %+v", out)
	}

	if path != "/chat/completions" {
		t.Fatalf("path = %q", path)
	}
	if referer != "https://relay.test" || title != "Relay" || auth != "Bearer sk-test" {
		t.Fatalf("headers: referer=%q title=%q auth=%q", referer, title, auth)
	}
	if got.Model != "test-model" || len(got.Messages) != 3 {
		t.Fatalf("unexpected request: %+v", got)
	}
	wantRoles := []string{"system", "user", "user"}
	wantContent := []string{"sys", "dir", "hi"}
	for i, m := range got.Messages {
		if m.Role != wantRoles[i] || m.Content != wantContent[i] {
			t.Fatalf("message %d = %+v", i, m)
		}
	}
}

func TestComplete_DegradedPayloads(t *testing.T) {
	cases := map[string]struct {
		body string
		want error
	}{
		"null":          {`null`, ErrNullResponse},
		"empty object":  {`{}`, ErrNullResponse},
		"no choices":    {`{"id":"x"}`, ErrNoChoices},
		"empty choices": {`{"id":"x","choices":[]}`, ErrEmptyChoices},
		"blank content": {`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`, ErrNoContent},
		"invalid json":  {`{not json`, ErrMalformed},
		"wrong type":    {`{"id":"x","choices":"nope"}`, ErrMalformed},
		"empty body":    {``, ErrMalformed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, body(tc.body))
			_, err := c.Complete(context.Background(), Request{User: "hi"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v; want %v", err, tc.want)
			}
			if errors.Is(err, ErrUnavailable) {
				t.Fatalf("degraded payload must not be reported as unavailable: %v", err)
			}
		})
	}
}

func TestComplete_HTTPErrorIsUnavailable(t *testing.T) {
	for _, b := range []string{
		`{"error":{"message":"boom","type":"server_error"}}`,
		`<html>bad gateway</html>`,
	} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, b)
		})
		_, err := c.Complete(context.Background(), Request{User: "hi"})
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("body %q: err = %v; want ErrUnavailable", b, err)
		}
	}
}

func TestComplete_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(config.LLMConfig{BaseURL: url, APIKey: "k", Model: "m", Timeout: time.Second})
	_, err := c.Complete(context.Background(), Request{User: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v; want ErrUnavailable", err)
	}
}

func TestComplete_TimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(config.LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: 50 * time.Millisecond})
	_, err := c.Complete(context.Background(), Request{User: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v; want ErrUnavailable", err)
	}
}

func TestComplete_NotConfigured(t *testing.T) {
	c := New(config.LLMConfig{Model: "m", Timeout: time.Second})
	if c.Configured() {
		t.Fatalf("client without key must report unconfigured")
	}
	if _, err := c.Complete(context.Background(), Request{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v; want ErrNotConfigured", err)
	}
}

func TestComplete_ObservesLatencyByOutcome(t *testing.T) {
	before := testutil.CollectAndCount(llmLat)
	c := newTestClient(t, body(`null`))
	_, _ = c.Complete(context.Background(), Request{User: "hi"})
	if after := testutil.CollectAndCount(llmLat); after < before || after == 0 {
		t.Fatalf("latency histogram not observed: before=%d after=%d", before, after)
	}
}
