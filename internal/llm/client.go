// Package llm is a thin client for an OpenAI-compatible chat completion API
// (OpenRouter by default).
//
// Each Complete call sends exactly one request with three messages: the
// system prompt, a user-role language directive and the user's text. Calls
// are never retried. Failures are reported through two families of sentinel
// errors so callers can tell them apart with errors.Is:
//
//   - ErrUnavailable: the service could not be reached or answered with a
//     non-2xx status (transport failure, timeout, HTTP error).
//   - ErrNullResponse, ErrNoChoices, ErrEmptyChoices, ErrNoContent,
//     ErrMalformed: a 2xx answer whose payload is unusable.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/go-chat-relay/internal/config"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("llm: api key not configured")

	// ErrUnavailable wraps transport, timeout and HTTP status failures.
	ErrUnavailable = errors.New("llm: service unavailable")

	// ErrNullResponse means the body decoded to nothing (e.g. JSON null).
	ErrNullResponse = errors.New("llm: null response")
	// ErrNoChoices means the choices field was absent.
	ErrNoChoices = errors.New("llm: response has no choices field")
	// ErrEmptyChoices means the choices list was present but empty.
	ErrEmptyChoices = errors.New("llm: response choices are empty")
	// ErrNoContent means the first choice carried blank content.
	ErrNoContent = errors.New("llm: response has no content")
	// ErrMalformed means the body could not be decoded.
	ErrMalformed = errors.New("llm: malformed response")
)

// llmLat records upstream latency by outcome ("ok", "unavailable",
// "degraded").
var llmLat = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "llm_request_duration_seconds",
		Help:    "Duration of upstream LLM chat completion calls in seconds.",
		Buckets: []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60},
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(llmLat)
}

// Request is one chat turn.
type Request struct {
	System    string
	Directive string
	User      string
}

// Completion is the usable part of a successful answer.
type Completion struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Client calls the chat completion endpoint. It is safe for concurrent use.
type Client struct {
	api         *openai.Client
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float32
	configured  bool
}

// New builds a Client from cfg. The HTTP client carries cfg.Timeout and an
// OpenTelemetry transport; attribution headers are added when configured.
func New(cfg config.LLMConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			base:    otelhttp.NewTransport(http.DefaultTransport),
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		configured:  cfg.Configured(),
	}
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool { return c.configured }

// Complete sends req and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ccr := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Directive},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	}
	if c.maxTokens > 0 {
		ccr.MaxTokens = c.maxTokens
	}
	if c.temperature > 0 {
		ccr.Temperature = c.temperature
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, ccr)
	out, err := interpret(resp, err)
	llmLat.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	return out, err
}

// interpret maps a raw go-openai result onto a Completion or one of the
// package sentinels.
func interpret(resp openai.ChatCompletionResponse, err error) (*Completion, error) {
	if err != nil {
		// HTTP status errors may wrap a JSON error from parsing the error
		// body, so they are checked before decode errors.
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if isDecodeError(err) {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.ID == "" && resp.Object == "" && resp.Model == "" && resp.Created == 0 && resp.Choices == nil {
		return nil, ErrNullResponse
	}
	if resp.Choices == nil {
		return nil, ErrNoChoices
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyChoices
	}
	first := resp.Choices[0]
	if strings.TrimSpace(first.Message.Content) == "" {
		return nil, ErrNoContent
	}
	return &Completion{
		Content:          first.Message.Content,
		Model:            resp.Model,
		FinishReason:     string(first.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func isDecodeError(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	if errors.As(err, &syn) || errors.As(err, &typ) {
		return true
	}
	// An empty or truncated 2xx body surfaces as a bare EOF from the decoder;
	// transport failures arrive wrapped in *url.Error instead.
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrNotConfigured):
		return "unavailable"
	default:
		return "degraded"
	}
}

// headerTransport adds OpenRouter attribution headers.
type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.referer == "" && t.title == "" {
		return t.base.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	if t.referer != "" {
		r.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		r.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(r)
}
