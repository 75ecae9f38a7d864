// Package services – ChatService
//
// This file implements the ChatService, which relays one user message to the
// LLM and back. A call moves through these steps, stopping at the first
// failure:
//
//  1. validate the message and the sender;
//  2. load (or create) the sender's profile, detect the message language and
//     resolve the reply language (forced > explicit request > preference);
//  3. record the detected language as the user's native language the first
//     time one is seen;
//  4. compose the system prompt and the language directive;
//  5. send a single completion request (never retried);
//  6. truncate the answer and classify the question;
//  7. persist the exchange.
//
// Collaborators are narrow interfaces so the pipeline can be exercised with
// fakes. The service itself holds no mutable state and is safe for concurrent
// use.
//
// Observability: every call is traced ("services/ChatService"), language
// resolutions, question categories and failures are counted in Prometheus,
// and decisions are logged through the request-scoped zerolog logger.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-relay/internal/category"
	"github.com/tbourn/go-chat-relay/internal/config"
	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/language"
	"github.com/tbourn/go-chat-relay/internal/llm"
	"github.com/tbourn/go-chat-relay/internal/prompt"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMaxMessageRunes caps incoming messages when no limit is set.
	DefaultMaxMessageRunes = 4000
	// DefaultMaxReplyRunes caps stored and returned replies when no limit is set.
	DefaultMaxReplyRunes = 2000

	truncationMarker = "..."
)

// Failure kinds reported on chat_failures_total.
const (
	failValidation  = "validation"
	failExternal    = "external"
	failDegraded    = "degraded"
	failPersistence = "persistence"
	failInternal    = "internal"
)

var (
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_language_resolutions_total",
			Help: "Reply language resolutions by language and source.",
		},
		[]string{"language", "source"},
	)
	failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_failures_total",
			Help: "Failed chat requests by kind.",
		},
		[]string{"kind"},
	)
	categories = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_categories_total",
			Help: "Answered chat messages by question category.",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(resolutions, failures, categories)
}

// UserDirectory answers whether a user id is registered.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// ProfileStore loads profiles and records the native language.
type ProfileStore interface {
	// GetOrCreate returns the user's profile, creating the default one if
	// none exists yet.
	GetOrCreate(ctx context.Context, userID string) (*domain.UserProfile, error)

	// RecordNativeLanguage stores code unless a native language is already
	// set. It reports whether the value was written.
	RecordNativeLanguage(ctx context.Context, userID string, code language.Code) (bool, error)
}

// ExchangeStore persists completed exchanges.
type ExchangeStore interface {
	SaveExchange(ctx context.Context, ex *domain.ChatExchange) error
}

// Completer sends one completion request to the LLM.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Completion, error)
}

// Reply is the outcome of a successful Ask.
//
// ExchangeID is empty when the exchange could not be stored and strict
// persistence is off.
type Reply struct {
	ExchangeID string          `json:"exchange_id,omitempty"`
	Text       string          `json:"response"`
	Language   language.Code   `json:"language"`
	Source     language.Source `json:"language_source"`
	Category   string          `json:"category"`
	Truncated  bool            `json:"truncated"`
	Model      string          `json:"model,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ReplyFromExchange rebuilds a Reply from a stored exchange.
func ReplyFromExchange(ex *domain.ChatExchange) *Reply {
	return &Reply{
		ExchangeID: ex.ID,
		Text:       ex.BotResponse,
		Language:   language.Code(ex.ResolvedLanguage),
		Source:     language.Source(ex.LanguageSource),
		Category:   ex.QuestionCategory,
		Truncated:  ex.Truncated,
		Timestamp:  ex.Timestamp,
	}
}

// ChatService orchestrates the chat pipeline.
type ChatService struct {
	Users    UserDirectory
	Profiles ProfileStore
	History  ExchangeStore
	LLM      Completer

	Detector   *language.Detector
	Resolver   *language.Resolver
	Composer   *prompt.Composer
	Classifier *category.Classifier

	// MaxMessageRunes rejects longer messages with ErrMessageTooLong.
	MaxMessageRunes int
	// MaxReplyRunes bounds the reply, including the truncation marker.
	MaxReplyRunes int
	// StrictPersistence makes a failed insert fail the request with a
	// *PersistenceError. When false the reply is returned without an id.
	StrictPersistence bool

	// Now returns the exchange timestamp. Defaults to time.Now in UTC.
	Now func() time.Time
}

// NewChatService wires a ChatService with the built-in detector, resolver,
// composer and classifier and the limits from cfg.
func NewChatService(users UserDirectory, profiles ProfileStore, history ExchangeStore, c Completer, cfg config.ChatConfig) *ChatService {
	s := &ChatService{
		Users:             users,
		Profiles:          profiles,
		History:           history,
		LLM:               c,
		Detector:          language.NewDetector(),
		Resolver:          language.NewResolver(),
		Composer:          prompt.NewComposer(),
		Classifier:        category.Default(),
		MaxMessageRunes:   cfg.MaxMessageRunes,
		MaxReplyRunes:     cfg.MaxReplyRunes,
		StrictPersistence: cfg.StrictPersistence,
	}
	if s.MaxMessageRunes <= 0 {
		s.MaxMessageRunes = DefaultMaxMessageRunes
	}
	if s.MaxReplyRunes <= 0 {
		s.MaxReplyRunes = DefaultMaxReplyRunes
	}
	return s
}

// Ask relays message from userID to the LLM and returns the processed reply.
//
// Errors:
//   - ErrEmptyMessage, ErrMessageTooLong, ErrMissingUser, ErrUnknownUser
//     (all match ErrValidation); nothing is written.
//   - *ExternalServiceError when the LLM is unreachable, times out or returns
//     an HTTP error.
//   - *DegradedResponseError when the LLM answered with an unusable payload.
//   - *PersistenceError (strict persistence only) carrying the reply that
//     could not be stored.
//   - Store errors from profile loading are returned unchanged.
func (s *ChatService) Ask(ctx context.Context, userID, message string) (*Reply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Ask",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	reply, kind, err := s.ask(ctx, span, userID, message)
	if err != nil {
		failures.WithLabelValues(kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		logFor(ctx).Warn().Err(err).Str("user_id", userID).Str("kind", kind).Msg("chat request failed")
		return reply, err
	}
	return reply, nil
}

func (s *ChatService) ask(ctx context.Context, span trace.Span, userID, message string) (*Reply, string, error) {
	// Validating
	userID = strings.TrimSpace(userID)
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, failValidation, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > s.maxMessage() {
		return nil, failValidation, ErrMessageTooLong
	}
	if userID == "" {
		return nil, failValidation, ErrMissingUser
	}
	ok, err := s.Users.Exists(ctx, userID)
	if err != nil {
		return nil, failInternal, err
	}
	if !ok {
		return nil, failValidation, ErrUnknownUser
	}

	// Resolving
	profile, err := s.Profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, failInternal, err
	}
	detected := s.Detector.Detect(message)
	res := s.Resolver.Resolve(message, profile.Preference())

	resolutions.WithLabelValues(string(res.Language), string(res.Source)).Inc()
	span.SetAttributes(
		attribute.String("language.detected", string(detected)),
		attribute.String("language.resolved", string(res.Language)),
		attribute.String("language.source", string(res.Source)),
	)
	logFor(ctx).Debug().
		Str("user_id", userID).
		Str("detected", string(detected)).
		Str("language", string(res.Language)).
		Str("source", string(res.Source)).
		Msg("reply language resolved")

	if profile.NativeLanguage == "" {
		written, err := s.Profiles.RecordNativeLanguage(ctx, userID, detected)
		if err != nil {
			// Not fatal: the next message will try again.
			logFor(ctx).Warn().Err(err).Str("user_id", userID).Msg("record native language")
		} else if written {
			logFor(ctx).Info().Str("user_id", userID).Str("native_language", string(detected)).Msg("native language recorded")
		}
	}

	// Composing
	system, directive := s.Composer.Compose(res.Language, profilePrompt(profile))

	// Calling
	completion, err := s.LLM.Complete(ctx, llm.Request{
		System:    system,
		Directive: directive,
		User:      message,
	})
	if err != nil {
		kind, cerr := classifyLLMError(err)
		return nil, kind, cerr
	}

	// PostProcessing
	text, truncated := Truncate(completion.Content, s.maxReply())
	tag := s.Classifier.Classify(message)
	categories.WithLabelValues(tag).Inc()
	span.SetAttributes(
		attribute.String("chat.category", tag),
		attribute.Bool("chat.truncated", truncated),
	)

	reply := &Reply{
		Text:      text,
		Language:  res.Language,
		Source:    res.Source,
		Category:  tag,
		Truncated: truncated,
		Model:     completion.Model,
		Timestamp: s.now(),
	}

	// Persisting
	ex := &domain.ChatExchange{
		ID:               uuid.NewString(),
		UserID:           userID,
		UserMessage:      message,
		BotResponse:      text,
		QuestionCategory: tag,
		ResolvedLanguage: string(res.Language),
		LanguageSource:   string(res.Source),
		Truncated:        truncated,
		Timestamp:        reply.Timestamp,
	}
	if err := s.History.SaveExchange(ctx, ex); err != nil {
		if s.StrictPersistence {
			return reply, failPersistence, &PersistenceError{Reply: reply, Err: err}
		}
		failures.WithLabelValues(failPersistence).Inc()
		logFor(ctx).Error().Err(err).Str("user_id", userID).Msg("exchange not persisted; returning reply")
		return reply, "", nil
	}
	reply.ExchangeID = ex.ID
	span.SetAttributes(attribute.String("exchange.id", ex.ID))
	return reply, "", nil
}

// Truncate bounds s to max runes. Longer text keeps its first max-3 runes
// followed by "...". It reports whether s was cut.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	keep := max - utf8.RuneCountInString(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	return string([]rune(s)[:keep]) + truncationMarker, true
}

// classifyLLMError maps llm errors onto the service taxonomy and the
// failure kind used for metrics.
func classifyLLMError(err error) (string, error) {
	reasons := []struct {
		sentinel error
		reason   DegradeReason
	}{
		{llm.ErrNullResponse, ReasonNullResponse},
		{llm.ErrNoChoices, ReasonNoChoices},
		{llm.ErrEmptyChoices, ReasonEmptyChoices},
		{llm.ErrNoContent, ReasonNoContent},
		{llm.ErrMalformed, ReasonMalformed},
	}
	for _, r := range reasons {
		if errors.Is(err, r.sentinel) {
			return failDegraded, &DegradedResponseError{Reason: r.reason, Err: err}
		}
	}
	return failExternal, &ExternalServiceError{Err: err}
}

func profilePrompt(p *domain.UserProfile) prompt.Profile {
	return prompt.Profile{
		Nickname:       p.Nickname,
		Occupation:     p.Occupation,
		AdditionalInfo: p.AdditionalInfo,
		Personality:    p.Personality,
		Traits:         p.Traits,
	}
}

func (s *ChatService) maxMessage() int {
	if s.MaxMessageRunes > 0 {
		return s.MaxMessageRunes
	}
	return DefaultMaxMessageRunes
}

func (s *ChatService) maxReply() int {
	if s.MaxReplyRunes > 0 {
		return s.MaxReplyRunes
	}
	return DefaultMaxReplyRunes
}

func (s *ChatService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// logFor returns the logger attached to ctx, or the global logger when the
// context carries none.
func logFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
