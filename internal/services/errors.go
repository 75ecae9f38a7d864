// Package services defines the business logic for chat relaying, users,
// profiles, history and feedback. This file centralizes service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer; the typed errors below carry a UserMessage for that
// purpose.
package services

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every input validation failure. Match with
// errors.Is(err, ErrValidation).
var ErrValidation = errors.New("validation failed")

// Validation errors.
var (
	// ErrEmptyMessage is returned when a chat message is blank after trimming.
	ErrEmptyMessage = fmt.Errorf("%w: message is empty", ErrValidation)

	// ErrMessageTooLong is returned when a chat message exceeds the configured
	// rune limit.
	ErrMessageTooLong = fmt.Errorf("%w: message too long", ErrValidation)

	// ErrMissingUser is returned when no user id accompanies a request.
	ErrMissingUser = fmt.Errorf("%w: user id is required", ErrValidation)

	// ErrInvalidEmail is returned when an email lacks an "@".
	ErrInvalidEmail = fmt.Errorf("%w: email is invalid", ErrValidation)

	// ErrPasswordTooShort is returned for passwords under the minimum length.
	ErrPasswordTooShort = fmt.Errorf("%w: password too short", ErrValidation)

	// ErrNameRequired is returned when first or last name is blank.
	ErrNameRequired = fmt.Errorf("%w: first and last name are required", ErrValidation)
)

// User and profile errors.
var (
	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnknownUser is the validation form of ErrUserNotFound, returned by
	// chat when the sender is not registered. It matches both sentinels.
	ErrUnknownUser = fmt.Errorf("%w: %w", ErrValidation, ErrUserNotFound)

	// ErrEmailTaken is returned when registering an email that is in use.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// History and feedback errors.
var (
	// ErrExchangeNotFound indicates that the requested exchange does not exist.
	ErrExchangeNotFound = errors.New("exchange not found")

	// ErrInvalidFeedback is returned when a feedback value is outside the
	// allowed set (-1 or 1).
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")

	// ErrForbiddenFeedback is returned when a user rates an exchange they do
	// not own.
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this exchange")

	// ErrDuplicateFeedback is returned when a user rates the same exchange
	// twice.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)

// ExternalServiceError reports that the LLM could not be reached or answered
// with an HTTP error. It is not retried.
type ExternalServiceError struct {
	Err error
}

func (e *ExternalServiceError) Error() string {
	return "external service: " + e.Err.Error()
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// UserMessage is safe to show to end users.
func (e *ExternalServiceError) UserMessage() string {
	return "The AI service is temporarily unavailable. Please try again later."
}

// DegradeReason names why a successful LLM answer was unusable.
type DegradeReason string

// Degrade reasons.
const (
	ReasonNullResponse DegradeReason = "null_response"
	ReasonNoChoices    DegradeReason = "no_choices"
	ReasonEmptyChoices DegradeReason = "empty_choices"
	ReasonNoContent    DegradeReason = "no_content"
	ReasonMalformed    DegradeReason = "malformed"
)

var degradeMessages = map[DegradeReason]string{
	ReasonNullResponse: "The AI service returned an empty response. Please try again.",
	ReasonNoChoices:    "The AI service returned a response without any answers. Please try again.",
	ReasonEmptyChoices: "The AI service returned an empty list of answers. Please try again.",
	ReasonNoContent:    "The AI service returned an answer with no text. Please try rephrasing your message.",
	ReasonMalformed:    "The AI service returned a response that could not be read. Please try again.",
}

// DegradedResponseError reports a 2xx LLM answer whose payload was unusable.
type DegradedResponseError struct {
	Reason DegradeReason
	Err    error
}

func (e *DegradedResponseError) Error() string {
	if e.Err == nil {
		return "degraded llm response: " + string(e.Reason)
	}
	return "degraded llm response: " + string(e.Reason) + ": " + e.Err.Error()
}

func (e *DegradedResponseError) Unwrap() error { return e.Err }

// UserMessage is safe to show to end users; each reason has its own text.
func (e *DegradedResponseError) UserMessage() string {
	if m, ok := degradeMessages[e.Reason]; ok {
		return m
	}
	return degradeMessages[ReasonMalformed]
}

// PersistenceError reports that an exchange could not be stored. Reply holds
// the answer that was computed before the failure.
type PersistenceError struct {
	Reply *Reply
	Err   error
}

func (e *PersistenceError) Error() string {
	return "persist exchange: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UserMessage is safe to show to end users.
func (e *PersistenceError) UserMessage() string {
	return "Your answer was generated but could not be saved to your history."
}
