// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package) and writeServiceError, which turns
// service errors into those responses. Codes give clients a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., upstream_unavailable, degraded_response) are
//     reserved for failures that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "degraded_response",
//	  "message": "The AI service returned an answer with no text. Please try rephrasing your message."
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeValidation        = "validation_error"
	ErrCodeUpstream          = "upstream_unavailable"
	ErrCodeDegraded          = "degraded_response"
	ErrCodePersistenceFailed = "persistence_failed"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)

// writeServiceError maps an error returned by a service to a response.
// Validation is checked first so that ErrUnknownUser (which also matches
// ErrUserNotFound) is reported as a bad request on chat.
func writeServiceError(c *gin.Context, err error) {
	var (
		degraded *services.DegradedResponseError
		external *services.ExternalServiceError
		persist  *services.PersistenceError
	)
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, services.ErrExchangeNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "exchange not found")
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrInvalidFeedback):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrForbiddenFeedback):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrDuplicateFeedback):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.As(err, &degraded):
		fail(c, http.StatusBadGateway, ErrCodeDegraded, degraded.UserMessage())
	case errors.As(err, &external):
		fail(c, http.StatusServiceUnavailable, ErrCodeUpstream, external.UserMessage())
	case errors.As(err, &persist):
		abort(c, http.StatusInternalServerError, ErrorResponse{
			Code:    ErrCodePersistenceFailed,
			Message: persist.UserMessage(),
			Reply:   persist.Reply,
		})
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
