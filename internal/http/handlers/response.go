package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/http/middleware"
	"github.com/tbourn/go-chat-relay/internal/services"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	// Matches the X-Request-ID response header and the server logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go).
	Code string `json:"code" example:"not_found"`
	// Safe to show to end users.
	Message string `json:"message" example:"resource not found"`
	// Set only when an answer was produced but could not be stored.
	Reply *services.Reply `json:"reply,omitempty"`
}

// fail aborts with an ErrorResponse. Server-side failures are logged at
// error level; upstream LLM failures (502, 503) only at warn because they
// are not ours to fix.
func fail(c *gin.Context, status int, code, msg string) {
	abort(c, status, ErrorResponse{Code: code, Message: msg})
}

// abort writes body as the error response, filling in the request id.
func abort(c *gin.Context, status int, body ErrorResponse) {
	code, msg := body.Code, body.Message
	rid := middleware.RequestIDFrom(c)
	if rid == "" {
		rid = c.Writer.Header().Get("X-Request-ID")
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error()
		if status == http.StatusBadGateway || status == http.StatusServiceUnavailable {
			ev = lg.Warn()
		}
		ev.Int("status", status).Str("code", code).Str("message", msg).Msg("api error")
	}

	body.RequestID = rid
	c.AbortWithStatusJSON(status, body)
}

// Fail is fail for the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// notModified sets etag on the response and reports whether the request's
// If-None-Match already names it, in which case a bare 304 has been written.
// Comparison is weak: W/"x" matches "x".
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	inm := c.GetHeader("If-None-Match")
	if inm == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(inm, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == want {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	return false
}
