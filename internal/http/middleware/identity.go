// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves who is calling. Authenticate verifies an optional
// "Authorization: Bearer <jwt>" header; Identity then picks the request's
// user id from, in order:
//
//  1. the verified JWT subject,
//  2. the X-User-ID header,
//  3. the userId query parameter.
//
// The header and query fallbacks keep simple clients and tests working when
// no JWT secret is configured. Handlers read the result with UserID and can
// tell a verified identity apart with AuthenticatedUserID.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries an unauthenticated user id.
const HeaderUserID = "X-User-ID"

const (
	ctxKeyUserID   = "userID"
	ctxKeyAuthUser = "auth.userID"
)

// TokenParser verifies bearer tokens and returns their subject.
// *auth.Issuer satisfies it.
type TokenParser interface {
	Enabled() bool
	Parse(token string) (string, error)
}

// Authenticate verifies a Bearer token when one is sent. A request without
// an Authorization header passes through untouched; a malformed or invalid
// token is rejected with 401. When tokens are disabled the header is ignored.
func Authenticate(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil || !tokens.Enabled() {
			c.Next()
			return
		}
		h := strings.TrimSpace(c.GetHeader("Authorization"))
		if h == "" {
			c.Next()
			return
		}
		scheme, tok, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
			abortUnauthorized(c, "authorization header must be a bearer token")
			return
		}
		sub, err := tokens.Parse(strings.TrimSpace(tok))
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ctxKeyAuthUser, sub)
		c.Set(ctxKeyUserID, sub)
		c.Next()
	}
}

// Identity stores the caller's user id under "userID" unless Authenticate
// already did, and tags the request-scoped logger with it.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := AuthenticatedUserID(c); !ok {
			if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
				c.Set(ctxKeyUserID, id)
			} else if id := strings.TrimSpace(c.Query("userId")); id != "" {
				c.Set(ctxKeyUserID, id)
			}
		}
		withUser(c, UserID(c))
		c.Next()
	}
}

// UserID returns the caller's user id, or "" when none was supplied.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AuthenticatedUserID returns the verified JWT subject, if any.
func AuthenticatedUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyAuthUser)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
