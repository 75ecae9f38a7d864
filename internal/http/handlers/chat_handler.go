// Chat HTTP handlers.
//
// This file exposes the chat endpoints:
//   - POST /chat          (send a message, get the relayed reply)
//   - GET  /chat/history  (list the caller's exchanges, paginated, ETag support)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// exchange exists for (user, route, key), the handler returns that stored
// exchange and sets `Idempotency-Replayed: true` without calling the LLM.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/http/middleware"
	"github.com/tbourn/go-chat-relay/internal/services"
)

//
// DTOs
//

// ChatRequest is the JSON payload for sending a message.
//
// Message is normalized by the handler (line endings and excessive blank
// lines) before being passed to the chat service, which enforces the rune
// limit.
type ChatRequest struct {
	// Message is the user's text. It must be non-empty.
	Message string `json:"message" binding:"required" example:"Bugün hava nasıl?"`
}

// HistoryResponse contains a page of exchanges and pagination metadata.
type HistoryResponse struct {
	Exchanges  []domain.ChatExchange `json:"exchanges"`
	Pagination Pagination            `json:"pagination"`
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeMessage normalizes user text for consistent downstream behavior:
// CRLF/CR become LF, runs of 3+ LFs collapse to two, and surrounding
// whitespace is trimmed.
func sanitizeMessage(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// PostChat godoc
// @ID          postChat
// @Summary     Send a message and get the assistant reply
// @Description Detects the message language, resolves the reply language (forced > explicit request > preference),
// @Description relays the message to the LLM and stores the exchange.
// @Description Supports idempotency via the Idempotency-Key header (same key → same exchange).
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (when no bearer token is sent)"  example(3f0e8a4c-4c7b-4d59-9f5e-2d1c9b8a7e61)
// @Param       userId           query   string  false "User ID (alternative to the header)"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.ChatRequest  true  "Message payload"
//
// @Success     200  {object}  services.Reply          "Assistant reply"
// @Header      200  {string}  Idempotency-Replayed    "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     429  {object}  handlers.ErrorResponse  "Chat quota exceeded"
// @Failure     500  {object}  handlers.ErrorResponse  "Exchange could not be stored"
// @Failure     502  {object}  handlers.ErrorResponse  "Unusable LLM answer"
// @Failure     503  {object}  handlers.ErrorResponse  "LLM unavailable"
// @Router      /chat [post]
func (h *Handlers) PostChat(c *gin.Context) {
	ctx := c.Request.Context()

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}
	uid := middleware.UserID(c)

	// Replay path: the validator already found a stored exchange for the key.
	if rid, found := middleware.ReplayResourceID(c); found && middleware.IsReplay(c) {
		if prev, err := h.historySvc.Get(ctx, uid, rid); err == nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, services.ReplyFromExchange(prev))
			return
		}
	}

	reply, err := h.chatSvc.Ask(ctx, uid, sanitizeMessage(req.Message))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	// Store path: best effort, only for exchanges that were persisted.
	if key, has := middleware.GetIdempotencyKey(c); has && h.idem != nil && reply.ExchangeID != "" {
		if err := h.idem.Remember(ctx, uid, middleware.IdempotencyScope(c), key, reply.ExchangeID, http.StatusOK, h.idemTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusOK, reply)
}

// ListHistory godoc
// @ID          listHistory
// @Summary     List chat history (paginated)
// @Description Returns a page of the caller's exchanges, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chat
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (when no bearer token is sent)"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"history:abc:3:1700000000\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.HistoryResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Missing user"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/history [get]
func (h *Handlers) ListHistory(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	if uid == "" {
		writeServiceError(c, services.ErrMissingUser)
		return
	}

	// ETag pre-check (best effort).
	if count, maxTS, err := h.historySvc.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		if notModified(c, fmt.Sprintf(`W/"history:%s:%d:%d"`, uid, count, ts)) {
			return
		}
	}

	pg := clampPagination(c)
	items, total, err := h.historySvc.ListPage(ctx, uid, pg.Number, pg.Size)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, HistoryResponse{Exchanges: items, Pagination: newPagination(pg, total)})
}
