// Feedback HTTP handlers.
//
// This file exposes the REST endpoint for rating a stored exchange:
//   - POST /chat/history/{id}/feedback  (create feedback)
//
// Feedback values are constrained to {-1, +1}; only the owner of an exchange
// may rate it, once.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-chat-relay/internal/http/middleware"
	"github.com/tbourn/go-chat-relay/internal/services"
)

// LeaveFeedbackRequest is the JSON payload for rating an exchange.
//
// Value must be one of:
//   - +1 : positive feedback
//   - -1 : negative feedback
//
// The binding tag enforces the domain constraint at the transport layer.
type LeaveFeedbackRequest struct {
	// Value is the feedback signal: +1 (positive) or -1 (negative).
	Value int `json:"value" binding:"required,oneof=-1 1" example:"1"`
}

// LeaveFeedback godoc
// @ID          leaveFeedback
// @Summary     Leave feedback on an exchange
// @Description Records positive (+1) or negative (-1) feedback for one of the caller's exchanges.
// @Tags        Feedback
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (when no bearer token is sent)"
// @Param       id         path    string  true  "Exchange ID (UUID)"  format(uuid) example(fa4dfbe0-c3bf-47bd-b32f-d7de221cf43b)
// @Param       body       body    handlers.LeaveFeedbackRequest true "Feedback payload"
//
// @Success     201  {object} domain.Feedback
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     403  {object} handlers.ErrorResponse "Not allowed to leave feedback"
// @Failure     404  {object} handlers.ErrorResponse "Exchange not found"
// @Failure     409  {object} handlers.ErrorResponse "Feedback already exists"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /chat/history/{id}/feedback [post]
func (h *Handlers) LeaveFeedback(c *gin.Context) {
	exchangeID := c.Param("id")
	if _, err := uuid.Parse(exchangeID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "exchange id must be a UUID")
		return
	}

	var req LeaveFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be -1 or 1")
		return
	}

	uid := middleware.UserID(c)
	if uid == "" {
		writeServiceError(c, services.ErrMissingUser)
		return
	}

	fb, err := h.fbSvc.Leave(c.Request.Context(), uid, exchangeID, req.Value)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, fb)
}
