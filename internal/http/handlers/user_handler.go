// User HTTP handlers.
//
//   - POST /users/register   (create an account and its default profile)
//   - POST /users/login      (check credentials, issue a bearer token)
//   - GET  /users/{id}
//   - GET  /users/email?email=
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/http/middleware"
	"github.com/tbourn/go-chat-relay/internal/services"
)

// LoginRequest is the JSON payload for /users/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"ada@example.com"`
	Password string `json:"password" binding:"required" example:"s3cret!"`
}

// Register godoc
// @ID          registerUser
// @Summary     Register a user
// @Description Creates a user (bcrypt-hashed password) together with a default profile.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body      services.RegisterInput  true  "Registration payload"
// @Success     201   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse  "Validation error"
// @Failure     409   {object}  handlers.ErrorResponse  "Email already registered"
// @Router      /users/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.userSvc.Register(c.Request.Context(), in)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, u)
}

// Login godoc
// @ID          loginUser
// @Summary     Log in
// @Description Verifies email and password. The token is present only when JWT_SECRET is configured.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  services.Session
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid email or password"
// @Router      /users/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password required")
		return
	}
	sess, err := h.userSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user by id
// @Tags        Users
// @Produce     json
// @Param       id   path      string  true  "User ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Bad id"
// @Failure     403  {object}  handlers.ErrorResponse  "Token for another user"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, allowed := targetUser(c, "id")
	if !allowed {
		return
	}
	u, err := h.userSvc.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// GetUserByEmail godoc
// @ID          getUserByEmail
// @Summary     Find a user by email
// @Tags        Users
// @Produce     json
// @Param       email  query     string  true  "Email address"
// @Success     200    {object}  domain.User
// @Failure     400    {object}  handlers.ErrorResponse  "Missing email"
// @Failure     403    {object}  handlers.ErrorResponse  "Token for another user"
// @Failure     404    {object}  handlers.ErrorResponse  "User not found"
// @Router      /users/email [get]
func (h *Handlers) GetUserByEmail(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email query parameter required")
		return
	}
	u, err := h.userSvc.GetByEmail(c.Request.Context(), email)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if sub, authed := middleware.AuthenticatedUserID(c); authed && sub != u.ID {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "token does not belong to this user")
		return
	}
	ok(c, http.StatusOK, u)
}
