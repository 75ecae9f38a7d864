// Profile HTTP handlers.
//
// All routes live under /profile/{userId}. A profile is created with
// defaults on first access. When the caller sent a bearer token, it must
// belong to {userId}.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

// LanguageRequest is the optional JSON body of the language endpoints; the
// query parameters take precedence.
type LanguageRequest struct {
	Language string `json:"language" example:"de"`
	Force    *bool  `json:"force,omitempty" example:"true"`
}

// PersonalityResponse wraps the stored personality.
type PersonalityResponse struct {
	Personality string `json:"personality" example:"default"`
}

// TraitsResponse wraps the stored traits.
type TraitsResponse struct {
	Traits []string `json:"traits"`
}

// languageInput reads language (and force) from the query string, falling
// back to a JSON body.
func languageInput(c *gin.Context) (lang string, force *bool, err error) {
	var body LanguageRequest
	if c.Request.ContentLength != 0 && strings.Contains(c.ContentType(), "json") {
		if err := c.ShouldBindJSON(&body); err != nil {
			return "", nil, err
		}
	}
	lang = body.Language
	if q, has := c.GetQuery("language"); has {
		lang = q
	}
	force = body.Force
	if q, has := c.GetQuery("force"); has {
		b, err := strconv.ParseBool(q)
		if err != nil {
			return "", nil, err
		}
		force = &b
	}
	return strings.TrimSpace(lang), force, nil
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get a user's profile
// @Tags        Profiles
// @Produce     json
// @Param       userId  path      string  true  "User ID (UUID)"  format(uuid)
// @Success     200     {object}  domain.UserProfile
// @Failure     400     {object}  handlers.ErrorResponse  "Bad id"
// @Failure     403     {object}  handlers.ErrorResponse  "Token for another user"
// @Failure     404     {object}  handlers.ErrorResponse  "User not found"
// @Router      /profile/{userId} [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	uid, allowed := targetUser(c, "userId")
	if !allowed {
		return
	}
	p, err := h.profileSvc.GetOrCreate(c.Request.Context(), uid)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update a user's profile
// @Description Applies the fields present in the body; absent fields are left unchanged. Served for both PUT and PATCH.
// @Tags        Profiles
// @Accept      json
// @Produce     json
// @Param       userId  path      string               true  "User ID (UUID)"  format(uuid)
// @Param       body    body      domain.ProfilePatch  true  "Fields to change"
// @Success     200     {object}  domain.UserProfile
// @Failure     400     {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     403     {object}  handlers.ErrorResponse  "Token for another user"
// @Failure     404     {object}  handlers.ErrorResponse  "User not found"
// @Router      /profile/{userId} [put]
// @Router      /profile/{userId} [patch]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	uid, allowed := targetUser(c, "userId")
	if !allowed {
		return
	}
	var patch domain.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.profileSvc.Update(c.Request.Context(), uid, patch)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateLanguage godoc
// @ID          updatePreferredLanguage
// @Summary     Set the preferred reply language
// @Tags        Profiles
// @Produce     json
// @Param       userId    path      string  true   "User ID (UUID)"  format(uuid)
// @Param       language  query     string  false  "Language code or name (or JSON body)"  example(de)
// @Success     200       {object}  domain.UserProfile
// @Failure     400       {object}  handlers.ErrorResponse  "Missing language"
// @Failure     403       {object}  handlers.ErrorResponse  "Token for another user"
// @Failure     404       {object}  handlers.ErrorResponse  "User not found"
// @Router      /profile/{userId}/language [put]
func (h *Handlers) UpdateLanguage(c *gin.Context) {
	uid, allowed := targetUser(c, "userId")
	if !allowed {
		return
	}
	lang, _, err := languageInput(c)
	if err != nil || lang == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "language required")
		return
	}
	p, err := h.profileSvc.UpdatePreferredLanguage(c.Request.Context(), uid, lang)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ForceLanguage godoc
// @ID          forceLanguage
// @Summary     Force (or stop forcing) the reply language
// @Description With force=true every reply uses the given language regardless of the message. A blank language clears it.
// @Tags        Profiles
// @Produce     json
// @Param       userId    path      string  true   "User ID (UUID)"  format(uuid)
// @Param       language  query     string  false  "Language to force"  example(tr)
// @Param       force     query     bool    true   "Enable forcing"     example(true)
// @Success     200       {object}  domain.UserProfile
// @Failure     400       {object}  handlers.ErrorResponse  "Missing force flag"
// @Failure     403       {object}  handlers.ErrorResponse  "Token for another user"
// @Failure     404       {object}  handlers.ErrorResponse  "User not found"
// @Router      /profile/{userId}/force-language [put]
func (h *Handlers) ForceLanguage(c *gin.Context) {
	uid, allowed := targetUser(c, "userId")
	if !allowed {
		return
	}
	lang, force, err := languageInput(c)
	if err != nil || force == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "force must be true or false")
		return
	}
	p, err := h.profileSvc.SetForcedLanguage(c.Request.Context(), uid, lang, *force)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ResponseLanguage godoc
// @ID          responseLanguage
// @Summary     Language replies are sent in
// @Description The language a message without an explicit request would be answered in, and why.
// @Tags        Profiles
// @Produce     json
// @Param       userId  path      string  true  "User ID (UUID)"  format(uuid)
// @Success     200     {object}  language.Resolution
// @Failure     404     {object}  handlers.ErrorResponse  "User not found"
// @Router      /profile/{userId}/response-language [get]
func (h *Handlers) ResponseLanguage(c *gin.Context) {
	uid, allowed := targetUser(c, "userId")
	if !allowed {
		return
	}
	res, err := h.profileSvc.ResponseLanguage(c.Request.Context(), uid)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Personality godoc
// @ID          personality
// @Summary     Stored personality
// @Tags        Profiles
// @Produce     json
// @Param       userId  path      string  true  "User ID (UUID)"  format(uuid)
// @Success     200     {object}  handlers.PersonalityResponse
// @Failure     404     {object}  handlers.ErrorResponse  "User not found"
// @Router      /profile/{userId}/personality [get]
func (h *Handlers) Personality(c *gin.Context) {
	uid, allowed := targetUser(c, "userId")
	if !allowed {
		return
	}
	p, err := h.profileSvc.Personality(c.Request.Context(), uid)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, PersonalityResponse{Personality: p})
}

// Traits godoc
// @ID          traits
// @Summary     Stored traits, sorted
// @Tags        Profiles
// @Produce     json
// @Param       userId  path      string  true  "User ID (UUID)"  format(uuid)
// @Success     200     {object}  handlers.TraitsResponse
// @Failure     404     {object}  handlers.ErrorResponse  "User not found"
// @Router      /profile/{userId}/traits [get]
func (h *Handlers) Traits(c *gin.Context) {
	uid, allowed := targetUser(c, "userId")
	if !allowed {
		return
	}
	traits, err := h.profileSvc.Traits(c.Request.Context(), uid)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, TraitsResponse{Traits: traits})
}
