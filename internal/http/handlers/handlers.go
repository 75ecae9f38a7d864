// Package handlers provides HTTP handler implementations for the public API.
//
// This file declares the service contracts the handlers depend on and the
// Handlers value that groups every endpoint. Handlers are transport-thin:
// they bind and validate input, call a service, and translate the result
// (or error) into an HTTP response.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/http/middleware"
	"github.com/tbourn/go-chat-relay/internal/language"
	"github.com/tbourn/go-chat-relay/internal/services"
	"github.com/tbourn/go-chat-relay/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService answers a user message.
type ChatService interface {
	Ask(ctx context.Context, userID, message string) (*services.Reply, error)
}

// HistoryService reads stored exchanges.
type HistoryService interface {
	// Get returns one exchange owned by userID.
	Get(ctx context.Context, userID, id string) (*domain.ChatExchange, error)
	// ListPage returns a page of exchanges, newest first, and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatExchange, int64, error)
	// Stats returns the exchange count and latest timestamp for ETags.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
}

// FeedbackService records ratings on exchanges.
type FeedbackService interface {
	// Leave submits a feedback value (-1 or 1) for exchangeID by userID.
	Leave(ctx context.Context, userID, exchangeID string, value int) (*domain.Feedback, error)
}

// UserService registers and looks up users.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*services.Session, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// ProfileService reads and edits user profiles.
type ProfileService interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.UserProfile, error)
	Update(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.UserProfile, error)
	UpdatePreferredLanguage(ctx context.Context, userID, lang string) (*domain.UserProfile, error)
	SetForcedLanguage(ctx context.Context, userID, lang string, force bool) (*domain.UserProfile, error)
	ResponseLanguage(ctx context.Context, userID string) (language.Resolution, error)
	Personality(ctx context.Context, userID string) (string, error)
	Traits(ctx context.Context, userID string) ([]string, error)
}

// IdempotencyStore records the resource produced for an Idempotency-Key so
// a retry can be answered with it.
type IdempotencyStore interface {
	Remember(ctx context.Context, userID, scope, key, resourceID string, status int, ttl time.Duration) error
}

//
// Handler wiring
//

// Deps lists everything New needs. Nil services leave their endpoints
// unusable; nil Idempotency disables recording keys.
type Deps struct {
	Chat     ChatService
	History  HistoryService
	Feedback FeedbackService
	Users    UserService
	Profiles ProfileService

	Idempotency    IdempotencyStore
	IdempotencyTTL time.Duration

	Info   AppInfo
	Probes []Probe
}

// Handlers groups every HTTP endpoint of the API.
type Handlers struct {
	chatSvc    ChatService
	historySvc HistoryService
	fbSvc      FeedbackService
	userSvc    UserService
	profileSvc ProfileService

	idem    IdempotencyStore
	idemTTL time.Duration

	info   AppInfo
	probes []Probe
	now    func() time.Time
}

// New constructs Handlers from d. IdempotencyTTL defaults to 24h.
func New(d Deps) *Handlers {
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		chatSvc:    d.Chat,
		historySvc: d.History,
		fbSvc:      d.Feedback,
		userSvc:    d.Users,
		profileSvc: d.Profiles,
		idem:       d.Idempotency,
		idemTTL:    ttl,
		info:       d.Info,
		probes:     d.Probes,
		now:        time.Now,
	}
}

//
// Shared DTOs and helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(pg utils.Page, total int64) Pagination {
	totalPages := pg.TotalPages(total)
	return Pagination{
		Page:       pg.Number,
		PageSize:   pg.Size,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    pg.Number < totalPages,
	}
}

// clampPagination parses and bounds the page and page_size query params.
func clampPagination(c *gin.Context) utils.Page {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

// targetUser reads the :param user id, checks it is a UUID and, when the
// caller presented a JWT, that it names the same user. It writes the error
// response itself and reports whether the handler may continue.
func targetUser(c *gin.Context, param string) (string, bool) {
	id := c.Param(param)
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a UUID")
		return "", false
	}
	if sub, ok := middleware.AuthenticatedUserID(c); ok && sub != id {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "token does not belong to this user")
		return "", false
	}
	return id, true
}
