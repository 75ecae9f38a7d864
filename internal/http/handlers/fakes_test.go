package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/http/middleware"
	"github.com/tbourn/go-chat-relay/internal/language"
	"github.com/tbourn/go-chat-relay/internal/services"
)

type fakeChat struct {
	calls int
	fn    func(ctx context.Context, userID, message string) (*services.Reply, error)
}

func (f *fakeChat) Ask(ctx context.Context, userID, message string) (*services.Reply, error) {
	f.calls++
	return f.fn(ctx, userID, message)
}

type fakeHistory struct {
	get   func(ctx context.Context, userID, id string) (*domain.ChatExchange, error)
	list  func(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatExchange, int64, error)
	stats func(ctx context.Context, userID string) (int64, *time.Time, error)
}

func (f *fakeHistory) Get(ctx context.Context, userID, id string) (*domain.ChatExchange, error) {
	return f.get(ctx, userID, id)
}

func (f *fakeHistory) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatExchange, int64, error) {
	return f.list(ctx, userID, page, pageSize)
}

func (f *fakeHistory) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return f.stats(ctx, userID)
}

type fakeFeedback struct {
	fn func(ctx context.Context, userID, exchangeID string, value int) (*domain.Feedback, error)
}

func (f fakeFeedback) Leave(ctx context.Context, userID, exchangeID string, value int) (*domain.Feedback, error) {
	return f.fn(ctx, userID, exchangeID, value)
}

type fakeUsers struct {
	register func(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	auth     func(ctx context.Context, email, password string) (*services.Session, error)
	get      func(ctx context.Context, id string) (*domain.User, error)
	byEmail  func(ctx context.Context, email string) (*domain.User, error)
}

func (f fakeUsers) Register(ctx context.Context, in services.RegisterInput) (*domain.User, error) {
	return f.register(ctx, in)
}

func (f fakeUsers) Authenticate(ctx context.Context, email, password string) (*services.Session, error) {
	return f.auth(ctx, email, password)
}

func (f fakeUsers) Get(ctx context.Context, id string) (*domain.User, error) { return f.get(ctx, id) }

func (f fakeUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return f.byEmail(ctx, email)
}

// fakeProfiles keeps one profile per user in memory.
type fakeProfiles struct {
	profiles map[string]*domain.UserProfile
	err      error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]*domain.UserProfile{}}
}

func (f *fakeProfiles) GetOrCreate(_ context.Context, userID string) (*domain.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, found := f.profiles[userID]
	if !found {
		p = domain.NewUserProfile(userID)
		f.profiles[userID] = p
	}
	return p, nil
}

func (f *fakeProfiles) Update(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.UserProfile, error) {
	p, err := f.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	patch.Apply(p)
	return p, nil
}

func (f *fakeProfiles) UpdatePreferredLanguage(ctx context.Context, userID, lang string) (*domain.UserProfile, error) {
	return f.Update(ctx, userID, domain.ProfilePatch{PreferredLanguage: &lang})
}

func (f *fakeProfiles) SetForcedLanguage(ctx context.Context, userID, lang string, force bool) (*domain.UserProfile, error) {
	p, err := f.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.ForceResponseLanguage = force
	p.ForcedResponseLanguage = string(language.Normalize(lang))
	if strings.TrimSpace(lang) == "" {
		p.ForcedResponseLanguage = ""
	}
	return p, nil
}

func (f *fakeProfiles) ResponseLanguage(ctx context.Context, userID string) (language.Resolution, error) {
	p, err := f.GetOrCreate(ctx, userID)
	if err != nil {
		return language.Resolution{}, err
	}
	return language.NewResolver().Resolve("", p.Preference()), nil
}

func (f *fakeProfiles) Personality(ctx context.Context, userID string) (string, error) {
	p, err := f.GetOrCreate(ctx, userID)
	if err != nil {
		return "", err
	}
	return p.Personality, nil
}

func (f *fakeProfiles) Traits(ctx context.Context, userID string) ([]string, error) {
	p, err := f.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.NormalizeTraits(p.Traits), nil
}

type idemRecord struct {
	userID, scope, key, resourceID string
	ttl                            time.Duration
}

type fakeIdem struct {
	saved []idemRecord
	err   error
}

func (f *fakeIdem) Remember(_ context.Context, userID, scope, key, resourceID string, _ int, ttl time.Duration) error {
	f.saved = append(f.saved, idemRecord{userID, scope, key, resourceID, ttl})
	return f.err
}

// newRouter mounts h's routes behind the identity middleware, the same way
// the real router does.
func newRouter(h *Handlers, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity())
	r.Use(extra...)

	r.POST("/chat", h.PostChat)
	r.GET("/chat/history", h.ListHistory)
	r.POST("/chat/history/:id/feedback", h.LeaveFeedback)

	r.POST("/users/register", h.Register)
	r.POST("/users/login", h.Login)
	r.GET("/users/email", h.GetUserByEmail)
	r.GET("/users/:id", h.GetUser)

	r.GET("/profile/:userId", h.GetProfile)
	r.PUT("/profile/:userId", h.UpdateProfile)
	r.PATCH("/profile/:userId", h.UpdateProfile)
	r.PUT("/profile/:userId/language", h.UpdateLanguage)
	r.PUT("/profile/:userId/force-language", h.ForceLanguage)
	r.GET("/profile/:userId/response-language", h.ResponseLanguage)
	r.GET("/profile/:userId/personality", h.Personality)
	r.GET("/profile/:userId/traits", h.Traits)

	r.GET("/health", h.Health)
	r.GET("/health/detailed", h.HealthDetailed)
	r.GET("/health/info", h.HealthInfo)
	return r
}

func do(r http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return v
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code || er.Message == "" || er.RequestID == "" {
		t.Fatalf("unexpected error envelope: %+v (want code %q)", er, code)
	}
	return er
}
