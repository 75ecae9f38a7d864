// Package httpapi builds the Gin engine of the relay: the middleware chain,
// the /api/v1 routes and the health, metrics and Swagger endpoints.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-chat-relay/docs" // registers the OpenAPI document
	"github.com/tbourn/go-chat-relay/internal/auth"
	"github.com/tbourn/go-chat-relay/internal/config"
	"github.com/tbourn/go-chat-relay/internal/http/handlers"
	"github.com/tbourn/go-chat-relay/internal/http/middleware"
	"github.com/tbourn/go-chat-relay/internal/llm"
	"github.com/tbourn/go-chat-relay/internal/repo"
	"github.com/tbourn/go-chat-relay/internal/services"
)

// Deps are the long-lived clients the routes are built on. Redis is
// optional; without it the chat quota is kept in process memory. A nil LLM
// is built from the config.
type Deps struct {
	DB     *gorm.DB
	Redis  *redis.Client
	LLM    *llm.Client
	Tokens *auth.Issuer
}

// idempotencyStore adapts repo.CreateIdempotency to handlers.IdempotencyStore.
type idempotencyStore struct{ db *gorm.DB }

// Remember stores the outcome of a keyed request. A concurrent duplicate is
// not an error: the first writer wins.
func (s idempotencyStore) Remember(ctx context.Context, userID, scope, key, resourceID string, status int, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scope, key, resourceID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// idempotencyLookup resolves a stored key to the resource it produced.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (string, bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return rec.ResourceID, true, nil
	}
}

// probes lists the dependencies /health/detailed checks. Only the database
// is critical; Redis and the LLM degrade the service.
func probes(d Deps) []handlers.Probe {
	ps := []handlers.Probe{{
		Name:     "database",
		Critical: true,
		Check:    func(ctx context.Context) error { return repo.Ping(ctx, d.DB) },
	}}
	if d.Redis != nil {
		ps = append(ps, handlers.Probe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() },
		})
	}
	ps = append(ps, handlers.Probe{
		Name: "llm",
		Check: func(context.Context) error {
			if !d.LLM.Configured() {
				return llm.ErrNotConfigured
			}
			return nil
		},
	})
	return ps
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger (redacting unless disabled)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Authenticate + Identity: resolve the caller before anything keys on it
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. Compression, CORS and security headers
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	if d.LLM == nil {
		d.LLM = llm.New(cfg.LLM)
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging, with redaction by default
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key"},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Bearer token first, then the X-User-ID / userId fallback
	r.Use(middleware.Authenticate(d.Tokens))
	r.Use(middleware.Identity())

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idempotencyLookup(d.DB),
	))

	// 9) Token-bucket rate limiter per user/IP; probes and scrapes are free
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Exempt("/health", "/health/detailed", "/health/info", "/metrics")
	r.Use(rl.Handler())

	// 10) Compression; the Prometheus scraper negotiates its own encoding
	if cfg.GzipEnabled {
		r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	}

	// 11) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// History answers with an ETag; everything else is per-user and uncacheable.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStore:       true,
		Revalidate:    []string{path.Join(cfg.APIBasePath, "/chat/history")},
		EnablePolicy:  true,
		ExposeHeaders: []string{"ETag", "Retry-After", "Idempotency-Replayed"},
	}))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Dependency injection: services ← repo/db/llm
	userSvc := services.NewUserService(d.DB, d.Tokens)
	profileSvc := services.NewProfileService(d.DB)
	historySvc := services.NewHistoryService(d.DB)
	fbSvc := services.NewFeedbackService(d.DB)
	deps := handlers.Deps{
		Chat:           services.NewChatService(userSvc, profileSvc, historySvc, d.LLM, cfg.Chat),
		History:        historySvc,
		Feedback:       fbSvc,
		Users:          userSvc,
		Profiles:       profileSvc,
		Idempotency:    idempotencyStore{db: d.DB},
		IdempotencyTTL: cfg.IdempotencyTTL,
		Info:           handlers.AppInfo{Name: cfg.AppName, Version: cfg.AppVersion, Model: cfg.LLM.Model},
		Probes:         probes(d),
	}
	h := handlers.New(deps)

	// Health (outside the versioned API so probes never move)
	r.GET("/health", h.Health)
	r.GET("/health/detailed", h.HealthDetailed)
	r.GET("/health/info", h.HealthInfo)

	// Per-user chat quota; Redis shares it across replicas.
	var store middleware.WindowStore = middleware.NewMemoryWindowStore()
	if d.Redis != nil {
		store = middleware.NewRedisWindowStore(d.Redis, "chatrelay:quota")
	}
	quota := middleware.NewWindowLimiter(store, "chat", cfg.Chat.RateLimit, cfg.Chat.RateWindow, middleware.KeyByUserOrIP())

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	{
		// Chat
		api.POST("/chat", quota.Handler(), h.PostChat)
		api.GET("/chat/history", h.ListHistory)
		api.POST("/chat/history/:id/feedback", h.LeaveFeedback)

		// Users
		api.POST("/users/register", h.Register)
		api.POST("/users/login", h.Login)
		api.GET("/users/email", h.GetUserByEmail)
		api.GET("/users/:id", h.GetUser)

		// Profiles
		api.GET("/profile/:userId", h.GetProfile)
		api.PUT("/profile/:userId", h.UpdateProfile)
		api.PATCH("/profile/:userId", h.UpdateProfile)
		api.PUT("/profile/:userId/language", h.UpdateLanguage)
		api.PUT("/profile/:userId/force-language", h.ForceLanguage)
		api.GET("/profile/:userId/response-language", h.ResponseLanguage)
		api.GET("/profile/:userId/personality", h.Personality)
		api.GET("/profile/:userId/traits", h.Traits)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
