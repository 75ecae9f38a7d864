package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticTokens map[string]string

func (s staticTokens) Enabled() bool { return true }

func (s staticTokens) Parse(tok string) (string, error) {
	if sub, ok := s[tok]; ok {
		return sub, nil
	}
	return "", errors.New("invalid token")
}

func metricsEngine(lookup IdempotencyLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(staticTokens{"tok-ada": "ada"}), Identity(), Metrics(), IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.GET("/profile/:userId", func(c *gin.Context) { c.String(http.StatusOK, "profile") })
	r.POST("/chat", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestMetrics_RouteAndCallerLabels(t *testing.T) {
	r := metricsEngine(nil)

	count := func(method, route, status, caller string) float64 {
		return testutil.ToFloat64(httpReqs.WithLabelValues(method, route, status, caller))
	}
	baseToken := count("GET", "/profile/:userId", "200", CallerToken)
	baseHeader := count("GET", "/profile/:userId", "200", CallerHeader)
	baseAnon := count("GET", unmatchedRoute, "404", CallerAnonymous)

	req := httptest.NewRequest(http.MethodGet, "/profile/ada", nil)
	req.Header.Set("Authorization", "Bearer tok-ada")
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/profile/bob", nil)
	req.Header.Set(HeaderUserID, "bob")
	r.ServeHTTP(httptest.NewRecorder(), req)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin/x.php", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/.env", nil))

	if got := count("GET", "/profile/:userId", "200", CallerToken); got != baseToken+1 {
		t.Errorf("token caller = %v, want %v", got, baseToken+1)
	}
	if got := count("GET", "/profile/:userId", "200", CallerHeader); got != baseHeader+1 {
		t.Errorf("header caller = %v, want %v", got, baseHeader+1)
	}
	if got := count("GET", unmatchedRoute, "404", CallerAnonymous); got != baseAnon+2 {
		t.Errorf("unmatched = %v, want %v", got, baseAnon+2)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Errorf("inflight = %v, want 0", got)
	}
}

func TestMetrics_CountsReplays(t *testing.T) {
	lookup := func(_ context.Context, uid, _, key string, _ time.Time) (string, bool, error) {
		return "ex-1", uid == "ada" && key == "k-1", nil
	}
	r := metricsEngine(lookup)
	base := testutil.ToFloat64(idemReplays.WithLabelValues("/chat"))

	for _, key := range []string{"k-1", "k-2", ""} {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set(HeaderUserID, "ada")
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(idemReplays.WithLabelValues("/chat")); got != base+1 {
		t.Fatalf("replays = %v, want %v", got, base+1)
	}
}

func TestCallerKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := map[string]struct {
		setup func(c *gin.Context)
		want  string
	}{
		"anonymous": {func(*gin.Context) {}, CallerAnonymous},
		"header":    {func(c *gin.Context) { c.Set(ctxKeyUserID, "u-1") }, CallerHeader},
		"token": {func(c *gin.Context) {
			c.Set(ctxKeyAuthUser, "u-1")
			c.Set(ctxKeyUserID, "u-1")
		}, CallerToken},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			tc.setup(c)
			if got := CallerKind(c); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
