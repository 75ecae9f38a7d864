// Health HTTP handlers.
//
//   - GET /health           liveness, never touches dependencies
//   - GET /health/detailed  runs every Probe; 503 when a critical one fails
//   - GET /health/info      build and runtime facts
package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Health statuses.
const (
	StatusUp       = "UP"
	StatusDown     = "DOWN"
	StatusDegraded = "DEGRADED"
)

// probeTimeout bounds each dependency check.
const probeTimeout = 2 * time.Second

// AppInfo describes the running build.
type AppInfo struct {
	Name    string
	Version string
	Model   string
}

// Probe checks one dependency. A failing non-critical probe degrades the
// service without failing the health check.
type Probe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string    `json:"status" example:"UP"`
	Service   string    `json:"service" example:"go-chat-relay"`
	Version   string    `json:"version" example:"1.0.0"`
	Timestamp time.Time `json:"timestamp"`
}

// ComponentStatus is one probe result.
type ComponentStatus struct {
	Status string `json:"status" example:"UP"`
	Error  string `json:"error,omitempty"`
}

// DetailedHealthResponse is returned by /health/detailed.
type DetailedHealthResponse struct {
	HealthResponse
	Components map[string]ComponentStatus `json:"components"`
}

// InfoResponse is returned by /health/info.
type InfoResponse struct {
	Application string    `json:"application" example:"go-chat-relay"`
	Version     string    `json:"version" example:"1.0.0"`
	GoVersion   string    `json:"go_version" example:"go1.24.0"`
	OS          string    `json:"os" example:"linux"`
	Arch        string    `json:"arch" example:"amd64"`
	Model       string    `json:"model,omitempty" example:"deepseek/deepseek-chat-v3-0324:free"`
	Timestamp   time.Time `json:"timestamp"`
}

func (h *Handlers) healthBase(status string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Service:   h.info.Name,
		Version:   h.info.Version,
		Timestamp: h.now().UTC(),
	}
}

// Health godoc
// @ID          health
// @Summary     Liveness
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, h.healthBase(StatusUp))
}

// HealthDetailed godoc
// @ID          healthDetailed
// @Summary     Dependency health
// @Description Pings the database, Redis (when configured) and reports whether the LLM is configured.
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.DetailedHealthResponse
// @Failure     503  {object}  handlers.DetailedHealthResponse
// @Router      /health/detailed [get]
func (h *Handlers) HealthDetailed(c *gin.Context) {
	results := make([]ComponentStatus, len(h.probes))

	g, ctx := errgroup.WithContext(c.Request.Context())
	for i, p := range h.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			if err := p.Check(pctx); err != nil {
				results[i] = ComponentStatus{Status: StatusDown, Error: err.Error()}
				return nil
			}
			results[i] = ComponentStatus{Status: StatusUp}
			return nil
		})
	}
	_ = g.Wait()

	status, code := StatusUp, http.StatusOK
	components := make(map[string]ComponentStatus, len(h.probes))
	for i, p := range h.probes {
		components[p.Name] = results[i]
		if results[i].Status == StatusUp {
			continue
		}
		if p.Critical {
			status, code = StatusDown, http.StatusServiceUnavailable
		} else if status == StatusUp {
			status = StatusDegraded
		}
	}

	c.JSON(code, DetailedHealthResponse{HealthResponse: h.healthBase(status), Components: components})
}

// HealthInfo godoc
// @ID          healthInfo
// @Summary     Build and runtime information
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.InfoResponse
// @Router      /health/info [get]
func (h *Handlers) HealthInfo(c *gin.Context) {
	ok(c, http.StatusOK, InfoResponse{
		Application: h.info.Name,
		Version:     h.info.Version,
		GoVersion:   runtime.Version(),
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		Model:       h.info.Model,
		Timestamp:   h.now().UTC(),
	})
}
