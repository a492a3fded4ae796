package http

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentsh/internal/api/middleware"
	"github.com/GriffinCanCode/agentsh/internal/shared/types"
)

// Provider is the tool surface served over HTTP.
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, toolID string, params map[string]interface{}) (*types.Result, error)
}

// Stats reports registry occupancy for the health endpoint.
type Stats interface {
	Running() int
}

// SessionStats reports live sessions for the health endpoint.
type SessionStats interface {
	Active() int
}

// maxBodyBytes bounds a tool call body.
const maxBodyBytes = 1 << 20

// Handlers contains all HTTP handlers
type Handlers struct {
	provider Provider
	jobs     Stats
	sessions SessionStats
	logger   *zap.Logger
	started  time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(provider Provider, jobs Stats, sessions SessionStats, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		provider: provider,
		jobs:     jobs,
		sessions: sessions,
		logger:   logger,
		started:  time.Now(),
	}
}

// Register mounts the routes on router.
func (h *Handlers) Register(router gin.IRouter, gatherer prometheus.Gatherer) {
	router.GET("/health", h.Health)
	router.GET("/tools", h.ListTools)
	router.POST("/tools/:name", h.ExecuteTool)
	router.POST("/execute", h.Execute)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// Health handles health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "agentsh",
		"uptime_seconds":  time.Since(h.started).Seconds(),
		"jobs_running":    h.jobs.Running(),
		"sessions_active": h.sessions.Active(),
	})
}

// ListTools returns the tool catalogue
func (h *Handlers) ListTools(c *gin.Context) {
	render(c, http.StatusOK, h.provider.Definition())
}

// ExecuteTool runs the tool named in the path. The body is the parameter
// object and may be empty.
func (h *Handlers) ExecuteTool(c *gin.Context) {
	params := map[string]interface{}{}
	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) > 0 {
		if err := sonic.Unmarshal(body, &params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object: " + err.Error()})
			return
		}
	}
	h.run(c, c.Param("name"), params)
}

// Execute runs a tool named in a types.ExecuteRequest envelope.
func (h *Handlers) Execute(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req types.ExecuteRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Tool == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tool is required"})
		return
	}
	h.run(c, req.Tool, req.Params)
}

// run executes a tool. Tool failures are still 200 responses carrying a
// failed result; only an unknown tool is a 404.
func (h *Handlers) run(c *gin.Context, tool string, params map[string]interface{}) {
	result, err := h.provider.Execute(c.Request.Context(), tool, params)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if !result.Success {
		h.logger.Debug("Tool call failed",
			zap.String("tool", tool),
			zap.String("code", result.Code),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		)
	}
	render(c, http.StatusOK, result)
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	return c.GetRawData()
}

// render encodes v with sonic.
func render(c *gin.Context, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}
