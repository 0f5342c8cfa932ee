package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports how many tenant connections are open.
type ConnectionCounter interface {
	Len() int
}

// RetryBacklog reports how many projections are parked for retry.
type RetryBacklog interface {
	ProjectionQueueLen(ctx context.Context) (int64, error)
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	shared    Pinger
	cache     Pinger
	registry  ConnectionCounter
	backlog   RetryBacklog
	version   string
	startedAt time.Time
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(shared, cache Pinger, registry ConnectionCounter, backlog RetryBacklog, version string) *HealthHandlers {
	return &HealthHandlers{
		shared:    shared,
		cache:     cache,
		registry:  registry,
		backlog:   backlog,
		version:   version,
		startedAt: time.Now(),
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status            string            `json:"status"`
	Timestamp         string            `json:"timestamp"`
	Services          map[string]string `json:"services"`
	Uptime            string            `json:"uptime"`
	Version           string            `json:"version"`
	Goroutines        int               `json:"goroutines"`
	TenantConnections int               `json:"tenant_connections"`
	ProjectionBacklog int64             `json:"projection_backlog"`
}

// HealthCheck reports "degraded" when the shared database or Redis is down.
// Tenant databases are not pinged; they are dialed on demand.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Services:   make(map[string]string),
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Version:    h.version,
		Goroutines: runtime.NumGoroutine(),
	}

	if err := ping(ctx, h.shared); err != nil {
		health.Services["database"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["database"] = "healthy"
	}

	if err := ping(ctx, h.cache); err != nil {
		health.Services["redis"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["redis"] = "healthy"
	}

	if h.registry != nil {
		health.TenantConnections = h.registry.Len()
	}
	if h.backlog != nil {
		if n, err := h.backlog.ProjectionQueueLen(ctx); err == nil {
			health.ProjectionBacklog = n
		}
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, health)
}

// LivenessCheck determines if the application is running (basic liveness check)
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func ping(ctx context.Context, p Pinger) error {
	if p == nil {
		return nil
	}
	return p.Ping(ctx)
}
