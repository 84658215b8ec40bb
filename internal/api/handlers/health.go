package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// HealthChecker is satisfied by the database and redis wrappers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db       HealthChecker
	redis    HealthChecker
	telegram string
}

// HealthResponse represents the health status response.
type HealthResponse struct {
	// Status is "healthy", "degraded" or "unhealthy".
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

var startTime = time.Now()

// NewHealthHandler creates a HealthHandler. redis may be nil when the
// deployment runs without it; telegramMode is reported as-is.
func NewHealthHandler(db HealthChecker, redis HealthChecker, telegramMode string) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, telegram: telegramMode}
}

func probe(ctx context.Context, span *sentry.Span, name string, checker HealthChecker) (string, bool) {
	if checker == nil {
		span.SetTag(name+".status", "not_configured")
		return "not configured", true
	}
	if err := checker.HealthCheck(ctx); err != nil {
		span.SetTag(name+".status", "unhealthy")
		sentry.CaptureException(err)
		return "unhealthy: " + err.Error(), false
	}
	span.SetTag(name+".status", "healthy")
	return "healthy", true
}

// HealthCheck reports every dependency. Only the database is critical.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	span := sentry.StartSpan(ctx, "health_check")
	defer span.Finish()
	ctx = span.Context()

	servicesStatus := make(map[string]string)
	dbStatus, dbOK := probe(ctx, span, "database", h.db)
	if h.db == nil {
		dbStatus, dbOK = "unhealthy: not configured", false
	}
	servicesStatus["database"] = dbStatus
	redisStatus, redisOK := probe(ctx, span, "redis", h.redis)
	servicesStatus["redis"] = redisStatus
	servicesStatus["telegram"] = h.telegram

	status := "healthy"
	code := http.StatusOK
	switch {
	case !dbOK:
		status = "unhealthy"
		code = http.StatusServiceUnavailable
		span.Status = sentry.SpanStatusUnavailable
	case !redisOK:
		status = "degraded"
		span.Status = sentry.SpanStatusOK
	default:
		span.Status = sentry.SpanStatusOK
	}
	span.SetTag("overall.status", status)

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  servicesStatus,
		Version:   os.Getenv("APP_VERSION"),
		Uptime:    time.Since(startTime).String(),
	})
}

// ReadinessCheck fails while any configured dependency is unreachable.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	span := sentry.StartSpan(c.Request.Context(), "readiness_check")
	defer span.Finish()
	ctx := span.Context()

	servicesStatus := make(map[string]string)
	ready := h.db != nil
	if h.db == nil {
		servicesStatus["database"] = "not configured"
	} else if status, ok := probe(ctx, span, "database", h.db); ok {
		servicesStatus["database"] = "ready"
	} else {
		servicesStatus["database"] = status
		ready = false
	}
	if h.redis != nil {
		if _, ok := probe(ctx, span, "redis", h.redis); ok {
			servicesStatus["redis"] = "ready"
		} else {
			servicesStatus["redis"] = "not ready"
			ready = false
		}
	}

	code := http.StatusOK
	span.Status = sentry.SpanStatusOK
	if !ready {
		code = http.StatusServiceUnavailable
		span.Status = sentry.SpanStatusUnavailable
	}
	c.JSON(code, gin.H{"ready": ready, "services": servicesStatus})
}

// LivenessCheck only confirms the process is responsive.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
