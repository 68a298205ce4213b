package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"
)

// HealthHandler serves /healthz: a liveness/readiness check that also pings
// the database (SPEC_FULL.md Part D.4).
type HealthHandler struct {
	db        *gorm.DB
	version   string
	startedAt time.Time
}

// Register registers the health route.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealthz",
		Method:      "GET",
		Path:        "/healthz",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, h.Get)
}

// HealthResponse reports process liveness and database reachability.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Database      string  `json:"database"`
}

// HealthInput is the input for the health check.
type HealthInput struct{}

// HealthOutput is the output for the health check.
type HealthOutput struct {
	Body HealthResponse
}

// Get returns the current health snapshot.
func (h *HealthHandler) Get(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	dbStatus := "unknown"
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil {
			dbStatus = "error"
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbStatus = "error"
		} else {
			dbStatus = "ok"
		}
	}

	status := "healthy"
	if dbStatus == "error" {
		status = "degraded"
	}

	return &HealthOutput{Body: HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		Database:      dbStatus,
	}}, nil
}
