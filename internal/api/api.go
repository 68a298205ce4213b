// Package api implements the supplemented read/control HTTP surface (spec
// §1, SPEC_FULL.md Part D.4/E.2): list/get video sources and videos, a
// manual cycle trigger, task status, and the effective configuration.
// Handlers are thin translators between HTTP, the repositories, and the
// scheduler; no pipeline business logic lives here.
package api

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/shirayuki/bilisync/internal/config"
	"github.com/shirayuki/bilisync/internal/repository"
	"github.com/shirayuki/bilisync/internal/scheduler"
)

// Deps are the collaborators every handler needs.
type Deps struct {
	Sources   repository.VideoSourceRepository
	Videos    repository.VideoRepository
	Scheduler *scheduler.Scheduler
	Config    *config.Config
	DB        *gorm.DB
	Version   string
	StartedAt time.Time
	Logger    *slog.Logger
}

// Register wires every handler in this package onto api.
func Register(api huma.API, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}

	(&SourceHandler{sources: deps.Sources}).Register(api)
	(&VideoHandler{videos: deps.Videos}).Register(api)
	(&TaskHandler{scheduler: deps.Scheduler}).Register(api)
	(&ConfigHandler{config: deps.Config}).Register(api)
	(&HealthHandler{db: deps.DB, version: deps.Version, startedAt: deps.StartedAt}).Register(api)
}

// notFound is a small shared helper so every handler reports 404s with the
// same shape.
func notFound(resource, id string) error {
	return huma.Error404NotFound(resource + " " + id + " not found")
}
