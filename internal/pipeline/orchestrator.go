package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/config"
	"github.com/shirayuki/bilisync/internal/danmaku"
	"github.com/shirayuki/bilisync/internal/downloader"
	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/observability/metrics"
	"github.com/shirayuki/bilisync/internal/pathtmpl"
	"github.com/shirayuki/bilisync/internal/repository"
	"github.com/shirayuki/bilisync/internal/stream"
)

// Deps are the collaborators an Orchestrator needs; grouped into one struct
// one run at a time (spec §4.3).
type Deps struct {
	Sources repository.VideoSourceRepository
	Videos  repository.VideoRepository
	Pages   repository.PageRepository

	Client     *bilibili.Client
	Credential *bilibili.CredentialStore
	MixinKey   bilibili.MixinKeyFunc

	Downloader *downloader.Downloader
	Templater  *pathtmpl.Templater

	// UpperBaseDir roots the shared uploader-avatar/person.nfo directory
	// tree (spec §6 "<upper_path>/<first-char-of-mid>/<mid>/"), independent
	// of any one VideoSource's OutputPath since uploaders are shared across
	// sources.
	UpperBaseDir string

	Pipeline config.PipelineConfig
	Danmaku  danmaku.Option
	Filter   stream.FilterOption

	Logger *slog.Logger
}

// Orchestrator runs one refresh/enrich/download cycle across every enabled
// VideoSource, sequentially, per spec §4.3/§5 ("different sources within a
// cycle run sequentially").
type Orchestrator struct {
	deps Deps
	log  *slog.Logger

	// uploadersSeen is the cycle-scoped "uploader already covered" set
	// (spec §5). Sources run sequentially within one orchestrator frame,
	// but videos within a source fan out up to concurrency.video, so the
	// map is still guarded by a mutex rather than assumed race-free.
	uploadersSeenMu sync.Mutex
	uploadersSeen   map[int64]bool
}

// uploaderDone reports whether mid's avatar/person.nfo have already been
// written this cycle.
func (o *Orchestrator) uploaderDone(mid int64) bool {
	o.uploadersSeenMu.Lock()
	defer o.uploadersSeenMu.Unlock()
	return o.uploadersSeen[mid]
}

// markUploaderDone records that mid's avatar/person.nfo are now written.
func (o *Orchestrator) markUploaderDone(mid int64) {
	o.uploadersSeenMu.Lock()
	o.uploadersSeen[mid] = true
	o.uploadersSeenMu.Unlock()
}

// New builds an Orchestrator from deps, defaulting Logger to slog.Default
// and Pipeline's zero-valued batch/concurrency knobs to spec-documented
// defaults.
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Pipeline = withPipelineDefaults(deps.Pipeline)
	return &Orchestrator{deps: deps, log: deps.Logger}
}

func withPipelineDefaults(cfg config.PipelineConfig) config.PipelineConfig {
	if cfg.ConcurrencyVideo <= 0 {
		cfg.ConcurrencyVideo = 3
	}
	if cfg.ConcurrencyPage <= 0 {
		cfg.ConcurrencyPage = 2
	}
	if cfg.RefreshBatchSize <= 0 {
		cfg.RefreshBatchSize = 10
	}
	if cfg.EnrichBatchSize <= 0 {
		cfg.EnrichBatchSize = 50
	}
	if cfg.PersistBatchSize <= 0 {
		cfg.PersistBatchSize = 10
	}
	if cfg.NFOTimeType == "" {
		cfg.NFOTimeType = "pubtime"
	}
	return cfg
}

// RunCycle executes the three stages for every enabled source in turn. A
// risk-control-classed error from any stage aborts the entire cycle
// immediately (spec §4.3 "risk-control propagation ... the entire cycle
// aborts early. No other error category aborts the cycle."); every other
// per-source error is logged and the cycle moves on to the next source.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	start := time.Now()
	o.uploadersSeen = make(map[int64]bool)

	sources, err := o.deps.Sources.GetEnabled(ctx)
	if err != nil {
		metrics.ObserveCycle(time.Since(start), "error")
		return stageErr("", "list-sources", err)
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			metrics.ObserveCycle(time.Since(start), "error")
			return ctx.Err()
		}
		if err := o.runSource(ctx, src); err != nil {
			if isRiskControl(err) {
				o.log.Error("cycle aborted by risk control",
					slog.String("source", src.DisplayName), slog.Any("error", err))
				metrics.ObserveCycle(time.Since(start), "risk_control")
				return err
			}
			o.log.Error("source cycle failed",
				slog.String("source", src.DisplayName), slog.Any("error", err))
		}
	}
	metrics.ObserveCycle(time.Since(start), "ok")
	return nil
}

// runSource drives all three stages for one source. Refresh/enrich failures
// that are not risk-control-classed are logged and swallowed here so a
// broken source never blocks the others in the cycle; the later stages
// still run against whatever rows are already persisted.
func (o *Orchestrator) runSource(ctx context.Context, src *models.VideoSource) error {
	if err := o.refreshSource(ctx, src); err != nil {
		if isRiskControl(err) {
			return stageErr(src.DisplayName, "refresh", err)
		}
		o.log.Error("refresh stage failed", slog.String("source", src.DisplayName), slog.Any("error", err))
	}

	if err := o.enrichSource(ctx, src); err != nil {
		if isRiskControl(err) {
			return stageErr(src.DisplayName, "enrich", err)
		}
		o.log.Error("enrich stage failed", slog.String("source", src.DisplayName), slog.Any("error", err))
	}

	if err := o.downloadSource(ctx, src); err != nil {
		if isRiskControl(err) {
			return stageErr(src.DisplayName, "download", err)
		}
		o.log.Error("download stage failed", slog.String("source", src.DisplayName), slog.Any("error", err))
	}
	return nil
}
