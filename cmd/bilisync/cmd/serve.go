package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shirayuki/bilisync/internal/api"
	"github.com/shirayuki/bilisync/internal/bilibili"
	"github.com/shirayuki/bilisync/internal/config"
	"github.com/shirayuki/bilisync/internal/danmaku"
	"github.com/shirayuki/bilisync/internal/database"
	"github.com/shirayuki/bilisync/internal/downloader"
	bilihttp "github.com/shirayuki/bilisync/internal/http"
	"github.com/shirayuki/bilisync/internal/models"
	"github.com/shirayuki/bilisync/internal/pathtmpl"
	"github.com/shirayuki/bilisync/internal/pipeline"
	"github.com/shirayuki/bilisync/internal/repository"
	"github.com/shirayuki/bilisync/internal/scheduler"
	"github.com/shirayuki/bilisync/internal/stream"
	"github.com/shirayuki/bilisync/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync engine and control API",
	Long: `Run bilisync's scheduler loop and control/observability HTTP API.

The scheduler drives a refresh/enrich/download cycle across every enabled
video source on the configured interval or cron trigger. The HTTP API
exposes read access to sources and videos, a manual cycle trigger, and
health/config endpoints; it never implements pipeline logic itself.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(
		&models.VideoSource{},
		&models.Video{},
		&models.Page{},
		&models.Job{},
		&models.JobHistory{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	sourceRepo := repository.NewVideoSourceRepository(db.DB)
	videoRepo := repository.NewVideoRepository(db.DB)
	pageRepo := repository.NewPageRepository(db.DB)
	jobRepo := repository.NewJobRepository(db.DB)

	client, err := bilibili.NewClient(bilibili.Config{
		ProxyURL: cfg.Bilibili.ProxyURL,
		RateLimit: bilibili.RateLimitConfig{
			Limit:      cfg.Bilibili.RateLimit.Limit,
			IntervalMS: cfg.Bilibili.RateLimit.IntervalMS,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("building bilibili client: %w", err)
	}

	credential := bilibili.NewCredentialStore(bilibili.Credential{
		SESSDATA:    cfg.Bilibili.Credential.SESSDATA,
		BiliJCT:     cfg.Bilibili.Credential.BiliJCT,
		Buvid3:      cfg.Bilibili.Credential.Buvid3,
		DedeUserID:  cfg.Bilibili.Credential.DedeUserID,
		ACTimeValue: cfg.Bilibili.Credential.ACTimeValue,
	})
	mixinKey := &bilibili.MixinKeyCache{}
	if snap := credential.Snapshot(); !snap.Empty() {
		if err := client.RefreshMixinKey(ctx, snap, mixinKey); err != nil {
			logger.Warn("initial wbi mixin key refresh failed, will retry on first cycle", slog.Any("error", err))
		}
	}

	templater, err := pathtmpl.NewTemplater(string(filepath.Separator), map[string]string{
		"video_name": cfg.Pipeline.PathTemplates.VideoName,
		"page_name":  cfg.Pipeline.PathTemplates.PageName,
	})
	if err != nil {
		return fmt.Errorf("building path templater: %w", err)
	}

	dl, err := downloader.New(client, cfg.FFmpeg.BinaryPath, cfg.Storage.TempPath())
	if err != nil {
		return fmt.Errorf("building downloader: %w", err)
	}

	orchestrator := pipeline.New(pipeline.Deps{
		Sources: sourceRepo,
		Videos:  videoRepo,
		Pages:   pageRepo,

		Client:     client,
		Credential: credential,
		MixinKey:   mixinKey.Func(),

		Downloader: dl,
		Templater:  templater,

		UpperBaseDir: filepath.Join(cfg.Storage.BaseDir, "uploaders"),

		Pipeline: cfg.Pipeline,
		Danmaku:  danmakuOptionFromConfig(cfg.Danmaku),
		Filter:   stream.DefaultFilterOption(),

		Logger: logger,
	})

	sched := scheduler.New(scheduler.Deps{
		Orchestrator: orchestrator,
		Jobs:         jobRepo,

		Client:     client,
		Credential: credential,
		MixinKey:   mixinKey,

		Trigger: scheduler.Trigger{
			Interval: time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second,
			Cron:     cfg.Scheduler.Cron,
		},
		Logger: logger,
	})

	startedAt := time.Now()
	go sched.Start(ctx)

	serverCfg := bilihttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     bilihttp.DefaultServerConfig().IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimitPerMin: cfg.API.RateLimitPerMin,
	}
	server := bilihttp.NewServer(serverCfg, logger, version.Short())

	api.Register(server.API(), api.Deps{
		Sources:   sourceRepo,
		Videos:    videoRepo,
		Scheduler: sched,
		Config:    cfg,
		DB:        db.DB,
		Version:   version.Short(),
		StartedAt: startedAt,
		Logger:    logger,
	})

	logger.Info("starting bilisync server",
		slog.String("address", fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port)),
		slog.String("version", version.Short()),
	)

	err = server.ListenAndServe(ctx)
	sched.Stop()
	return err
}

// danmakuOptionFromConfig translates the user-facing danmaku config section
// into the rendering package's Option, falling back to field-by-field
// defaults for anything left at its zero value (an operator who only wants
// to override, say, font size shouldn't have to restate every other knob).
func danmakuOptionFromConfig(c config.DanmakuConfig) danmaku.Option {
	opt := danmaku.DefaultOption()
	if c.Duration != 0 {
		opt.Duration = c.Duration
	}
	if c.Font != "" {
		opt.Font = c.Font
	}
	if c.FontSize != 0 {
		opt.FontSize = uint32(c.FontSize)
	}
	if c.WidthRatio != 0 {
		opt.WidthRatio = c.WidthRatio
	}
	if c.HorizontalGap != 0 {
		opt.HorizontalGap = c.HorizontalGap
	}
	if c.LaneSize != 0 {
		opt.LaneSize = uint32(c.LaneSize)
	}
	if c.FloatPercentage != 0 {
		opt.FloatPercentage = c.FloatPercentage
	}
	if c.BottomPercentage != 0 {
		opt.BottomPercentage = c.BottomPercentage
	}
	if c.Opacity != 0 {
		opt.Opacity = uint8(c.Opacity)
	}
	opt.Bold = c.Bold
	if c.Outline != 0 {
		opt.Outline = c.Outline
	}
	opt.TimeOffset = c.TimeOffset
	return opt
}
