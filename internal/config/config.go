// Package config provides configuration management for bilisync using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 100
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultBusyTimeout     = 90 * time.Second

	defaultHTTPTimeout        = 60 * time.Second
	defaultRateLimitCount     = 4
	defaultRateLimitInterval  = 1000 // ms

	defaultConcurrencyVideo = 3
	defaultConcurrencyPage  = 2
	defaultRefreshBatchSize = 10
	defaultEnrichBatchSize  = 50
	defaultPersistBatchSize = 10

	defaultVideoNameTemplate = "{{truncate title 120}}"
	defaultPageNameTemplate  = "{{truncate title 120}}"

	defaultDownloadTimeout   = 10 * time.Minute
	defaultDownloadChunkSize = 1024 * 1024 // 1MB

	defaultDanmakuDuration        = 15
	defaultDanmakuFontSize        = 25
	defaultDanmakuWidthRatio      = 1.2
	defaultDanmakuHorizontalGap   = 20
	defaultDanmakuLaneSize        = 32
	defaultDanmakuFloatPercentage = 0.5
	defaultDanmakuBottomPerc      = 0.5
	defaultDanmakuOpacity         = 76
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Bilibili  BilibiliConfig  `mapstructure:"bilibili"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Downloader DownloaderConfig `mapstructure:"downloader"`
	Danmaku   DanmakuConfig   `mapstructure:"danmaku"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	API       APIConfig       `mapstructure:"api"`
}

// ServerConfig holds HTTP server configuration for the supplemented
// read/control API (SPEC_FULL.md Part D.4, E.2).
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration. Spec §6 requires a
// 90s busy timeout and up to 100 connections for the SQLite driver; Postgres
// and MySQL use these same pool knobs directly.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"` // sqlite only
	LogLevel        string        `mapstructure:"log_level"`    // silent, error, warn, info
}

// StorageConfig holds the filesystem roots bilisync writes under (spec §6).
// Only the downloader's scratch files under the temp dir go through a
// storage.Sandbox; covers, NFOs, subtitles and the final muxed video are
// written directly.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	OutputDir string `mapstructure:"output_dir"`
	TempDir   string `mapstructure:"temp_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// BilibiliConfig holds remote-client configuration: credential bootstrap,
// rate limiting and the optional upstream proxy (spec §4.1, SPEC_FULL.md
// Part D.5).
type BilibiliConfig struct {
	Credential Credential      `mapstructure:"credential"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	ProxyURL   string          `mapstructure:"proxy_url"`
	HTTPTimeout time.Duration  `mapstructure:"http_timeout"`
}

// Credential mirrors internal/bilibili.Credential so it can be unmarshaled
// straight from Viper without importing internal/bilibili here (avoids an
// import cycle: internal/bilibili does not, and must not, depend on
// internal/config).
type Credential struct {
	SESSDATA    string `mapstructure:"sessdata"`
	BiliJCT     string `mapstructure:"bili_jct"`
	Buvid3      string `mapstructure:"buvid3"`
	DedeUserID  string `mapstructure:"dedeuserid"`
	ACTimeValue string `mapstructure:"ac_time_value"`
}

// RateLimitConfig mirrors internal/bilibili.RateLimitConfig, see that type
// for the leaky-bucket semantics (spec §4.1).
type RateLimitConfig struct {
	Limit      int `mapstructure:"limit"`
	IntervalMS int `mapstructure:"interval_ms"`
}

// PipelineConfig bounds the refresh/enrich/download stage fan-out and batch
// sizes (spec §4.3).
type PipelineConfig struct {
	ConcurrencyVideo int `mapstructure:"concurrency_video"`
	ConcurrencyPage  int `mapstructure:"concurrency_page"`
	RefreshBatchSize int `mapstructure:"refresh_batch_size"`
	EnrichBatchSize  int `mapstructure:"enrich_batch_size"`
	PersistBatchSize int `mapstructure:"persist_batch_size"`
	NFOTimeType      string `mapstructure:"nfo_time_type"` // fav_time, pub_time

	PathTemplates PathTemplatesConfig `mapstructure:"path_templates"`
}

// PathTemplatesConfig carries the two Handlebars-compatible templates a user
// may override to control the on-disk layout (spec §4.10): video_name names
// the video's own directory, page_name names each page's file stem (the
// " - S01E%02d" episode suffix for multi-page videos is appended by the
// pipeline, not part of the template itself).
type PathTemplatesConfig struct {
	VideoName string `mapstructure:"video_name"`
	PageName  string `mapstructure:"page_name"`
}

// SchedulerConfig holds the single global Trigger (spec §4.8, §9 "sum
// type"): either an interval in seconds or a 6-field cron expression. Cron
// takes precedence when both are set.
type SchedulerConfig struct {
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	Cron            string `mapstructure:"cron"`
}

// DownloaderConfig tunes the chunked HTTP fetch (spec §4.7).
type DownloaderConfig struct {
	ChunkSize ByteSize      `mapstructure:"chunk_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DanmakuConfig is the user-tunable DanmakuOption of spec §4.5.
type DanmakuConfig struct {
	Duration        float64 `mapstructure:"duration"`
	Font            string  `mapstructure:"font"`
	FontSize        float64 `mapstructure:"font_size"`
	WidthRatio      float64 `mapstructure:"width_ratio"`
	HorizontalGap   float64 `mapstructure:"horizontal_gap"`
	LaneSize        float64 `mapstructure:"lane_size"`
	FloatPercentage float64 `mapstructure:"float_percentage"`
	BottomPercentage float64 `mapstructure:"bottom_percentage"`
	Opacity         int     `mapstructure:"opacity"`
	Bold            bool    `mapstructure:"bold"`
	Outline         float64 `mapstructure:"outline"`
	TimeOffset      float64 `mapstructure:"time_offset"`
}

// FFmpegConfig holds FFmpeg binary configuration used by the copy-mux step
// (spec §4.7). bilisync never transcodes (spec Non-goals), so there is no
// hardware-acceleration or probe-path knob here.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = auto-detect on PATH)
}

// APIConfig holds settings for the supplemented read/control HTTP surface
// (SPEC_FULL.md Part D.4, E.2) — explicitly out of the core's scope per
// spec §1, so it carries only what's needed to bind and rate-limit it.
type APIConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	RateLimitPerMin  int  `mapstructure:"rate_limit_per_min"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with BILISYNC_ and use underscores for
// nesting. Example: BILISYNC_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/bilisync")
		v.AddConfigPath("$HOME/.bilisync")
	}

	// Environment variable settings
	v.SetEnvPrefix("BILISYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data.sqlite")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.busy_timeout", defaultBusyTimeout)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "output")
	v.SetDefault("storage.temp_dir", "temp")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Bilibili defaults
	v.SetDefault("bilibili.rate_limit.limit", defaultRateLimitCount)
	v.SetDefault("bilibili.rate_limit.interval_ms", defaultRateLimitInterval)
	v.SetDefault("bilibili.proxy_url", "")
	v.SetDefault("bilibili.http_timeout", defaultHTTPTimeout)

	// Pipeline defaults
	v.SetDefault("pipeline.concurrency_video", defaultConcurrencyVideo)
	v.SetDefault("pipeline.concurrency_page", defaultConcurrencyPage)
	v.SetDefault("pipeline.refresh_batch_size", defaultRefreshBatchSize)
	v.SetDefault("pipeline.enrich_batch_size", defaultEnrichBatchSize)
	v.SetDefault("pipeline.persist_batch_size", defaultPersistBatchSize)
	v.SetDefault("pipeline.nfo_time_type", "fav_time")
	v.SetDefault("pipeline.path_templates.video_name", defaultVideoNameTemplate)
	v.SetDefault("pipeline.path_templates.page_name", defaultPageNameTemplate)

	// Scheduler defaults: no default trigger — the operator must configure
	// an interval or cron expression before the first cycle can run.
	v.SetDefault("scheduler.interval_seconds", 0)
	v.SetDefault("scheduler.cron", "")

	// Downloader defaults
	v.SetDefault("downloader.chunk_size", defaultDownloadChunkSize)
	v.SetDefault("downloader.timeout", defaultDownloadTimeout)

	// Danmaku defaults
	v.SetDefault("danmaku.duration", defaultDanmakuDuration)
	v.SetDefault("danmaku.font", "sans-serif")
	v.SetDefault("danmaku.font_size", defaultDanmakuFontSize)
	v.SetDefault("danmaku.width_ratio", defaultDanmakuWidthRatio)
	v.SetDefault("danmaku.horizontal_gap", defaultDanmakuHorizontalGap)
	v.SetDefault("danmaku.lane_size", defaultDanmakuLaneSize)
	v.SetDefault("danmaku.float_percentage", defaultDanmakuFloatPercentage)
	v.SetDefault("danmaku.bottom_percentage", defaultDanmakuBottomPerc)
	v.SetDefault("danmaku.opacity", defaultDanmakuOpacity)
	v.SetDefault("danmaku.bold", false)
	v.SetDefault("danmaku.outline", 0.0)
	v.SetDefault("danmaku.time_offset", 0.0)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.rate_limit_per_min", 120)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Pipeline validation
	if c.Pipeline.ConcurrencyVideo < 1 {
		return fmt.Errorf("pipeline.concurrency_video must be at least 1")
	}
	if c.Pipeline.ConcurrencyPage < 1 {
		return fmt.Errorf("pipeline.concurrency_page must be at least 1")
	}
	validTimeTypes := map[string]bool{"fav_time": true, "pub_time": true}
	if !validTimeTypes[c.Pipeline.NFOTimeType] {
		return fmt.Errorf("pipeline.nfo_time_type must be one of: fav_time, pub_time")
	}
	if c.Pipeline.PathTemplates.VideoName == "" {
		return fmt.Errorf("pipeline.path_templates.video_name is required")
	}
	if c.Pipeline.PathTemplates.PageName == "" {
		return fmt.Errorf("pipeline.path_templates.page_name is required")
	}

	// Scheduler validation: a trigger isn't required at config-load time
	// (a source-less install may still boot to configure itself via the
	// API), only before the first cycle runs — that check lives in
	// internal/scheduler.

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OutputPath returns the full path to the output directory.
func (c *StorageConfig) OutputPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.OutputDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}
