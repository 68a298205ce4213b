package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shirayuki/bilisync/internal/config"
)

// ConfigHandler exposes the effective Configuration with secrets redacted
// (SPEC_FULL.md Part D.4 "GET /api/v1/config — effective versioned
// Configuration (secrets redacted)").
type ConfigHandler struct {
	config *config.Config
}

// Register registers the config route.
func (h *ConfigHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getConfig",
		Method:      "GET",
		Path:        "/api/v1/config",
		Summary:     "Get the effective configuration",
		Description: "Bilibili credential fields are redacted.",
		Tags:        []string{"Config"},
	}, h.Get)
}

const redacted = "[redacted]"

// ConfigResponse mirrors config.Config with credential secrets masked.
type ConfigResponse struct {
	Server    config.ServerConfig    `json:"server"`
	Storage   config.StorageConfig   `json:"storage"`
	Logging   config.LoggingConfig   `json:"logging"`
	Bilibili  BilibiliConfigResponse `json:"bilibili"`
	Pipeline  config.PipelineConfig  `json:"pipeline"`
	Scheduler config.SchedulerConfig `json:"scheduler"`
	Downloader config.DownloaderConfig `json:"downloader"`
	Danmaku   config.DanmakuConfig   `json:"danmaku"`
	FFmpeg    config.FFmpegConfig    `json:"ffmpeg"`
	API       config.APIConfig      `json:"api"`
}

// BilibiliConfigResponse redacts the embedded Credential.
type BilibiliConfigResponse struct {
	CredentialSet bool               `json:"credential_set"`
	RateLimit     config.RateLimitConfig `json:"rate_limit"`
	ProxyURL      string             `json:"proxy_url,omitempty"`
	HTTPTimeout   string             `json:"http_timeout"`
}

// GetConfigInput is the input for reading config.
type GetConfigInput struct{}

// GetConfigOutput is the output for reading config.
type GetConfigOutput struct {
	Body ConfigResponse
}

// Get returns the effective configuration with credentials redacted.
func (h *ConfigHandler) Get(ctx context.Context, input *GetConfigInput) (*GetConfigOutput, error) {
	if h.config == nil {
		return nil, huma.Error503ServiceUnavailable("configuration not loaded")
	}
	c := h.config
	proxy := c.Bilibili.ProxyURL
	if proxy != "" {
		proxy = redacted
	}
	return &GetConfigOutput{Body: ConfigResponse{
		Server:  c.Server,
		Storage: c.Storage,
		Logging: c.Logging,
		Bilibili: BilibiliConfigResponse{
			CredentialSet: c.Bilibili.Credential.SESSDATA != "",
			RateLimit:     c.Bilibili.RateLimit,
			ProxyURL:      proxy,
			HTTPTimeout:   c.Bilibili.HTTPTimeout.String(),
		},
		Pipeline:   c.Pipeline,
		Scheduler:  c.Scheduler,
		Downloader: c.Downloader,
		Danmaku:    c.Danmaku,
		FFmpeg:     c.FFmpeg,
		API:        c.API,
	}}, nil
}
