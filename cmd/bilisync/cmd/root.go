// Package cmd implements the CLI commands for bilisync.
package cmd

import (
	"fmt"

	"github.com/shirayuki/bilisync/internal/config"
	"github.com/shirayuki/bilisync/internal/observability"
	"github.com/shirayuki/bilisync/internal/version"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = observability.NewLogger(config.LoggingConfig{Level: "info", Format: "text"})
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "bilisync",
	Short:   "Mirror Bilibili video content into a local media library",
	Version: version.Short(),
	Long: `bilisync is a long-running engine that mirrors Bilibili video content
(favorite lists, uploader spaces, series, watch-later) into a local
Jellyfin/Emby/Kodi-compatible media library: video files, covers, NFO
metadata, danmaku overlays, and subtitles, kept up to date on a schedule.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		logger = observability.NewLogger(cfg.Logging)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default search: ./config.yaml, /etc/bilisync, $HOME/.bilisync)")
}
