package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"assetsdb/internal/config"
	"assetsdb/internal/util"
)

const defaultConfigPath = "config/assets.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "assets-sync",
	Short: "Keep a local database of US daily stock bars up to date",
	Long: `assets-sync maintains a local store of daily OHLCV bars for a
universe of US tickers built from index constituents, an inclusion list
and the user's picks file. Each run fetches only the missing sessions.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $ASSETS_CONFIG or "+defaultConfigPath+")")
	rootCmd.AddCommand(syncCmd, closeCmd)
}

// loadConfig resolves the config path and installs the configured logger
// as the slog default. A missing default file falls back to env and
// defaults only.
func loadConfig() (*config.Config, *slog.Logger, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("ASSETS_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	return cfg, logger, nil
}
