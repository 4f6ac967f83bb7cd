package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"assetsdb/internal/app"
	"assetsdb/internal/gather"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch missing daily bars up to the last completed session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		st, err := app.OpenStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ds, err := app.NewDailySync(cfg, st, logger)
		if err != nil {
			return err
		}
		return runGatherer(ctx, ds, logger)
	},
}

// runGatherer runs g once and logs how long it took.
func runGatherer(ctx context.Context, g gather.Gatherer, logger *slog.Logger) error {
	start := time.Now()
	logger.Info("starting gatherer", "gatherer", g.Name())
	if err := g.Run(ctx); err != nil {
		logger.Error("gatherer failed", "gatherer", g.Name(), "error", err,
			"elapsed", time.Since(start).Round(time.Millisecond))
		return err
	}
	logger.Info("gatherer finished", "gatherer", g.Name(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
