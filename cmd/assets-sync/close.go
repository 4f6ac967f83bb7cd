package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"assetsdb/internal/analytics"
	"assetsdb/internal/app"
)

var (
	closeOut     string
	closePublish bool
)

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Export the date x ticker close matrix as CSV",
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

		m, err := analytics.ProjectClose(ctx, st)
		if err != nil {
			return err
		}

		if closePublish {
			pub, err := app.NewPublisher(cfg, logger)
			if err != nil {
				return err
			}
			if _, err := pub.Publish(ctx, m); err != nil {
				return err
			}
			if closeOut == "" {
				return nil
			}
		}

		var w io.Writer = cmd.OutOrStdout()
		if closeOut != "" {
			f, err := os.Create(closeOut)
			if err != nil {
				return fmt.Errorf("creating %s: %w", closeOut, err)
			}
			defer f.Close()
			w = f
		}
		if err := m.WriteCSV(w); err != nil {
			return err
		}
		logger.Info("close matrix written", "dates", len(m.Dates), "tickers", len(m.Tickers), "out", closeOut)
		return nil
	},
}

func init() {
	closeCmd.Flags().StringVarP(&closeOut, "out", "o", "", "output file (default stdout)")
	closeCmd.Flags().BoolVar(&closePublish, "publish", false, "upload the CSV to the configured export bucket instead of stdout")
}
