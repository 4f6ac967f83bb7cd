// Package app wires configuration into the concrete components of a run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"assetsdb/internal/analytics"
	"assetsdb/internal/calendar"
	"assetsdb/internal/config"
	"assetsdb/internal/gather"
	"assetsdb/internal/picks"
	"assetsdb/internal/provider"
	"assetsdb/internal/store"
	"assetsdb/internal/universe"
	"assetsdb/internal/util"
)

// OpenStore opens the configured backend and migrates its schema.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite":
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
		s, err = store.NewSQLiteStore(cfg.Storage.SQLitePath)
	case "postgres":
		s, err = store.NewPostgresStore(ctx, cfg.Storage.PostgresURL, cfg.Storage.Timescale)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s. Options: sqlite, postgres", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	slog.Info("wire", "store", cfg.Storage.Driver)
	return s, nil
}

// NewCalendar builds the trading calendar named by sync.calendar.
func NewCalendar(cfg *config.Config) (calendar.Calendar, error) {
	switch cfg.Sync.Calendar {
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, errors.New("alpaca calendar needs ALPACA_API_KEY and ALPACA_API_SECRET")
		}
		src := calendar.NewAlpacaSessions(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		return calendar.NewTradingCalendar(src), nil
	case "weekday":
		holidays, err := cfg.Sync.HolidayDates()
		if err != nil {
			return nil, err
		}
		return calendar.NewTradingCalendar(calendar.NewWeekdaySessions(holidays...)), nil
	default:
		return nil, fmt.Errorf("unsupported calendar: %s. Options: alpaca, weekday", cfg.Sync.Calendar)
	}
}

// NewProvider builds the configured market-data provider and the rate
// limiter the ingestor should apply per call. Polygon paces its own
// per-ticker calls, so its ingestor limiter is nil.
func NewProvider(cfg *config.Config) (provider.Provider, *util.RateLimiter, error) {
	limiter := util.NewRateLimiter(cfg.Provider.RateLimitPerMin)
	switch strings.ToLower(cfg.Provider.Name) {
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, nil, errors.New("ALPACA_API_KEY and ALPACA_API_SECRET not set")
		}
		p := provider.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
			cfg.Alpaca.DataURL, cfg.Provider.Feed, cfg.Provider.Adjustment)
		return p, limiter, nil
	case "polygon":
		if cfg.Polygon.APIKey == "" {
			return nil, nil, errors.New("POLYGON_API_KEY not set")
		}
		return provider.NewPolygonProvider(cfg.Polygon.APIKey, cfg.Polygon.Adjusted, limiter), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported data provider: %s. Options: alpaca, polygon", cfg.Provider.Name)
	}
}

// IndexSources returns the configured index pages, or the defaults.
func IndexSources(cfg *config.Config) []universe.IndexSource {
	if len(cfg.Universe.Indexes) == 0 {
		return universe.DefaultIndexSources()
	}
	out := make([]universe.IndexSource, 0, len(cfg.Universe.Indexes))
	for _, idx := range cfg.Universe.Indexes {
		cacheFile := idx.CacheFile
		if cacheFile == "" {
			cacheFile = idx.Name + ".parquet"
		}
		out = append(out, universe.IndexSource{
			Name:      idx.Name,
			URL:       idx.URL,
			Column:    idx.Column,
			CacheFile: cacheFile,
		})
	}
	return out
}

// NewDailySync assembles a DailySync over st.
func NewDailySync(cfg *config.Config, st store.Store, log *slog.Logger) (*gather.DailySync, error) {
	cal, err := NewCalendar(cfg)
	if err != nil {
		return nil, err
	}
	p, limiter, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	epoch, err := cfg.Sync.Epoch()
	if err != nil {
		return nil, err
	}

	resolver := universe.NewResolver(universe.Config{
		InclusionFile: cfg.Universe.InclusionFile,
		ExclusionFile: cfg.Universe.ExclusionFile,
		PicksFile:     cfg.Universe.PicksFile,
		CacheDir:      cfg.Universe.CacheDir,
		Indexes:       IndexSources(cfg),
		Refresh:       universe.RefreshPolicy{MaxAge: cfg.Universe.MaxAge()},
	}, st, universe.NewWikipediaFetcher(), log)

	log.Info("wire", "provider", p.Name(), "calendar", cfg.Sync.Calendar, "epoch", cfg.Sync.StartDate)

	return gather.NewDailySync(
		cal,
		resolver,
		st,
		gather.NewIngestor(p, st, limiter, cfg.Provider.BatchSize, log),
		picks.NewTracker(st, log),
		gather.SyncOptions{
			Epoch:          epoch,
			StateDir:       cfg.Sync.StateDir,
			StaleLockAfter: cfg.Sync.LockStaleAfter(),
		},
		log,
	), nil
}

// NewPublisher builds the close-matrix publisher from the export section.
func NewPublisher(cfg *config.Config, log *slog.Logger) (*analytics.Publisher, error) {
	if !cfg.Export.Enabled() {
		return nil, errors.New("export.endpoint and export.bucket are not configured")
	}
	e := cfg.Export
	return analytics.NewPublisher(analytics.PublishOptions{
		Endpoint:        e.Endpoint,
		AccessKeyID:     e.AccessKeyID,
		SecretAccessKey: e.SecretAccessKey,
		Bucket:          e.Bucket,
		Prefix:          e.Prefix,
		Region:          e.Region,
		Secure:          e.Secure,
	}, log)
}
