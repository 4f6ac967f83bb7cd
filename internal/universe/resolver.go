package universe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"assetsdb/internal/calendar"
	"assetsdb/internal/domain"
)

// Store is the slice of storage the resolver reads and prunes.
type Store interface {
	ListTickers(ctx context.Context) ([]string, error)
	DeleteTickers(ctx context.Context, tickers []string, at time.Time) ([]string, error)
}

// Config locates the resolver's inputs.
type Config struct {
	InclusionFile string
	ExclusionFile string
	PicksFile     string
	CacheDir      string
	Indexes       []IndexSource
	Refresh       RefreshPolicy
}

// Universe is the outcome of resolving one run's tickers.
type Universe struct {
	Tickers  []string       // working set, sorted
	Picks    *PicksSnapshot // nil when no snapshot could be read
	Excluded []string       // canonical exclusion list, sorted
	Purged   []string       // excluded tickers whose bars were deleted
}

// Resolver builds the working set and removes excluded tickers from storage.
type Resolver struct {
	cfg     Config
	store   Store
	fetcher IndexFetcher
	log     *slog.Logger
}

// NewResolver creates a Resolver. A nil fetcher disables live index
// refreshes; cached constituents are still read.
func NewResolver(cfg Config, s Store, fetcher IndexFetcher, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		cfg:     cfg,
		store:   s,
		fetcher: fetcher,
		log:     log.With("component", "universe"),
	}
}

// Resolve computes (inclusion ∪ indexes ∪ stored ∪ picks) minus exclusions.
// Excluded tickers with stored bars are deleted and logged first.
func (r *Resolver) Resolve(ctx context.Context, rc calendar.RunContext) (*Universe, error) {
	excluded := LoadTickerList(r.cfg.ExclusionFile, r.log)

	purged, err := r.store.DeleteTickers(ctx, excluded.Sorted(), rc.Now)
	if err != nil {
		return nil, fmt.Errorf("removing excluded tickers: %w", err)
	}
	if len(purged) > 0 {
		r.log.Info("removed excluded tickers", "tickers", purged)
	}

	set := LoadTickerList(r.cfg.InclusionFile, r.log)
	set.Union(r.indexTickers(ctx, rc.Now))

	stored, err := r.store.ListTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stored tickers: %w", err)
	}
	set.Add(stored...)

	picks := r.readPicks()
	if picks != nil {
		set.Union(picks.Tickers)
	}

	for t := range excluded {
		delete(set, t)
	}

	u := &Universe{
		Tickers:  set.Sorted(),
		Picks:    picks,
		Excluded: excluded.Sorted(),
		Purged:   purged,
	}
	r.log.Info("resolved universe",
		"tickers", len(u.Tickers),
		"excluded", len(u.Excluded),
		"picks", picks != nil,
	)
	return u, nil
}

// indexTickers unions every index's constituents, warning on sources that
// are unavailable.
func (r *Resolver) indexTickers(ctx context.Context, now time.Time) domain.TickerSet {
	set := domain.NewTickerSet()
	for _, src := range r.cfg.Indexes {
		fetch := func(ctx context.Context) ([]string, error) {
			if r.fetcher == nil {
				return nil, errors.New("live index fetch disabled")
			}
			return r.fetcher.FetchIndex(ctx, src)
		}
		path := filepath.Join(r.cfg.CacheDir, src.CacheFile)
		tickers, err := LoadOrRefresh(ctx, path, r.cfg.Refresh, now, fetch, r.log)
		if err != nil {
			r.log.Warn("index unavailable", "index", src.Name, "error", err)
			continue
		}
		r.log.Debug("loaded index", "index", src.Name, "tickers", len(tickers))
		set.Add(tickers...)
	}
	return set
}

func (r *Resolver) readPicks() *PicksSnapshot {
	if r.cfg.PicksFile == "" {
		return nil
	}
	snap, err := ReadPicksSnapshot(r.cfg.PicksFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Warn("picks file not found, skipping picks", "path", r.cfg.PicksFile)
		} else {
			r.log.Warn("picks file unreadable, skipping picks", "path", r.cfg.PicksFile, "error", err)
		}
		return nil
	}
	return snap
}
