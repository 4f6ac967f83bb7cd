package universe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"assetsdb/internal/domain"
	"assetsdb/internal/store"
)

// IndexMember is one cached index constituent.
type IndexMember struct {
	Ticker    string `parquet:"ticker"`
	FetchedAt int64  `parquet:"fetched_at,timestamp(millisecond)"` // Unix ms
}

// RefreshPolicy decides when a readable cache is refetched. A zero MaxAge
// keeps a cache forever once written.
type RefreshPolicy struct {
	MaxAge time.Duration
}

// Stale reports whether a cache fetched at fetchedAt must be refreshed at now.
func (p RefreshPolicy) Stale(fetchedAt, now time.Time) bool {
	return p.MaxAge > 0 && now.Sub(fetchedAt) >= p.MaxAge
}

// LoadOrRefresh returns the canonical tickers cached at path, refreshing the
// cache with fetch when it is missing, unreadable, empty or stale. When the
// live fetch fails a stale cache is still served.
func LoadOrRefresh(ctx context.Context, path string, policy RefreshPolicy, now time.Time,
	fetch func(context.Context) ([]string, error), log *slog.Logger) ([]string, error) {

	cached, cacheErr := store.ReadParquetFile[IndexMember](path)
	if cacheErr == nil && len(cached) == 0 {
		cacheErr = errors.New("cache is empty")
	}
	if cacheErr == nil && !policy.Stale(fetchedAt(cached), now) {
		return memberTickers(cached), nil
	}

	symbols, err := fetch(ctx)
	if err == nil && len(symbols) == 0 {
		err = errors.New("no constituents returned")
	}
	if err != nil {
		if cacheErr == nil {
			log.Warn("index refresh failed, using stale cache", "path", path, "error", err)
			return memberTickers(cached), nil
		}
		return nil, fmt.Errorf("no usable cache (%v) and live fetch failed: %w", cacheErr, err)
	}

	tickers := domain.NewTickerSet(symbols...).Sorted()
	members := make([]IndexMember, len(tickers))
	for i, t := range tickers {
		members[i] = IndexMember{Ticker: t, FetchedAt: now.UnixMilli()}
	}
	if err := store.WriteParquetFile(path, members); err != nil {
		log.Warn("writing index cache failed", "path", path, "error", err)
	}
	return tickers, nil
}

// fetchedAt is the oldest fetch time in the cache.
func fetchedAt(members []IndexMember) time.Time {
	oldest := members[0].FetchedAt
	for _, m := range members[1:] {
		oldest = min(oldest, m.FetchedAt)
	}
	return time.UnixMilli(oldest)
}

func memberTickers(members []IndexMember) []string {
	set := domain.NewTickerSet()
	for _, m := range members {
		set.Add(m.Ticker)
	}
	return set.Sorted()
}
