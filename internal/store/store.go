// Package store defines storage interfaces for persisting and retrieving
// daily bars, the ticker-universe audit log, and the user's picks with their
// history.
package store

import (
	"context"
	"sort"
	"time"

	"assetsdb/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bars keyed by (date, ticker).
type BarStore interface {
	// UpsertBars writes bars atomically. An existing (date, ticker) row is
	// overwritten. It returns the number of rows written.
	UpsertBars(ctx context.Context, bars []domain.Bar) (int, error)

	// LastBarDates returns max(date) for each of the given tickers that has
	// at least one stored bar.
	LastBarDates(ctx context.Context, tickers []string) (map[string]time.Time, error)

	// ListTickers returns every distinct ticker with stored bars.
	ListTickers(ctx context.Context) ([]string, error)

	// ReadBars returns bars for ticker within [start, end] ordered by date.
	ReadBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error)

	// ReadCloses returns every (date, ticker, close) ordered by date then ticker.
	ReadCloses(ctx context.Context) ([]domain.ClosePoint, error)
}

// UniverseStore removes tickers from the stored universe and records each
// removal in an append-only log.
type UniverseStore interface {
	// DeleteTickers deletes all bars of the given tickers that are present
	// in storage, logging one entry per deleted ticker stamped with at. It
	// returns the tickers that were actually deleted.
	DeleteTickers(ctx context.Context, tickers []string, at time.Time) ([]string, error)

	// TickerLog returns the audit log in insertion order.
	TickerLog(ctx context.Context) ([]domain.TickerLogEntry, error)
}

// PickStore persists the user's picks and their append-only history.
type PickStore interface {
	// ActivePicks returns tickers whose pick record has no removal date.
	ActivePicks(ctx context.Context) ([]string, error)

	// Pick returns the record for ticker, if any.
	Pick(ctx context.Context, ticker string) (domain.PickRecord, bool, error)

	// ApplyPickEvents applies Added/Removed transitions to the pick records
	// and appends them to the history in one transaction.
	ApplyPickEvents(ctx context.Context, events []domain.PickEvent) error

	// PickHistory returns the events for ticker in insertion order. An empty
	// ticker returns the whole history.
	PickHistory(ctx context.Context, ticker string) ([]domain.PickEvent, error)
}

// Store is the full persistence backend used by a sync run.
type Store interface {
	BarStore
	UniverseStore
	PickStore

	// Migrate creates missing tables and indexes.
	Migrate(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// chunkSize bounds the number of bound parameters in one IN (...) clause.
const chunkSize = 500

// dedupBars collapses bars sharing a (date, ticker) key, keeping the last
// occurrence, and returns them ordered by ticker then date.
func dedupBars(bars []domain.Bar) []domain.Bar {
	seen := make(map[domain.BarKey]int, len(bars))
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		b.Date = domain.DateOf(b.Date)
		k := b.Key()
		if i, ok := seen[k]; ok {
			out[i] = b
			continue
		}
		seen[k] = len(out)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// chunks splits s into slices of at most n elements.
func chunks(s []string, n int) [][]string {
	var out [][]string
	for i := 0; i < len(s); i += n {
		out = append(out, s[i:min(i+n, len(s))])
	}
	return out
}

// uniqueStrings returns s without duplicates, sorted.
func uniqueStrings(s []string) []string {
	set := make(map[string]struct{}, len(s))
	for _, v := range s {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
