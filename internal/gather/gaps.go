package gather

import (
	"context"
	"fmt"
	"sort"
	"time"

	"assetsdb/internal/calendar"
	"assetsdb/internal/domain"
	"assetsdb/internal/store"
)

// ComputeGaps returns, for the given tickers, the buckets of tickers sharing
// the same first missing date. A ticker without history starts at epoch;
// otherwise it starts at the trading day after its last stored bar. Buckets
// starting after the last completed session are dropped. A bucket starting on
// the last completed session is kept: that session has closed and its bar is
// still missing. Buckets are ordered by start date and their tickers sorted.
func ComputeGaps(ctx context.Context, tickers []string, bars store.BarStore, cal calendar.Calendar,
	lastSession calendar.Session, epoch time.Time) ([]domain.Bucket, error) {

	if len(tickers) == 0 {
		return nil, nil
	}

	last, err := bars.LastBarDates(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("reading last bar dates: %w", err)
	}

	epoch = domain.DateOf(epoch)
	next := make(map[string]time.Time) // last date -> next trading day
	groups := make(map[string]*domain.Bucket)

	for _, t := range domain.NewTickerSet(tickers...).Sorted() {
		start := epoch
		if d, ok := last[t]; ok {
			key := domain.FormatDate(d)
			n, seen := next[key]
			if !seen {
				n, err = cal.NextTradingDay(ctx, d)
				if err != nil {
					return nil, fmt.Errorf("next trading day after %s: %w", key, err)
				}
				next[key] = n
			}
			start = n
		}

		if start.After(lastSession.Date) {
			continue
		}

		key := domain.FormatDate(start)
		b, ok := groups[key]
		if !ok {
			b = &domain.Bucket{Start: start}
			groups[key] = b
		}
		b.Tickers = append(b.Tickers, t)
	}

	buckets := make([]domain.Bucket, 0, len(groups))
	for _, b := range groups {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets, nil
}
