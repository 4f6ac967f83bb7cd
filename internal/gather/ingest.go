package gather

import (
	"context"
	"fmt"
	"log/slog"

	"assetsdb/internal/domain"
	"assetsdb/internal/provider"
	"assetsdb/internal/store"
	"assetsdb/internal/util"
)

// Ingestor fetches one bucket at a time from a provider and upserts the
// normalized bars.
type Ingestor struct {
	provider  provider.Provider
	store     store.BarStore
	limiter   *util.RateLimiter
	batchSize int // tickers per provider call; 0 sends the whole bucket
	log       *slog.Logger
}

// NewIngestor creates an Ingestor. limiter may be nil.
func NewIngestor(p provider.Provider, s store.BarStore, limiter *util.RateLimiter, batchSize int, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		provider:  p,
		store:     s,
		limiter:   limiter,
		batchSize: batchSize,
		log:       log.With("component", "ingest", "provider", p.Name()),
	}
}

// Ingest fetches tickers over r and commits the result. Each provider call
// is committed in its own transaction. It returns the number of rows
// written.
func (in *Ingestor) Ingest(ctx context.Context, tickers []string, r DateRange) (int, error) {
	total := 0
	for _, batch := range batches(tickers, in.batchSize) {
		n, err := in.ingestBatch(ctx, batch, r)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (in *Ingestor) ingestBatch(ctx context.Context, tickers []string, r DateRange) (int, error) {
	if in.limiter != nil {
		if err := in.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	resp, err := in.provider.Fetch(ctx, tickers, r.Start, r.End)
	if err != nil {
		return 0, fmt.Errorf("fetching %d tickers from %s: %w", len(tickers), domain.FormatDate(r.Start), err)
	}
	bars, err := provider.Normalize(resp, tickers)
	if err != nil {
		return 0, fmt.Errorf("normalizing response: %w", err)
	}
	if len(bars) == 0 {
		in.log.Debug("no bars returned", "start", domain.FormatDate(r.Start), "tickers", len(tickers))
		return 0, nil
	}

	n, err := in.store.UpsertBars(ctx, bars)
	if err != nil {
		return 0, fmt.Errorf("upserting %d bars: %w", len(bars), err)
	}
	return n, nil
}

// batches splits tickers into groups of at most size; size <= 0 keeps one
// group.
func batches(tickers []string, size int) [][]string {
	if size <= 0 || len(tickers) <= size {
		return [][]string{tickers}
	}
	var out [][]string
	for i := 0; i < len(tickers); i += size {
		out = append(out, tickers[i:min(i+size, len(tickers))])
	}
	return out
}
