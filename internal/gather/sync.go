package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"assetsdb/internal/calendar"
	"assetsdb/internal/domain"
	"assetsdb/internal/picks"
	"assetsdb/internal/store"
	"assetsdb/internal/universe"
)

// Compile-time interface check.
var _ Gatherer = (*DailySync)(nil)

// Summary describes the outcome of one sync run.
type Summary struct {
	Tickers       int
	Buckets       int
	Rows          int
	FailedBuckets int
	PickEvents    int
	Purged        []string
	LastSession   time.Time
}

// SyncOptions tunes a DailySync.
type SyncOptions struct {
	// Epoch is the first date fetched for a ticker without history.
	Epoch time.Time
	// StateDir holds the run lock and the .last-completed marker.
	StateDir string
	// StaleLockAfter replaces a lock file older than this; zero never does.
	StaleLockAfter time.Duration
	// Now is the clock; nil uses time.Now.
	Now func() time.Time
}

// DailySync brings stored daily bars up to the last completed session for
// the resolved universe and then reconciles the picks history.
type DailySync struct {
	cal      calendar.Calendar
	resolver *universe.Resolver
	bars     store.BarStore
	ingestor *Ingestor
	tracker  *picks.Tracker
	opts     SyncOptions
	log      *slog.Logger
}

// NewDailySync wires the components of a sync run.
func NewDailySync(cal calendar.Calendar, resolver *universe.Resolver, bars store.BarStore,
	ingestor *Ingestor, tracker *picks.Tracker, opts SyncOptions, log *slog.Logger) *DailySync {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &DailySync{
		cal:      cal,
		resolver: resolver,
		bars:     bars,
		ingestor: ingestor,
		tracker:  tracker,
		opts:     opts,
		log:      log.With("gatherer", "daily-sync"),
	}
}

// Name returns the gatherer identifier.
func (s *DailySync) Name() string { return "daily-sync" }

// Run performs one sync and discards the summary.
func (s *DailySync) Run(ctx context.Context) error {
	_, err := s.Sync(ctx)
	return err
}

// Sync runs resolve, gap calculation, bucketed ingestion and the picks
// tracker under the run lock. Bucket failures are logged and counted but do
// not fail the run.
func (s *DailySync) Sync(ctx context.Context) (Summary, error) {
	var sum Summary
	now := s.opts.Now()

	lock, err := acquireRunLock(s.opts.StateDir, s.opts.StaleLockAfter, now)
	if err != nil {
		return sum, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.log.Warn("releasing run lock", "error", err)
		}
	}()

	rc, err := calendar.NewRunContext(ctx, s.cal, now)
	if err != nil {
		return sum, fmt.Errorf("building run context: %w", err)
	}
	sum.LastSession = rc.LastSession.Date
	lastSession := domain.FormatDate(rc.LastSession.Date)

	s.log.Info("starting sync",
		"now", now.Format(time.RFC3339),
		"lastSession", lastSession,
		"market", rc.Status,
		"previousCompleted", lock.LastCompleted(),
	)

	u, err := s.resolver.Resolve(ctx, rc)
	if err != nil {
		return sum, fmt.Errorf("resolving universe: %w", err)
	}
	sum.Tickers = len(u.Tickers)
	sum.Purged = u.Purged

	if len(u.Tickers) == 0 {
		s.log.Info("empty working set, nothing to fetch")
	} else if err := s.fillGaps(ctx, u.Tickers, rc, &sum); err != nil {
		return sum, err
	}

	if u.Picks != nil {
		events, err := s.tracker.Sync(ctx, u.Picks.Tickers, u.Picks.Time)
		if err != nil {
			return sum, fmt.Errorf("tracking picks: %w", err)
		}
		sum.PickEvents = len(events)
	}

	if sum.FailedBuckets == 0 {
		if err := lock.MarkCompleted(lastSession); err != nil {
			s.log.Warn("writing completion marker", "error", err)
		}
	}

	s.log.Info("sync complete",
		"lastSession", lastSession,
		"tickers", sum.Tickers,
		"buckets", sum.Buckets,
		"rows", sum.Rows,
		"failed", sum.FailedBuckets,
		"pickEvents", sum.PickEvents,
		"purged", len(sum.Purged),
	)
	return sum, nil
}

// fillGaps computes the missing ranges of tickers and ingests them one
// bucket at a time. A failed bucket is counted in sum and skipped; only
// cancellation or a gap computation error stops the loop.
func (s *DailySync) fillGaps(ctx context.Context, tickers []string, rc calendar.RunContext, sum *Summary) error {
	buckets, err := ComputeGaps(ctx, tickers, s.bars, rc.Calendar, rc.LastSession, s.opts.Epoch)
	if err != nil {
		return fmt.Errorf("computing gaps: %w", err)
	}
	sum.Buckets = len(buckets)

	end := rc.FetchEnd()
	for i, b := range buckets {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		n, err := s.ingestor.Ingest(ctx, b.Tickers, DateRange{Start: b.Start, End: end})
		sum.Rows += n
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			sum.FailedBuckets++
			s.log.Error("bucket failed",
				"bucket", i+1,
				"start", domain.FormatDate(b.Start),
				"tickers", len(b.Tickers),
				"error", err,
			)
			continue
		}
		s.log.Info("bucket done",
			"bucket", fmt.Sprintf("%d/%d", i+1, len(buckets)),
			"start", domain.FormatDate(b.Start),
			"tickers", len(b.Tickers),
			"rows", n,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}
	return nil
}
