// Package picks keeps the stored picks in step with the latest picks
// snapshot and records every addition and removal.
package picks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"assetsdb/internal/domain"
	"assetsdb/internal/store"
)

// Diff returns the tickers in current but not active (added) and in active
// but not current (removed), both sorted.
func Diff(current, active domain.TickerSet) (added, removed []string) {
	for t := range current {
		if _, ok := active[t]; !ok {
			added = append(added, t)
		}
	}
	for t := range active {
		if _, ok := current[t]; !ok {
			removed = append(removed, t)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// Tracker applies snapshot differences to a PickStore.
type Tracker struct {
	store store.PickStore
	log   *slog.Logger
}

// NewTracker creates a Tracker writing to s.
func NewTracker(s store.PickStore, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{store: s, log: log.With("component", "picks")}
}

// Sync compares current with the active picks and applies one Added event
// per new ticker and one Removed event per dropped ticker, all stamped with
// eventTime. An unchanged snapshot produces no events.
func (t *Tracker) Sync(ctx context.Context, current domain.TickerSet, eventTime time.Time) ([]domain.PickEvent, error) {
	activeList, err := t.store.ActivePicks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active picks: %w", err)
	}

	added, removed := Diff(current, domain.NewTickerSet(activeList...))
	if len(added) == 0 && len(removed) == 0 {
		return nil, nil
	}

	events := make([]domain.PickEvent, 0, len(added)+len(removed))
	for _, tk := range added {
		events = append(events, domain.PickEvent{Ticker: tk, Action: domain.PickAdded, Time: eventTime})
	}
	for _, tk := range removed {
		events = append(events, domain.PickEvent{Ticker: tk, Action: domain.PickRemoved, Time: eventTime})
	}

	if err := t.store.ApplyPickEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("applying pick events: %w", err)
	}
	t.log.Info("picks updated", "added", added, "removed", removed)
	return events, nil
}
