package picks

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"assetsdb/internal/domain"
	"assetsdb/internal/store"
)

func TestDiff(t *testing.T) {
	added, removed := Diff(domain.NewTickerSet("B", "C"), domain.NewTickerSet("A", "B"))
	if !reflect.DeepEqual(added, []string{"C"}) {
		t.Errorf("added = %v, want [C]", added)
	}
	if !reflect.DeepEqual(removed, []string{"A"}) {
		t.Errorf("removed = %v, want [A]", removed)
	}

	added, removed = Diff(domain.NewTickerSet("A"), domain.NewTickerSet("A"))
	if added != nil || removed != nil {
		t.Errorf("identical sets: added %v, removed %v", added, removed)
	}
}

func newTracker(t *testing.T) (*Tracker, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "assets.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewTracker(s, slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func TestTrackerSync(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t1 := time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	events, err := tr.Sync(ctx, domain.NewTickerSet("A", "B"), t1)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("first sync produced %d events, want 2", len(events))
	}

	events, err = tr.Sync(ctx, domain.NewTickerSet("B", "C"), t2)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	want := []domain.PickEvent{
		{Ticker: "C", Action: domain.PickAdded, Time: t2},
		{Ticker: "A", Action: domain.PickRemoved, Time: t2},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}

	active, _ := s.ActivePicks(ctx)
	if !reflect.DeepEqual(active, []string{"B", "C"}) {
		t.Errorf("active = %v, want [B C]", active)
	}
	a, _, _ := s.Pick(ctx, "A")
	if a.DateRemoved == nil || !a.DateRemoved.Equal(t2) {
		t.Errorf("A record = %+v, want removed at %v", a, t2)
	}
	b, _, _ := s.Pick(ctx, "B")
	if !b.DateAdded.Equal(t1) {
		t.Errorf("B DateAdded = %v, want %v", b.DateAdded, t1)
	}
}

func TestTrackerSyncIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	snap := domain.NewTickerSet("AAPL", "MSFT")
	at := time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC)

	if _, err := tr.Sync(ctx, snap, at); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	events, err := tr.Sync(ctx, snap, at)
	if err != nil {
		t.Fatalf("Sync (second): %v", err)
	}
	if len(events) != 0 {
		t.Errorf("unchanged snapshot produced %v", events)
	}
	hist, _ := s.PickHistory(ctx, "")
	if len(hist) != 2 {
		t.Errorf("history has %d events, want 2", len(hist))
	}
}

func TestTrackerSyncReAdd(t *testing.T) {
	ctx := context.Background()
	tr, s := newTracker(t)
	t0 := time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC)

	tr.Sync(ctx, domain.NewTickerSet("AAPL"), t0)
	tr.Sync(ctx, domain.NewTickerSet(), t0.Add(time.Hour))
	if _, err := tr.Sync(ctx, domain.NewTickerSet("AAPL"), t0.Add(2*time.Hour)); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	rec, ok, _ := s.Pick(ctx, "AAPL")
	if !ok || !rec.Active() {
		t.Errorf("AAPL = %+v, want active", rec)
	}
	hist, _ := s.PickHistory(ctx, "AAPL")
	if len(hist) != 3 {
		t.Errorf("history has %d events, want 3", len(hist))
	}
}
