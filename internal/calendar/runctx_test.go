package calendar

import (
	"context"
	"testing"
	"time"

	"assetsdb/internal/domain"
)

func TestNewRunContext(t *testing.T) {
	cal := newTestCalendar()
	ctx := context.Background()

	// Tuesday 2024-06-04 11:00 ET: market open, last session Monday.
	now := time.Date(2024, 6, 4, 15, 0, 0, 0, time.UTC)
	rc, err := NewRunContext(ctx, cal, now)
	if err != nil {
		t.Fatalf("NewRunContext: %v", err)
	}
	if rc.Status != domain.MarketOpen {
		t.Errorf("Status = %s, want open", rc.Status)
	}
	if !rc.LastSession.Date.Equal(domain.Date(2024, 6, 3)) {
		t.Errorf("LastSession = %v, want 2024-06-03", rc.LastSession.Date)
	}
	if got := rc.FetchEnd(); !got.Equal(domain.Date(2024, 6, 4)) {
		t.Errorf("FetchEnd = %v, want 2024-06-04", got)
	}

	// Saturday: closed, fetch through Friday.
	now = time.Date(2024, 6, 8, 15, 0, 0, 0, time.UTC)
	rc, err = NewRunContext(ctx, cal, now)
	if err != nil {
		t.Fatalf("NewRunContext: %v", err)
	}
	if rc.Status != domain.MarketClosed {
		t.Errorf("Status = %s, want closed", rc.Status)
	}
	if !rc.LastSession.Date.Equal(domain.Date(2024, 6, 7)) {
		t.Errorf("LastSession = %v, want 2024-06-07", rc.LastSession.Date)
	}
	if got := rc.FetchEnd(); !got.Equal(domain.Date(2024, 6, 8)) {
		t.Errorf("FetchEnd = %v, want 2024-06-08", got)
	}

	// Tuesday 08:00 ET, before the open: the session has not traded, so the
	// fetch stops after Monday.
	now = time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC)
	rc, err = NewRunContext(ctx, cal, now)
	if err != nil {
		t.Fatalf("NewRunContext: %v", err)
	}
	if rc.Status != domain.MarketClosed {
		t.Errorf("Status = %s, want closed", rc.Status)
	}
	if got := rc.FetchEnd(); !got.Equal(domain.Date(2024, 6, 4)) {
		t.Errorf("pre-open FetchEnd = %v, want 2024-06-04", got)
	}
}

func TestRunContextToday(t *testing.T) {
	// 02:00 UTC on the 5th is still the 4th in New York.
	rc := RunContext{Now: time.Date(2024, 6, 5, 2, 0, 0, 0, time.UTC)}
	if got := rc.Today(); !got.Equal(domain.Date(2024, 6, 4)) {
		t.Errorf("Today = %v, want 2024-06-04", got)
	}
}
