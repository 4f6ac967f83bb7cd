package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"assetsdb/internal/domain"
)

func newTestCalendar() *TradingCalendar {
	// Juneteenth 2024 fell on a Wednesday.
	return NewTradingCalendar(NewWeekdaySessions(domain.Date(2024, 6, 19)))
}

func TestIsTradingDay(t *testing.T) {
	cal := newTestCalendar()
	ctx := context.Background()

	cases := []struct {
		day  time.Time
		want bool
	}{
		{domain.Date(2024, 6, 3), true},   // Monday
		{domain.Date(2024, 6, 8), false},  // Saturday
		{domain.Date(2024, 6, 9), false},  // Sunday
		{domain.Date(2024, 6, 19), false}, // holiday
		{domain.Date(2024, 6, 20), true},
	}
	for _, c := range cases {
		got, err := cal.IsTradingDay(ctx, c.day)
		if err != nil {
			t.Fatalf("IsTradingDay(%s): %v", domain.FormatDate(c.day), err)
		}
		if got != c.want {
			t.Errorf("IsTradingDay(%s) = %v, want %v", domain.FormatDate(c.day), got, c.want)
		}
	}
}

func TestNextTradingDay(t *testing.T) {
	cal := newTestCalendar()
	ctx := context.Background()

	cases := []struct {
		day, want time.Time
	}{
		{domain.Date(2024, 6, 3), domain.Date(2024, 6, 4)},
		{domain.Date(2024, 6, 7), domain.Date(2024, 6, 10)},  // Friday -> Monday
		{domain.Date(2024, 6, 18), domain.Date(2024, 6, 20)}, // skips holiday
		{domain.Date(2024, 5, 31), domain.Date(2024, 6, 3)},  // crosses month
		{domain.Date(2014, 12, 31), domain.Date(2015, 1, 1)}, // weekday calendar has no New Year
	}
	for _, c := range cases {
		got, err := cal.NextTradingDay(ctx, c.day)
		if err != nil {
			t.Fatalf("NextTradingDay(%s): %v", domain.FormatDate(c.day), err)
		}
		if !got.Equal(c.want) {
			t.Errorf("NextTradingDay(%s) = %s, want %s",
				domain.FormatDate(c.day), domain.FormatDate(got), domain.FormatDate(c.want))
		}
	}
}

func TestLastCompletedSession(t *testing.T) {
	cal := newTestCalendar()
	ctx := context.Background()

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"after close", time.Date(2024, 6, 3, 16, 30, 0, 0, newYork), domain.Date(2024, 6, 3)},
		{"during session", time.Date(2024, 6, 4, 11, 0, 0, 0, newYork), domain.Date(2024, 6, 3)},
		{"exactly at close", time.Date(2024, 6, 4, 16, 0, 0, 0, newYork), domain.Date(2024, 6, 4)},
		{"weekend", time.Date(2024, 6, 9, 12, 0, 0, 0, newYork), domain.Date(2024, 6, 7)},
		{"utc input", time.Date(2024, 6, 4, 1, 0, 0, 0, time.UTC), domain.Date(2024, 6, 3)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, err := cal.LastCompletedSession(ctx, c.now)
			if err != nil {
				t.Fatal(err)
			}
			if !s.Date.Equal(c.want) {
				t.Errorf("LastCompletedSession(%v) = %s, want %s", c.now, domain.FormatDate(s.Date), domain.FormatDate(c.want))
			}
		})
	}
}

func TestMarketStatus(t *testing.T) {
	cal := newTestCalendar()
	ctx := context.Background()

	cases := []struct {
		now  time.Time
		want domain.MarketStatus
	}{
		{time.Date(2024, 6, 3, 9, 29, 0, 0, newYork), domain.MarketClosed},
		{time.Date(2024, 6, 3, 9, 30, 0, 0, newYork), domain.MarketOpen},
		{time.Date(2024, 6, 3, 15, 59, 0, 0, newYork), domain.MarketOpen},
		{time.Date(2024, 6, 3, 16, 1, 0, 0, newYork), domain.MarketClosed},
		{time.Date(2024, 6, 8, 12, 0, 0, 0, newYork), domain.MarketClosed},
		{time.Date(2024, 6, 19, 12, 0, 0, 0, newYork), domain.MarketClosed},
	}
	for _, c := range cases {
		got, err := cal.MarketStatus(ctx, c.now)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Errorf("MarketStatus(%v) = %s, want %s", c.now, got, c.want)
		}
	}
}

// countingSource counts Sessions calls to verify month caching.
type countingSource struct {
	inner SessionSource
	calls int
	err   error
}

func (c *countingSource) Sessions(ctx context.Context, start, end time.Time) ([]Session, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Sessions(ctx, start, end)
}

func TestTradingCalendarCachesMonths(t *testing.T) {
	src := &countingSource{inner: NewWeekdaySessions()}
	cal := NewTradingCalendar(src)
	ctx := context.Background()

	for d := 3; d <= 28; d++ {
		if _, err := cal.IsTradingDay(ctx, domain.Date(2024, 6, d)); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Errorf("Sessions called %d times for one month, want 1", src.calls)
	}
}

func TestTradingCalendarSourceError(t *testing.T) {
	boom := errors.New("calendar unavailable")
	cal := NewTradingCalendar(&countingSource{err: boom})

	_, err := cal.NextTradingDay(context.Background(), domain.Date(2024, 6, 3))
	if !errors.Is(err, boom) {
		t.Errorf("NextTradingDay error = %v, want wrapped %v", err, boom)
	}
}

func TestParseCalendarDay(t *testing.T) {
	s, err := parseCalendarDay("2024-11-29", "09:30", "13:00")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Date.Equal(domain.Date(2024, 11, 29)) {
		t.Errorf("Date = %v", s.Date)
	}
	wantClose := time.Date(2024, 11, 29, 13, 0, 0, 0, newYork)
	if !s.Close.Equal(wantClose) {
		t.Errorf("Close = %v, want %v", s.Close, wantClose)
	}

	if _, err := parseCalendarDay("bad", "09:30", "16:00"); err == nil {
		t.Error("expected error for malformed date")
	}
}
