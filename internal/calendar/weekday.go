package calendar

import (
	"context"
	"time"

	"assetsdb/internal/domain"
)

var newYork = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// WeekdaySessions is an offline SessionSource: every Monday through Friday
// trades 09:30-16:00 ET except the listed holidays. It ignores early closes.
type WeekdaySessions struct {
	holidays map[string]bool
}

// NewWeekdaySessions creates a WeekdaySessions that skips the given dates.
func NewWeekdaySessions(holidays ...time.Time) *WeekdaySessions {
	h := make(map[string]bool, len(holidays))
	for _, d := range holidays {
		h[domain.FormatDate(d)] = true
	}
	return &WeekdaySessions{holidays: h}
}

// Sessions lists the weekday sessions in [start, end].
func (w *WeekdaySessions) Sessions(_ context.Context, start, end time.Time) ([]Session, error) {
	var out []Session
	for d := domain.DateOf(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if w.holidays[domain.FormatDate(d)] {
			continue
		}
		out = append(out, regularSession(d))
	}
	return out, nil
}

// regularSession returns the 09:30-16:00 ET session on civil date d.
func regularSession(d time.Time) Session {
	return Session{
		Date:  d,
		Open:  time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, newYork),
		Close: time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, newYork),
	}
}
