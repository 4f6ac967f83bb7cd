// Package calendar answers trading-day questions for the US equity market:
// whether a date trades, the next session after a date, the most recent
// finished session and whether the market is open at a given instant.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	_ "time/tzdata" // America/New_York on hosts without zoneinfo.

	"assetsdb/internal/domain"
)

// lookahead bounds how far NextTradingDay and LastCompletedSession search.
// No US market closure has lasted longer.
const lookahead = 21

// Calendar is the trading-calendar oracle consumed by the sync engine.
type Calendar interface {
	IsTradingDay(ctx context.Context, day time.Time) (bool, error)
	NextTradingDay(ctx context.Context, day time.Time) (time.Time, error)
	LastCompletedSession(ctx context.Context, now time.Time) (Session, error)
	MarketStatus(ctx context.Context, now time.Time) (domain.MarketStatus, error)
}

// Session is one regular trading session. Open and Close are instants in
// America/New_York.
type Session struct {
	Date  time.Time // civil date at UTC midnight
	Open  time.Time
	Close time.Time
}

// SessionSource lists the sessions whose dates fall within [start, end].
type SessionSource interface {
	Sessions(ctx context.Context, start, end time.Time) ([]Session, error)
}

// Compile-time interface check.
var _ Calendar = (*TradingCalendar)(nil)

// TradingCalendar implements Calendar over a SessionSource, loading and
// caching one calendar month at a time.
type TradingCalendar struct {
	src SessionSource

	mu       sync.Mutex
	sessions map[string]Session // YYYY-MM-DD -> session
	months   map[string]bool    // YYYY-MM already loaded
}

// NewTradingCalendar creates a TradingCalendar backed by src.
func NewTradingCalendar(src SessionSource) *TradingCalendar {
	return &TradingCalendar{
		src:      src,
		sessions: make(map[string]Session),
		months:   make(map[string]bool),
	}
}

// IsTradingDay reports whether day has a regular session.
func (tc *TradingCalendar) IsTradingDay(ctx context.Context, day time.Time) (bool, error) {
	_, ok, err := tc.session(ctx, domain.DateOf(day))
	return ok, err
}

// NextTradingDay returns the first trading date strictly after day.
func (tc *TradingCalendar) NextTradingDay(ctx context.Context, day time.Time) (time.Time, error) {
	d := domain.DateOf(day)
	for i := 1; i <= lookahead; i++ {
		next := d.AddDate(0, 0, i)
		_, ok, err := tc.session(ctx, next)
		if err != nil {
			return time.Time{}, err
		}
		if ok {
			return next, nil
		}
	}
	return time.Time{}, fmt.Errorf("no trading day within %d days after %s", lookahead, domain.FormatDate(d))
}

// LastCompletedSession returns the most recent session whose close is at or
// before now.
func (tc *TradingCalendar) LastCompletedSession(ctx context.Context, now time.Time) (Session, error) {
	today := domain.DateOf(now.In(newYork))
	for i := 0; i <= lookahead; i++ {
		d := today.AddDate(0, 0, -i)
		s, ok, err := tc.session(ctx, d)
		if err != nil {
			return Session{}, err
		}
		if ok && !now.Before(s.Close) {
			return s, nil
		}
	}
	return Session{}, fmt.Errorf("could not determine last completed session before %s", now.Format(time.RFC3339))
}

// MarketStatus reports MarketOpen when now falls inside today's session.
func (tc *TradingCalendar) MarketStatus(ctx context.Context, now time.Time) (domain.MarketStatus, error) {
	s, ok, err := tc.session(ctx, domain.DateOf(now.In(newYork)))
	if err != nil {
		return "", err
	}
	if ok && !now.Before(s.Open) && !now.After(s.Close) {
		return domain.MarketOpen, nil
	}
	return domain.MarketClosed, nil
}

// session returns the session on civil date d, loading its month on demand.
func (tc *TradingCalendar) session(ctx context.Context, d time.Time) (Session, bool, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	month := d.Format("2006-01")
	if !tc.months[month] {
		first := domain.Date(d.Year(), d.Month(), 1)
		last := first.AddDate(0, 1, -1)
		sessions, err := tc.src.Sessions(ctx, first, last)
		if err != nil {
			return Session{}, false, fmt.Errorf("loading sessions for %s: %w", month, err)
		}
		for _, s := range sessions {
			tc.sessions[domain.FormatDate(s.Date)] = s
		}
		tc.months[month] = true
	}

	s, ok := tc.sessions[domain.FormatDate(d)]
	return s, ok, nil
}

// sortSessions orders sessions by date.
func sortSessions(sessions []Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Date.Before(sessions[j].Date)
	})
}
