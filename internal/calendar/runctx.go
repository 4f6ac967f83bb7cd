package calendar

import (
	"context"
	"fmt"
	"time"

	"assetsdb/internal/domain"
)

// RunContext is the temporal state of one sync run. It is built once and
// passed to every component so that a run can be replayed with a fixed
// clock.
type RunContext struct {
	Now         time.Time
	LastSession Session
	Status      domain.MarketStatus
	Calendar    Calendar
}

// NewRunContext resolves the last completed session and market status at now.
func NewRunContext(ctx context.Context, cal Calendar, now time.Time) (RunContext, error) {
	last, err := cal.LastCompletedSession(ctx, now)
	if err != nil {
		return RunContext{}, fmt.Errorf("last completed session: %w", err)
	}
	status, err := cal.MarketStatus(ctx, now)
	if err != nil {
		return RunContext{}, fmt.Errorf("market status: %w", err)
	}
	return RunContext{
		Now:         now,
		LastSession: last,
		Status:      status,
		Calendar:    cal,
	}, nil
}

// Today returns the civil date of Now in New York.
func (rc RunContext) Today() time.Time {
	return domain.DateOf(rc.Now.In(newYork))
}

// FetchEnd is the exclusive end bound for provider requests. While the
// market is open it is today, so the partial session is excluded. Otherwise
// it is the day after the last completed session, so a run before the open
// never stores a bar for a session that has not traded yet.
func (rc RunContext) FetchEnd() time.Time {
	if rc.Status == domain.MarketOpen {
		return rc.Today()
	}
	return domain.DateOf(rc.LastSession.Date).AddDate(0, 0, 1)
}
