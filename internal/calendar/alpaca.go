package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"assetsdb/internal/domain"
)

// AlpacaSessions is a SessionSource backed by the Alpaca trading calendar
// API, which reflects exchange holidays and early closes.
type AlpacaSessions struct {
	client *alpaca.Client
}

// NewAlpacaSessions creates an AlpacaSessions using the given credentials.
// baseURL selects the live or paper trading endpoint.
func NewAlpacaSessions(apiKey, apiSecret, baseURL string) *AlpacaSessions {
	return &AlpacaSessions{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

// Sessions fetches the calendar days in [start, end].
func (a *AlpacaSessions) Sessions(ctx context.Context, start, end time.Time) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	days, err := a.client.GetCalendar(alpaca.GetCalendarRequest{
		Start: start,
		End:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("GetCalendar: %w", err)
	}

	sessions := make([]Session, 0, len(days))
	for _, day := range days {
		s, err := parseCalendarDay(day.Date, day.Open, day.Close)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	sortSessions(sessions)
	return sessions, nil
}

// parseCalendarDay converts Alpaca's "2006-01-02" date and "15:04" ET times
// into a Session.
func parseCalendarDay(date, open, close string) (Session, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return Session{}, fmt.Errorf("parsing calendar date %q: %w", date, err)
	}
	o, err := time.ParseInLocation("2006-01-02 15:04", date+" "+open, newYork)
	if err != nil {
		return Session{}, fmt.Errorf("parsing open time %q: %w", open, err)
	}
	c, err := time.ParseInLocation("2006-01-02 15:04", date+" "+close, newYork)
	if err != nil {
		return Session{}, fmt.Errorf("parsing close time %q: %w", close, err)
	}
	return Session{Date: d, Open: o, Close: c}, nil
}
