// Package domain defines the core types shared by the synchronization engine:
// daily bars, tickers, picks and their audit events, and download buckets.
package domain

import "time"

// DateLayout is the canonical text form of a civil date.
const DateLayout = "2006-01-02"

// MarketStatus reports whether the regular session is currently trading.
type MarketStatus string

const (
	MarketOpen   MarketStatus = "open"
	MarketClosed MarketStatus = "closed"
)

// Bar is one daily OHLCV bar. At most one Bar exists per (Date, Ticker).
type Bar struct {
	Date   time.Time // civil date at UTC midnight
	Ticker string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Key returns the uniqueness key of the bar.
func (b Bar) Key() BarKey {
	return BarKey{Date: FormatDate(b.Date), Ticker: b.Ticker}
}

// BarKey is the (date, ticker) identity of a Bar.
type BarKey struct {
	Date   string
	Ticker string
}

// ClosePoint is a single (date, ticker, close) observation.
type ClosePoint struct {
	Date   time.Time
	Ticker string
	Close  float64
}

// PickAction is the kind of transition recorded in the picks history.
type PickAction string

const (
	PickAdded   PickAction = "Added"
	PickRemoved PickAction = "Removed"
)

// PickRecord tracks a ticker's membership in the user's picks. A record whose
// DateRemoved is nil is active.
type PickRecord struct {
	Ticker      string
	DateAdded   time.Time
	DateRemoved *time.Time
}

// Active reports whether the pick is currently held.
func (p PickRecord) Active() bool { return p.DateRemoved == nil }

// PickEvent is an append-only history entry.
type PickEvent struct {
	Ticker string
	Action PickAction
	Time   time.Time
}

// TickerLogEntry records a ticker entering or leaving the stored universe.
type TickerLogEntry struct {
	Ticker string
	Time   time.Time
	Added  bool
}

// Bucket groups tickers whose missing range starts on the same date.
type Bucket struct {
	Start   time.Time
	Tickers []string
}
