package provider

import (
	"fmt"
	"math"
	"sort"
	"time"

	"assetsdb/internal/domain"
)

// Row is one daily observation as returned by a vendor. Missing fields are
// NaN.
type Row struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Response is the tagged result of a fetch. Its concrete type is
// SingleTickerResponse or MultiTickerResponse.
type Response interface {
	responseShape() string
}

// SingleTickerResponse carries rows for the one requested ticker; the ticker
// itself is implied by the request.
type SingleTickerResponse struct {
	Rows []Row
}

// MultiTickerResponse carries rows keyed by vendor ticker.
type MultiTickerResponse struct {
	Rows map[string][]Row
}

func (SingleTickerResponse) responseShape() string { return "single" }
func (MultiTickerResponse) responseShape() string  { return "multi" }

// Normalize flattens resp into canonical bars. Rows with a missing OHLCV
// field or a negative volume are dropped, volume is truncated to an integer,
// and duplicate (date, ticker) rows keep the last occurrence. The result is
// ordered by ticker then date.
func Normalize(resp Response, requested []string) ([]domain.Bar, error) {
	var bars []domain.Bar
	switch r := resp.(type) {
	case SingleTickerResponse:
		if len(requested) != 1 {
			return nil, fmt.Errorf("single-ticker response for %d requested tickers", len(requested))
		}
		bars = appendRows(bars, domain.CanonicalTicker(requested[0]), r.Rows)
	case *SingleTickerResponse:
		return Normalize(*r, requested)
	case MultiTickerResponse:
		for ticker, rows := range r.Rows {
			bars = appendRows(bars, domain.CanonicalTicker(ticker), rows)
		}
	case *MultiTickerResponse:
		return Normalize(*r, requested)
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown response type %T", resp)
	}
	return dedup(bars), nil
}

func appendRows(bars []domain.Bar, ticker string, rows []Row) []domain.Bar {
	if ticker == "" {
		return bars
	}
	for _, r := range rows {
		if !validRow(r) {
			continue
		}
		bars = append(bars, domain.Bar{
			Date:   domain.DateOf(r.Date),
			Ticker: ticker,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: int64(r.Volume),
		})
	}
	return bars
}

func validRow(r Row) bool {
	if r.Date.IsZero() {
		return false
	}
	for _, v := range [...]float64{r.Open, r.High, r.Low, r.Close, r.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.Volume >= 0
}

func dedup(bars []domain.Bar) []domain.Bar {
	seen := make(map[domain.BarKey]int, len(bars))
	out := bars[:0]
	for _, b := range bars {
		k := b.Key()
		if i, ok := seen[k]; ok {
			out[i] = b
			continue
		}
		seen[k] = len(out)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
