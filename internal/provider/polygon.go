package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"assetsdb/internal/domain"
	"assetsdb/internal/util"
)

// Compile-time interface check.
var _ Provider = (*PolygonProvider)(nil)

// PolygonProvider fetches daily aggregates from the Polygon REST API, one
// ListAggs call per ticker.
type PolygonProvider struct {
	client   *polygon.Client
	adjusted bool
	limiter  *util.RateLimiter
}

// NewPolygonProvider creates a PolygonProvider. limiter, when non-nil, paces
// the per-ticker calls.
func NewPolygonProvider(apiKey string, adjusted bool, limiter *util.RateLimiter) *PolygonProvider {
	return &PolygonProvider{
		client:   polygon.NewWithClient(apiKey, &http.Client{Timeout: 30 * time.Second}),
		adjusted: adjusted,
		limiter:  limiter,
	}
}

// Name returns the provider identifier.
func (p *PolygonProvider) Name() string { return "polygon" }

// Fetch lists day aggregates for every ticker over [start, end).
func (p *PolygonProvider) Fetch(ctx context.Context, tickers []string, start, end time.Time) (Response, error) {
	from := marketDay(start)
	to := time.Now()
	if !end.IsZero() {
		to = marketDay(end).Add(-time.Millisecond)
	}

	resp := MultiTickerResponse{Rows: make(map[string][]Row, len(tickers))}
	for _, ticker := range tickers {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		rows, err := p.listDaily(ctx, vendorSymbol(ticker), from, to)
		if err != nil {
			return nil, fmt.Errorf("ListAggs %s: %w", ticker, err)
		}
		resp.Rows[ticker] = rows
	}

	if len(tickers) == 1 {
		return SingleTickerResponse{Rows: resp.Rows[tickers[0]]}, nil
	}
	return resp, nil
}

func (p *PolygonProvider) listDaily(ctx context.Context, symbol string, from, to time.Time) ([]Row, error) {
	params := &models.ListAggsParams{
		Ticker:     symbol,
		Timespan:   models.Day,
		Multiplier: 1,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}
	limit := 50000
	asc := models.Asc
	adjusted := p.adjusted
	params.Limit = &limit
	params.Order = &asc
	params.Adjusted = &adjusted

	var rows []Row
	iter := p.client.ListAggs(ctx, params)
	for iter.Next() {
		a := iter.Item()
		rows = append(rows, Row{
			Date:   domain.DateOf(time.Time(a.Timestamp).In(newYork)),
			Open:   a.Open,
			High:   a.High,
			Low:    a.Low,
			Close:  a.Close,
			Volume: a.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
