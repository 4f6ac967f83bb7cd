package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"assetsdb/internal/domain"
)

// Compile-time interface check.
var _ Provider = (*AlpacaProvider)(nil)

// AlpacaProvider fetches daily bars from the Alpaca market-data API.
type AlpacaProvider struct {
	client     *marketdata.Client
	feed       marketdata.Feed
	adjustment marketdata.Adjustment
}

// NewAlpacaProvider creates an AlpacaProvider. An empty dataURL uses the SDK
// default; feed and adjustment are passed through to the bars endpoint.
func NewAlpacaProvider(apiKey, apiSecret, dataURL, feed, adjustment string) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "sip"
	}
	if adjustment == "" {
		adjustment = "raw"
	}
	return &AlpacaProvider{
		client:     marketdata.NewClient(opts),
		feed:       marketdata.Feed(feed),
		adjustment: marketdata.Adjustment(adjustment),
	}
}

// Name returns the provider identifier.
func (p *AlpacaProvider) Name() string { return "alpaca" }

// Fetch requests daily bars. One ticker goes through GetBars, several
// through GetMultiBars.
func (p *AlpacaProvider) Fetch(ctx context.Context, tickers []string, start, end time.Time) (Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return MultiTickerResponse{}, nil
	}

	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      marketDay(start),
		Feed:       p.feed,
		Adjustment: p.adjustment,
	}
	if !end.IsZero() {
		// The API end bound is inclusive.
		req.End = marketDay(end).Add(-time.Second)
	}

	if len(tickers) == 1 {
		bars, err := p.client.GetBars(vendorSymbol(tickers[0]), req)
		if err != nil {
			return nil, fmt.Errorf("GetBars %s: %w", tickers[0], err)
		}
		return SingleTickerResponse{Rows: alpacaRows(bars)}, nil
	}

	symbols := make([]string, len(tickers))
	for i, t := range tickers {
		symbols[i] = vendorSymbol(t)
	}
	multi, err := p.client.GetMultiBars(symbols, req)
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}
	resp := MultiTickerResponse{Rows: make(map[string][]Row, len(multi))}
	for symbol, bars := range multi {
		resp.Rows[symbol] = alpacaRows(bars)
	}
	return resp, nil
}

func alpacaRows(bars []marketdata.Bar) []Row {
	rows := make([]Row, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, Row{
			Date:   domain.DateOf(b.Timestamp.In(newYork)),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	return rows
}
