// Package provider adapts market-data vendors to a single daily-bar fetch
// interface and normalizes their responses into domain bars.
package provider

import (
	"context"
	"strings"
	"time"

	_ "time/tzdata" // Embedded zone database for America/New_York.
)

// Provider fetches daily bars for a batch of tickers sharing one date range.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Fetch returns daily rows for tickers from start (inclusive) to end
	// (exclusive). A zero end means open-ended. A single requested ticker
	// yields a SingleTickerResponse; more yield a MultiTickerResponse.
	Fetch(ctx context.Context, tickers []string, start, end time.Time) (Response, error)
}

var newYork = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// marketDay returns midnight Eastern on the civil date of d.
func marketDay(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, newYork)
}

// vendorSymbol converts a canonical ticker to the dotted class-share
// notation used by the vendor APIs.
func vendorSymbol(ticker string) string {
	return strings.ReplaceAll(ticker, "-", ".")
}
