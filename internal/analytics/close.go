// Package analytics derives read-only views from the stored bars.
package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"assetsdb/internal/domain"
	"assetsdb/internal/store"
)

// CloseMatrix is a date by ticker table of closing prices. Combinations
// without a stored bar are absent.
type CloseMatrix struct {
	Dates   []time.Time
	Tickers []string

	rows   map[string]int // date -> row index
	cols   map[string]int // ticker -> column index
	values map[[2]int]float64
}

// ProjectClose reads every stored close and pivots it into a CloseMatrix
// with dates ascending and tickers sorted.
func ProjectClose(ctx context.Context, s store.BarStore) (*CloseMatrix, error) {
	points, err := s.ReadCloses(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading closes: %w", err)
	}
	return NewCloseMatrix(points), nil
}

// NewCloseMatrix pivots close points. A repeated (date, ticker) keeps the
// last value.
func NewCloseMatrix(points []domain.ClosePoint) *CloseMatrix {
	m := &CloseMatrix{
		rows:   make(map[string]int),
		cols:   make(map[string]int),
		values: make(map[[2]int]float64, len(points)),
	}

	dates := make(map[string]time.Time)
	tickers := make(map[string]struct{})
	for _, p := range points {
		dates[domain.FormatDate(p.Date)] = domain.DateOf(p.Date)
		tickers[p.Ticker] = struct{}{}
	}
	for _, d := range dates {
		m.Dates = append(m.Dates, d)
	}
	sort.Slice(m.Dates, func(i, j int) bool { return m.Dates[i].Before(m.Dates[j]) })
	for t := range tickers {
		m.Tickers = append(m.Tickers, t)
	}
	sort.Strings(m.Tickers)

	for i, d := range m.Dates {
		m.rows[domain.FormatDate(d)] = i
	}
	for j, t := range m.Tickers {
		m.cols[t] = j
	}
	for _, p := range points {
		m.values[[2]int{m.rows[domain.FormatDate(p.Date)], m.cols[p.Ticker]}] = p.Close
	}
	return m
}

// Value returns the close for ticker on date.
func (m *CloseMatrix) Value(date time.Time, ticker string) (float64, bool) {
	i, ok := m.rows[domain.FormatDate(date)]
	if !ok {
		return 0, false
	}
	j, ok := m.cols[ticker]
	if !ok {
		return 0, false
	}
	v, ok := m.values[[2]int{i, j}]
	return v, ok
}

// Row returns the closes on date aligned with Tickers; missing entries are
// reported false in the second slice.
func (m *CloseMatrix) Row(date time.Time) ([]float64, []bool) {
	vals := make([]float64, len(m.Tickers))
	present := make([]bool, len(m.Tickers))
	for j, t := range m.Tickers {
		vals[j], present[j] = m.Value(date, t)
	}
	return vals, present
}

// WriteCSV writes a header of "date" plus tickers and one row per date.
// Missing closes are written as empty cells.
func (m *CloseMatrix) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"date"}, m.Tickers...)); err != nil {
		return err
	}
	record := make([]string, len(m.Tickers)+1)
	for _, d := range m.Dates {
		record[0] = domain.FormatDate(d)
		vals, present := m.Row(d)
		for j := range m.Tickers {
			record[j+1] = ""
			if present[j] {
				record[j+1] = strconv.FormatFloat(vals[j], 'f', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
