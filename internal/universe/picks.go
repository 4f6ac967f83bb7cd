package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"assetsdb/internal/domain"
)

// PicksSnapshot is the content of the picks CSV export together with the
// time the file was written.
type PicksSnapshot struct {
	Tickers domain.TickerSet
	Time    time.Time
}

// ReadPicksSnapshot parses a picks CSV. The ticker column is the one headed
// "Ticker" (any case), or the first column when no such header exists. A
// trailing "Summary" row is ignored.
func ReadPicksSnapshot(path string) (*PicksSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening picks %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat picks %s: %w", path, err)
	}

	tickers, err := parsePicks(f)
	if err != nil {
		return nil, fmt.Errorf("parsing picks %s: %w", path, err)
	}
	return &PicksSnapshot{
		Tickers: domain.NewTickerSet(tickers...),
		Time:    info.ModTime().UTC(),
	}, nil
}

func parsePicks(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := 0
	for i, h := range records[0] {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), "ticker") {
			col = i
			break
		}
	}

	rows := records[1:]
	if n := len(rows); n > 0 && len(rows[n-1]) > col &&
		strings.EqualFold(strings.TrimSpace(rows[n-1][col]), "summary") {
		rows = rows[:n-1]
	}

	tickers := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) <= col {
			continue
		}
		if t := strings.TrimSpace(row[col]); t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers, nil
}
