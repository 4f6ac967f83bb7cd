// Package universe resolves the working set of tickers for a sync run from
// the inclusion and exclusion lists, the picks snapshot, the cached index
// constituents and the tickers already in storage.
package universe

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"assetsdb/internal/domain"
)

// LoadTickerList reads a whitespace-delimited list of symbols. A missing or
// unreadable file yields an empty set and a warning.
func LoadTickerList(path string, log *slog.Logger) domain.TickerSet {
	if path == "" {
		return domain.NewTickerSet()
	}
	symbols, err := readTickerList(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("ticker list not found, ignoring", "path", path)
		} else {
			log.Warn("ticker list unreadable, ignoring", "path", path, "error", err)
		}
		return domain.NewTickerSet()
	}
	return domain.NewTickerSet(symbols...)
}

func readTickerList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.Fields(string(data)), nil
}
