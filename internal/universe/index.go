package universe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IndexSource describes a public constituents table and the file its
// membership is cached in.
type IndexSource struct {
	Name      string
	URL       string
	Column    string // header of the symbol column
	CacheFile string
}

// DefaultIndexSources returns the Russell 1000, Dow Jones Industrial
// Average and NASDAQ-100 constituent pages.
func DefaultIndexSources() []IndexSource {
	return []IndexSource{
		{
			Name:      "russell-1000",
			URL:       "https://en.wikipedia.org/wiki/Russell_1000_Index",
			Column:    "Ticker",
			CacheFile: "russell_1000.parquet",
		},
		{
			Name:      "djia",
			URL:       "https://en.wikipedia.org/wiki/Dow_Jones_Industrial_Average",
			Column:    "Symbol",
			CacheFile: "djia.parquet",
		},
		{
			Name:      "nasdaq-100",
			URL:       "https://en.wikipedia.org/wiki/Nasdaq-100",
			Column:    "Ticker",
			CacheFile: "nasdaq_100.parquet",
		},
	}
}

// IndexFetcher retrieves the live constituents of an index.
type IndexFetcher interface {
	FetchIndex(ctx context.Context, src IndexSource) ([]string, error)
}

// WikipediaFetcher scrapes constituents tables from Wikipedia pages.
type WikipediaFetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewWikipediaFetcher returns a fetcher with a bounded HTTP timeout.
func NewWikipediaFetcher() *WikipediaFetcher {
	return &WikipediaFetcher{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: "assetsdb/1.0 (daily bar sync)",
	}
}

// FetchIndex downloads src.URL and extracts the symbol column of the first
// wikitable that has it.
func (w *WikipediaFetcher) FetchIndex(ctx context.Context, src IndexSource) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", w.UserAgent)

	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetching %s: status %s", src.Name, resp.Status)
	}

	symbols, err := ParseConstituents(resp.Body, src.Column)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", src.Name, err)
	}
	return symbols, nil
}

// ParseConstituents returns the cells under column of the first table with
// class "wikitable" whose header row has that column.
func ParseConstituents(r io.Reader, column string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	for _, table := range findAll(doc, isWikitable) {
		rows := findAll(table, func(n *html.Node) bool { return n.DataAtom == atom.Tr })
		if len(rows) == 0 {
			continue
		}
		col := -1
		for i, h := range rowCells(rows[0]) {
			if strings.EqualFold(nodeText(h), column) {
				col = i
				break
			}
		}
		if col < 0 {
			continue
		}

		var symbols []string
		for _, tr := range rows[1:] {
			cells := rowCells(tr)
			if len(cells) <= col {
				continue
			}
			if s := nodeText(cells[col]); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) > 0 {
			return symbols, nil
		}
	}
	return nil, fmt.Errorf("no wikitable with column %q", column)
}

func isWikitable(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.Table {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == "wikitable" {
					return true
				}
			}
		}
	}
	return false
}

// findAll returns the descendants of n matching pred in document order,
// without descending into matches.
func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pred(c) {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, pred)...)
	}
	return out
}

// rowCells returns the th and td children of a table row.
func rowCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Th || c.DataAtom == atom.Td {
			cells = append(cells, c)
		}
	}
	return cells
}

// nodeText concatenates the text under n, skipping footnote markers.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.DataAtom == atom.Sup || n.DataAtom == atom.Style {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
