package domain

import (
	"sort"
	"strings"
)

// reservedTokens are header/footer cells that leak into ticker lists exported
// from spreadsheets.
var reservedTokens = map[string]struct{}{
	"ticker":  {},
	"summary": {},
}

// CanonicalTicker normalizes a symbol for every store and provider boundary.
// Class-share dots become dashes ("BRK.A" -> "BRK-A"). The function is
// idempotent.
func CanonicalTicker(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ".", "-")
}

// IsReservedToken reports whether s is a header or footer token rather than a
// real symbol.
func IsReservedToken(s string) bool {
	_, ok := reservedTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// TickerSet is an unordered set of canonical tickers.
type TickerSet map[string]struct{}

// NewTickerSet canonicalizes and collects the given symbols, skipping empty
// strings and reserved tokens.
func NewTickerSet(symbols ...string) TickerSet {
	s := make(TickerSet, len(symbols))
	s.Add(symbols...)
	return s
}

// Add inserts canonicalized symbols into the set.
func (s TickerSet) Add(symbols ...string) {
	for _, sym := range symbols {
		c := CanonicalTicker(sym)
		if c == "" || IsReservedToken(c) {
			continue
		}
		s[c] = struct{}{}
	}
}

// Remove deletes the canonical form of each symbol from the set.
func (s TickerSet) Remove(symbols ...string) {
	for _, sym := range symbols {
		delete(s, CanonicalTicker(sym))
	}
}

// Contains reports whether the canonical form of sym is in the set.
func (s TickerSet) Contains(sym string) bool {
	_, ok := s[CanonicalTicker(sym)]
	return ok
}

// Union adds every member of other to s.
func (s TickerSet) Union(other TickerSet) {
	for t := range other {
		s[t] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s TickerSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
