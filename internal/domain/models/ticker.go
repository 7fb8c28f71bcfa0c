package models

import "sort"

// ExpirationCategory decides how an expiration date is resolved and cached.
type ExpirationCategory int

const (
	// CategoryStandard tickers list weekly or monthly options; resolved once and cached.
	CategoryStandard ExpirationCategory = iota
	// CategoryDaily tickers list options expiring every session; never cached.
	CategoryDaily
	// CategorySemiWeekly tickers are resolved and used but never cached.
	CategorySemiWeekly
)

func (c ExpirationCategory) String() string {
	switch c {
	case CategoryDaily:
		return "daily"
	case CategorySemiWeekly:
		return "semi_weekly"
	default:
		return "standard"
	}
}

// Cacheable reports whether a resolved expiration may be written to the durable cache.
func (c ExpirationCategory) Cacheable() bool {
	return c == CategoryStandard
}

// TickerSet is an immutable-by-convention set of tickers.
type TickerSet map[string]struct{}

// NewTickerSet builds a set from the given tickers.
func NewTickerSet(tickers ...string) TickerSet {
	s := make(TickerSet, len(tickers))
	for _, t := range tickers {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports membership. A nil set contains nothing.
func (s TickerSet) Contains(ticker string) bool {
	_, ok := s[ticker]
	return ok
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
