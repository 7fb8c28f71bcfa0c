package quarantine

import (
	"ChainPull/internal/domain/models"

	"github.com/shopspring/decimal"
)

const (
	RuleScrapeFailed = "scrape_failed"
	RuleBadPrice     = "bad_price"
)

// Policy holds the scoring constants. Prices are in cents, bounds inclusive.
type Policy struct {
	Threshold       int64
	ScrapeFailScore int64
	BadPriceScore   int64
	PriceMinCents   int64
	PriceMaxCents   int64
	Exempt          []string
}

// DefaultPolicy is the stock scoring: three points per failed scrape, one per
// out-of-range price, quarantine at fifteen.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:       15,
		ScrapeFailScore: 3,
		BadPriceScore:   1,
		PriceMinCents:   250,
		PriceMaxCents:   100000,
		Exempt:          []string{"SPCE", "SNDL", "FCEL", "TLRY", "AMC", "BB", "NOK"},
	}
}

// filled returns p with every unset numeric field taken from DefaultPolicy.
// Exempt is kept as given; an empty list exempts nothing.
func (p Policy) filled() Policy {
	d := DefaultPolicy()
	for _, f := range []struct{ v, def *int64 }{
		{&p.Threshold, &d.Threshold},
		{&p.ScrapeFailScore, &d.ScrapeFailScore},
		{&p.BadPriceScore, &d.BadPriceScore},
		{&p.PriceMinCents, &d.PriceMinCents},
		{&p.PriceMaxCents, &d.PriceMaxCents},
	} {
		if *f.v <= 0 {
			*f.v = *f.def
		}
	}
	return p
}

// Verdict is the outcome of scoring one scrape result.
type Verdict struct {
	Ticker string
	Score  int64
	Rules  []string
	// Clear is set for exempt tickers, whose entries are always removed.
	Clear bool
}

// Evaluate scores a scrape result without touching the store.
//
// Rule 1 fires when the result is not usable. Rule 2 fires when the price in
// cents falls outside the configured range and is only checked when rule 1
// did not fire.
func Evaluate(p Policy, exempt models.TickerSet, r *models.ScrapeResult) Verdict {
	v := Verdict{Ticker: r.Ticker}
	if exempt.Contains(r.Ticker) {
		v.Clear = true
		return v
	}

	if !r.Usable() {
		v.Score += p.ScrapeFailScore
		v.Rules = append(v.Rules, RuleScrapeFailed)
		return v
	}

	cents := PriceCents(r.Price)
	if cents < p.PriceMinCents || cents > p.PriceMaxCents {
		v.Score += p.BadPriceScore
		v.Rules = append(v.Rules, RuleBadPrice)
	}
	return v
}

// PriceCents rounds a dollar price to whole cents.
func PriceCents(price float64) int64 {
	return decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
}
