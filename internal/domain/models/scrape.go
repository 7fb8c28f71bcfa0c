package models

import (
	"strconv"
	"strings"
	"time"
)

// ScrapeJob is the queue payload for one ticker in one cycle. Force marks
// jobs of an operator-forced cycle; workers tag their completion log with it.
type ScrapeJob struct {
	Ticker    string `json:"ticker"`
	Timestamp int64  `json:"timestamp"`
	Force     bool   `json:"force,omitempty"`
}

// ScrapeResult is the outcome of one scrape attempt, successful or not.
type ScrapeResult struct {
	Ticker     string
	Expiration string
	Skipped    bool

	Price    float64
	HasPrice bool

	Chain        []OptionContract
	NearTheMoney []OptionContract
	IVSamples    int
	MeanIV       float64
	MedianIV     float64

	SecondsToExpiration       int64
	MarketSecondsToExpiration int64
	ScrapedAt                 time.Time
}

// Usable reports whether the scrape produced a price and implied-volatility data.
func (r *ScrapeResult) Usable() bool {
	return r != nil && r.HasPrice && r.IVSamples > 0
}

// StrikeCodes renders the selected contracts as e.g. "438C".
func (r *ScrapeResult) StrikeCodes() []string {
	codes := make([]string, 0, len(r.NearTheMoney))
	for _, c := range r.NearTheMoney {
		suffix := "C"
		if c.Type == OptionTypePut {
			suffix = "P"
		}
		codes = append(codes, strconv.FormatFloat(c.StrikePrice, 'f', -1, 64)+suffix)
	}
	return codes
}

// Snapshot builds the document form for the given cycle.
func (r *ScrapeResult) Snapshot(cycle int64) *Snapshot {
	return &Snapshot{
		ScraperTimestamp:          cycle,
		Ticker:                    r.Ticker,
		Expiration:                r.Expiration,
		Price:                     r.Price,
		SecondsToExpiration:       r.SecondsToExpiration,
		MarketSecondsToExpiration: r.MarketSecondsToExpiration,
		MeanIV:                    r.MeanIV,
		MedianIV:                  r.MedianIV,
		NearTheMoney:              r.StrikeCodes(),
		CreatedAt:                 r.ScrapedAt,
		Options:                   r.Chain,
	}
}

// Record builds the compact flat-file form:
// ticker, expiration, price, mean IV, median IV, strike codes, seconds to expiry.
func (r *ScrapeResult) Record() []string {
	return []string{
		r.Ticker,
		r.Expiration,
		strconv.FormatFloat(r.Price, 'f', 2, 64),
		strconv.FormatFloat(r.MeanIV, 'f', 6, 64),
		strconv.FormatFloat(r.MedianIV, 'f', 6, 64),
		strings.Join(r.StrikeCodes(), " "),
		strconv.FormatInt(r.SecondsToExpiration, 10),
	}
}
