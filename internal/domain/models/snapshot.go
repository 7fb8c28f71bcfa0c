package models

import "time"

// Snapshot is the persisted, immutable record of a ticker's option chain in one cycle.
type Snapshot struct {
	ScraperTimestamp          int64            `json:"scraper_timestamp"`
	Ticker                    string           `json:"ticker"`
	Expiration                string           `json:"expiration"`
	Price                     float64          `json:"price"`
	SecondsToExpiration       int64            `json:"seconds_to_expiration"`
	MarketSecondsToExpiration int64            `json:"market_seconds_to_expiration"`
	MeanIV                    float64          `json:"mean_iv"`
	MedianIV                  float64          `json:"median_iv"`
	NearTheMoney              []string         `json:"near_the_money"`
	CreatedAt                 time.Time        `json:"created_at"`
	Options                   []OptionContract `json:"options"`
}
