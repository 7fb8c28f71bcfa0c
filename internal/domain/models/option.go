package models

const (
	OptionTypeCall = "call"
	OptionTypePut  = "put"
)

// OptionContract is one listed contract of an option chain.
type OptionContract struct {
	StrikePrice       float64 `json:"strike_price"`
	Type              string  `json:"type"`
	Volume            int64   `json:"volume"`
	OpenInterest      int64   `json:"open_interest"`
	ImpliedVolatility float64 `json:"implied_volatility"`
}
