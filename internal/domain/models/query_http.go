package models

// Requests for the read-only snapshot query endpoints.

type OptionChainsRequest struct {
	Ticker     string `query:"ticker" json:"ticker" validate:"required"`
	Expr       string `query:"expr" json:"expr" validate:"omitempty,datetime=2006-01-02"`
	Expiration string `query:"expiration" json:"expiration" validate:"omitempty,datetime=2006-01-02"`
	Timestamp  int64  `query:"timestamp" json:"timestamp" validate:"gte=0"` // 0 means all cycles
}

// ExpirationDate returns whichever of expr/expiration was supplied.
func (r *OptionChainsRequest) ExpirationDate() string {
	if r.Expr != "" {
		return r.Expr
	}
	return r.Expiration
}

type TimestampsRequest struct {
	Expr string `query:"expr" json:"expr" validate:"required,datetime=2006-01-02"`
}

// StrikeActivity is the volume and open interest of one contract side.
type StrikeActivity struct {
	Volume       int64 `json:"volume"`
	OpenInterest int64 `json:"open_interest"`
}

// ChainPoint is one cycle's view of a chain in the query response.
type ChainPoint struct {
	Price   float64                              `json:"price"`
	Strikes map[string]map[string]StrikeActivity `json:"strikes"`
}

// OptionChainsResponse groups snapshots by cycle timestamp.
type OptionChainsResponse struct {
	Ticker     string                `json:"ticker"`
	Expiration string                `json:"expiration"`
	Data       map[string]ChainPoint `json:"data"`
	Count      int                   `json:"count"`
}
