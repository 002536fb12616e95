package models

// Requests for HTTP endpoints. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	Asset string `query:"asset" json:"asset"`
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"5000" validate:"gte=1,lte=50000"`
}

// BacktestRequest leaves Threshold and Window without defaults: an absent
// threshold and a zero window take the configured values, while an explicit
// threshold=0 is honored.
type BacktestRequest struct {
	Asset     string  `query:"asset" json:"asset"`
	From      string  `query:"from" json:"from"`
	To        string  `query:"to" json:"to"`
	Threshold float64 `query:"threshold" json:"threshold" validate:"gt=-1,lt=10"`
	Window    int     `query:"window" json:"window" validate:"gte=0,lte=1000"`
}
