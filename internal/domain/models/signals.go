package models

import "time"

// Report is a consolidated view of one backtest evaluation.
// Note: no transport (http) concerns here beyond JSON field names.
type Report struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Threshold   float64                 `json:"threshold"`
	Window      int                     `json:"window"`
	Snapshots   int                     `json:"snapshots"`
	Signals     int                     `json:"signals"`
	BuySignals  int                     `json:"buy_signals"`
	Evaluated   int                     `json:"evaluated"`
	Successes   int                     `json:"successes"`
	HitRate     float64                 `json:"hit_rate"`
	MeanReturn  float64                 `json:"mean_return"`
	MaxReturn   float64                 `json:"max_return"`
	Excluded    map[ExclusionReason]int `json:"excluded,omitempty"`
	Diagnostics []string                `json:"diagnostics,omitempty"`
	Outcomes    []BacktestOutcome       `json:"outcomes"`
}
