package backtest

import (
	"time"

	"SignalBot/internal/domain/models"
)

// Run carries everything one evaluation produced.
type Run struct {
	RunID       string
	GeneratedAt time.Time
	Threshold   float64
	Window      int
	Snapshots   int
	Signals     []models.SignalRecord
	Outcomes    models.Result[models.BacktestOutcome]
	Diagnostics []string
}

// Summarize folds a run into a report. Return statistics cover evaluated
// outcomes only; an empty run reports zeros.
func Summarize(r Run) models.Report {
	rep := models.Report{
		RunID:       r.RunID,
		GeneratedAt: r.GeneratedAt,
		Threshold:   r.Threshold,
		Window:      r.Window,
		Snapshots:   r.Snapshots,
		Signals:     len(r.Signals),
		Diagnostics: r.Diagnostics,
		Outcomes:    r.Outcomes.Items,
	}
	if rep.Outcomes == nil {
		rep.Outcomes = []models.BacktestOutcome{}
	}
	if r.Outcomes.Schema != nil {
		rep.Diagnostics = append(rep.Diagnostics, r.Outcomes.Schema.Error())
	}
	if len(r.Outcomes.Excluded) > 0 {
		rep.Excluded = make(map[models.ExclusionReason]int, len(r.Outcomes.Excluded))
		for k, v := range r.Outcomes.Excluded {
			rep.Excluded[k] = v
		}
	}
	for _, s := range r.Signals {
		if s.Labels.IsBuy() {
			rep.BuySignals++
		}
	}

	rep.Evaluated = len(rep.Outcomes)
	if rep.Evaluated == 0 {
		return rep
	}
	sum := 0.0
	for i, o := range rep.Outcomes {
		if o.Success {
			rep.Successes++
		}
		sum += o.ReturnPct
		if i == 0 || o.ReturnPct > rep.MaxReturn {
			rep.MaxReturn = o.ReturnPct
		}
	}
	rep.HitRate = float64(rep.Successes) / float64(rep.Evaluated)
	rep.MeanReturn = sum / float64(rep.Evaluated)
	return rep
}
