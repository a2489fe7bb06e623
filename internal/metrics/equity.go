// Package metrics computes derived performance statistics from closed
// trades: the realized equity curve with drawdown tracking, and
// windowed win/loss aggregates.
package metrics

import (
	"trade-ledger-engine/internal/domain"
)

// EquityPoint is the cumulative realized equity after one closed trade.
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// EquityCurve is the realized equity series plus summary figures.
type EquityCurve struct {
	Points         []EquityPoint `json:"points"`
	Running        float64       `json:"running"`
	MaxDrawdownPct float64       `json:"maxDrawdownPct"`
}

// BuildEquityCurve folds closed trades (assumed ordered by close time)
// into a cumulative realized PnL series starting from baseline.
//
// Drawdown is measured against the running peak and only when the peak
// is positive; with the default zero baseline a losing streak from the
// start reports no drawdown percentage rather than a division by zero.
// A drawdown can exceed 100% when equity falls below zero.
func BuildEquityCurve(trades []domain.ClosedTrade, baseline float64) EquityCurve {
	curve := EquityCurve{
		Points:  make([]EquityPoint, 0, len(trades)),
		Running: baseline,
	}

	peak := baseline
	for _, tr := range trades {
		curve.Running += tr.PnlUsd
		curve.Points = append(curve.Points, EquityPoint{
			Timestamp: tr.ClosedAt,
			Equity:    curve.Running,
		})

		if curve.Running > peak {
			peak = curve.Running
		}
		if peak > 0 {
			drawdown := (peak - curve.Running) / peak * 100
			if drawdown > curve.MaxDrawdownPct {
				curve.MaxDrawdownPct = drawdown
			}
		}
	}

	return curve
}

// Summary reduces the curve to the fields exposed in a snapshot.
func (c EquityCurve) Summary() domain.EquitySummary {
	return domain.EquitySummary{
		Running:        c.Running,
		MaxDrawdownPct: c.MaxDrawdownPct,
	}
}
