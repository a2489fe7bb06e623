package metrics

import (
	"math"
	"testing"

	"trade-ledger-engine/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func closed(ts int64, pnl float64) domain.ClosedTrade {
	return domain.ClosedTrade{ClosedAt: ts, PnlUsd: pnl}
}

func TestBuildEquityCurve(t *testing.T) {
	trades := []domain.ClosedTrade{
		closed(1000, 10),
		closed(2000, 5),
		closed(3000, -20),
		closed(4000, 3),
	}

	curve := BuildEquityCurve(trades, 0)

	if len(curve.Points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(curve.Points))
	}
	wantEquity := []float64{10, 15, -5, -2}
	for i, want := range wantEquity {
		if !almostEqual(curve.Points[i].Equity, want) {
			t.Errorf("point %d equity = %v, want %v", i, curve.Points[i].Equity, want)
		}
	}
	if !almostEqual(curve.Running, -2) {
		t.Errorf("running = %v, want -2", curve.Running)
	}
	// Peak 15, trough -5: drawdown runs past 100%.
	if !almostEqual(curve.MaxDrawdownPct, 133.333333) {
		t.Errorf("maxDrawdownPct = %v, want 133.333333", curve.MaxDrawdownPct)
	}
}

func TestBuildEquityCurveNoDrawdown(t *testing.T) {
	trades := []domain.ClosedTrade{
		closed(1000, 5),
		closed(2000, 5),
	}

	curve := BuildEquityCurve(trades, 0)

	if curve.MaxDrawdownPct != 0 {
		t.Errorf("maxDrawdownPct = %v, want 0 for monotonic gains", curve.MaxDrawdownPct)
	}
	if !almostEqual(curve.Running, 10) {
		t.Errorf("running = %v, want 10", curve.Running)
	}
}

func TestBuildEquityCurveNegativePeakSkipsDrawdown(t *testing.T) {
	// Losses from a zero baseline never establish a positive peak, so
	// the percentage stays zero instead of dividing by zero.
	trades := []domain.ClosedTrade{
		closed(1000, -10),
		closed(2000, -5),
	}

	curve := BuildEquityCurve(trades, 0)

	if curve.MaxDrawdownPct != 0 {
		t.Errorf("maxDrawdownPct = %v, want 0 with no positive peak", curve.MaxDrawdownPct)
	}
	if !almostEqual(curve.Running, -15) {
		t.Errorf("running = %v, want -15", curve.Running)
	}
}

func TestBuildEquityCurveBaseline(t *testing.T) {
	trades := []domain.ClosedTrade{
		closed(1000, -50),
	}

	curve := BuildEquityCurve(trades, 100)

	if !almostEqual(curve.Running, 50) {
		t.Errorf("running = %v, want 50", curve.Running)
	}
	if !almostEqual(curve.MaxDrawdownPct, 50) {
		t.Errorf("maxDrawdownPct = %v, want 50", curve.MaxDrawdownPct)
	}
}

func TestBuildEquityCurveEmpty(t *testing.T) {
	curve := BuildEquityCurve(nil, 0)

	if len(curve.Points) != 0 {
		t.Errorf("expected no points, got %d", len(curve.Points))
	}
	if curve.Running != 0 || curve.MaxDrawdownPct != 0 {
		t.Errorf("empty curve has non-zero summary: %+v", curve)
	}
}
