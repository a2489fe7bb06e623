package matching

import (
	"testing"

	"trade-ledger-engine/internal/domain"
)

func TestValueOpenPosition(t *testing.T) {
	lots := []domain.Lot{
		{Symbol: "BTC-USD", Qty: 1.0, UnitCost: 100, FeeRemaining: 1, OpenedAt: 1000},
		{Symbol: "BTC-USD", Qty: 1.0, UnitCost: 200, FeeRemaining: 1, OpenedAt: 2000},
	}
	spot := 180.0

	pos := ValueOpenPosition(lots, &spot)

	if !almostEqual(pos.BaseQty, 2.0) {
		t.Errorf("baseQty = %v, want 2.0", pos.BaseQty)
	}
	if !almostEqual(pos.CostUsd, 302) {
		t.Errorf("costUsd = %v, want 302", pos.CostUsd)
	}
	if !almostEqual(pos.AvgPrice, 151) {
		t.Errorf("avgPrice = %v, want 151", pos.AvgPrice)
	}
	if pos.SpotPrice == nil || !almostEqual(*pos.SpotPrice, 180) {
		t.Errorf("spotPrice = %v, want 180", pos.SpotPrice)
	}
	if pos.UnrealizedPnlUsd == nil {
		t.Fatal("unrealizedPnlUsd should be set when spot is known")
	}
	if !almostEqual(*pos.UnrealizedPnlUsd, 58) {
		t.Errorf("unrealizedPnlUsd = %v, want 58", *pos.UnrealizedPnlUsd)
	}
}

func TestValueOpenPositionNilSpot(t *testing.T) {
	lots := []domain.Lot{
		{Symbol: "BTC-USD", Qty: 1.0, UnitCost: 100, OpenedAt: 1000},
	}

	pos := ValueOpenPosition(lots, nil)

	if pos.SpotPrice != nil {
		t.Errorf("spotPrice = %v, want nil", pos.SpotPrice)
	}
	if pos.UnrealizedPnlUsd != nil {
		t.Errorf("unrealizedPnlUsd = %v, want nil without a spot price", pos.UnrealizedPnlUsd)
	}
	if !almostEqual(pos.CostUsd, 100) {
		t.Errorf("costUsd = %v, want 100", pos.CostUsd)
	}
}

func TestValueOpenPositionEmpty(t *testing.T) {
	spot := 100.0

	pos := ValueOpenPosition(nil, &spot)

	if pos.BaseQty != 0 || pos.CostUsd != 0 || pos.AvgPrice != 0 {
		t.Errorf("empty position has non-zero totals: %+v", pos)
	}
	if pos.UnrealizedPnlUsd != nil {
		t.Errorf("flat position should report null unrealized pnl, got %v", *pos.UnrealizedPnlUsd)
	}
}
