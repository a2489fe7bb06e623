package matching

import (
	"trade-ledger-engine/internal/domain"
)

// ValueOpenPosition collapses a symbol's remaining lots into a single
// open position. Cost basis is fee-inclusive: each lot contributes
// qty*unitCost plus whatever fee share it still carries.
//
// spot may be nil when no price is available; unrealized PnL is then
// reported as null rather than a misleading zero.
func ValueOpenPosition(lots []domain.Lot, spot *float64) domain.OpenPosition {
	var pos domain.OpenPosition

	for _, lot := range lots {
		pos.BaseQty += lot.Qty
		pos.CostUsd += lot.Qty*lot.UnitCost + lot.FeeRemaining
	}

	if pos.BaseQty > 0 {
		pos.AvgPrice = pos.CostUsd / pos.BaseQty
	}

	if spot != nil {
		s := *spot
		pos.SpotPrice = &s
		if pos.BaseQty > 0 {
			unrealized := pos.BaseQty*s - pos.CostUsd
			pos.UnrealizedPnlUsd = &unrealized
		}
	}

	return pos
}
