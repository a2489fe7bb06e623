// Package matching implements strict FIFO lot accounting: buys open
// lots, sells close the oldest lots first, and each match step emits
// one immutable closed trade with fees prorated from both sides.
package matching

import (
	"trade-ledger-engine/internal/domain"
)

// Diagnostics records data-quality conditions observed while matching.
// Oversells are tolerated, never fatal: the excess quantity is excluded
// from PnL and reported here.
type Diagnostics struct {
	// OversoldQty is the total sell quantity per symbol that had no
	// lot inventory to match against.
	OversoldQty map[string]float64
	// SkippedFills counts fills ignored for having a side other than
	// BUY or SELL (cannot happen with normalizer output; guards
	// against hand-built input).
	SkippedFills int
}

// Oversold reports whether any sell exceeded available inventory.
func (d Diagnostics) Oversold() bool {
	return len(d.OversoldQty) > 0
}

// lotState is a mutable lot inside the matcher. FeeRemaining shrinks in
// proportion to the quantity consumed so the fee is spread across every
// closed trade the lot participates in.
type lotState struct {
	qty          float64
	unitCost     float64
	feeRemaining float64
	openedAt     int64
}

// Match consumes fills ordered by timestamp ascending and produces
// closed trades plus remaining open lots per symbol.
//
// Fills at equal timestamps are processed in the given input order;
// the caller must stable-sort by timestamp only, never by a secondary
// key, or determinism is lost. Queues are partitioned strictly by
// symbol: cross-symbol fills never match against each other.
func Match(fills []domain.Fill) ([]domain.ClosedTrade, map[string][]domain.Lot, Diagnostics) {
	queues := make(map[string][]*lotState)
	var trades []domain.ClosedTrade
	diag := Diagnostics{OversoldQty: make(map[string]float64)}

	for _, fill := range fills {
		switch fill.Side {
		case domain.SideBuy:
			queues[fill.Symbol] = append(queues[fill.Symbol], &lotState{
				qty:          fill.BaseQty,
				unitCost:     fill.Price,
				feeRemaining: fill.FeeUsd,
				openedAt:     fill.Timestamp,
			})

		case domain.SideSell:
			trades = append(trades, matchSell(queues, fill, &diag)...)

		default:
			diag.SkippedFills++
		}
	}

	remaining := make(map[string][]domain.Lot)
	for symbol, queue := range queues {
		if len(queue) == 0 {
			continue
		}
		lots := make([]domain.Lot, len(queue))
		for i, lot := range queue {
			lots[i] = domain.Lot{
				Symbol:       symbol,
				Qty:          lot.qty,
				UnitCost:     lot.unitCost,
				FeeRemaining: lot.feeRemaining,
				OpenedAt:     lot.openedAt,
			}
		}
		remaining[symbol] = lots
	}

	if len(diag.OversoldQty) == 0 {
		diag.OversoldQty = nil
	}

	return trades, remaining, diag
}

// matchSell consumes lots from the head of the symbol's queue until the
// sell is exhausted or inventory runs out.
func matchSell(queues map[string][]*lotState, sell domain.Fill, diag *Diagnostics) []domain.ClosedTrade {
	var trades []domain.ClosedTrade

	remaining := sell.BaseQty
	totalSellQty := sell.BaseQty

	queue := queues[sell.Symbol]
	for remaining > 0 && len(queue) > 0 {
		lot := queue[0]

		matched := lot.qty
		if remaining < matched {
			matched = remaining
		}

		// Prorate the lot's fee by the share of the lot consumed and
		// the sell's fee by the share of the sell consumed
		buyFee := lot.feeRemaining * (matched / lot.qty)
		sellFee := sell.FeeUsd * (matched / totalSellQty)

		trade := domain.ClosedTrade{
			OpenedAt:   lot.openedAt,
			ClosedAt:   sell.Timestamp,
			Symbol:     sell.Symbol,
			Qty:        matched,
			EntryPrice: lot.unitCost,
			ExitPrice:  sell.Price,
			FeesUsd:    buyFee + sellFee,
			PnlUsd:     (sell.Price-lot.unitCost)*matched - buyFee - sellFee,
		}
		if lot.unitCost > 0 {
			trade.PnlBps = (sell.Price - lot.unitCost) / lot.unitCost * 10000
		}
		trades = append(trades, trade)

		lot.qty -= matched
		lot.feeRemaining -= buyFee
		remaining -= matched

		if lot.qty <= 0 {
			queue = queue[1:]
		}
	}
	queues[sell.Symbol] = queue

	// Selling more than was ever bought: a data-quality condition, not
	// an error; the excess stays unmatched and out of PnL
	if remaining > 0 {
		diag.OversoldQty[sell.Symbol] += remaining
	}

	return trades
}
