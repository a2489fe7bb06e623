package domain

// Lot is an open BUY allocation awaiting a matching SELL.
// UnitCost is the raw fill price per unit; FeeRemaining carries the
// unconsumed portion of the buy fee so that fee-inclusive cost basis is
// Qty*UnitCost + FeeRemaining. Lots live in a FIFO queue per symbol and
// are never re-ordered.
type Lot struct {
	Symbol       string
	Qty          float64 // remaining unmatched quantity
	UnitCost     float64 // buy fill price per unit
	FeeRemaining float64 // prorated-down as the lot is consumed
	OpenedAt     int64   // buy fill timestamp (ms)
}

// ClosedTrade is the result of matching part or all of a Lot against
// part or all of a SELL fill. Immutable after creation.
type ClosedTrade struct {
	OpenedAt   int64 // entry fill timestamp (ms)
	ClosedAt   int64 // exit fill timestamp (ms)
	Symbol     string
	Qty        float64 // matched quantity, <= both sides
	EntryPrice float64 // lot unit cost (raw buy price)
	ExitPrice  float64 // sell fill price
	FeesUsd    float64 // prorated buy fee + prorated sell fee
	PnlUsd     float64 // (exit-entry)*qty - FeesUsd
	PnlBps     float64 // (exit-entry)/entry * 10_000; 0 when entry is 0
}
