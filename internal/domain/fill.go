package domain

// Fill represents a single executed trade leg in canonical form.
// Constructed only by the normalizer; a Fill always has Price > 0 and
// BaseQty > 0 (source records that cannot establish both are rejected,
// never zero-defaulted).
type Fill struct {
	Timestamp   int64   // execution time, Unix milliseconds
	Side        string  // "BUY" | "SELL"
	Symbol      string  // instrument id, e.g. "BTC-USD"
	Price       float64 // quote currency per unit
	BaseQty     float64 // units of base asset
	UsdNotional float64 // price * base_qty
	FeeUsd      float64 // non-negative; 0 when the source carried no fee
	OrderID     string  // optional, used for provenance and exchange lookups
	Source      string  // "local" | "exchange" provenance
}

// Fill side constants
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Fill source constants
const (
	SourceLocal    = "local"
	SourceExchange = "exchange"
)
