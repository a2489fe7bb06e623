package domain

// LedgerRow is a raw trade record as logged by the dashboard at request
// time. Corresponds to ledger_rows table in PostgreSQL. Columns drift
// between writer versions; anything missing from the flat columns may
// still be present in RawPayload under an alternate key name, so the
// normalizer inspects both.
type LedgerRow struct {
	ID         int64   // BIGSERIAL primary key
	UserID     string  // owning account, empty for legacy rows
	CreatedAt  int64   // record creation timestamp (ms)
	Side       string  // free-form; normalized later
	OrderID    string  // venue order identifier, may be empty
	Symbol     string  // instrument id
	BaseSize   float64 // base asset amount, 0 when unknown
	Price      float64 // execution price, 0 when unknown
	QuoteSize  float64 // quote notional, 0 when unknown
	FeeUsd     float64 // fee in USD, 0 when unknown
	RawPayload []byte  // free-form JSON written by the original client
}
