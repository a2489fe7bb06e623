// Package normalization converts heterogeneous raw trade records (flat
// ledger rows, nested exchange fill objects) into canonical fills. The
// upstream sources are known to drift, so extraction is driven by a
// declarative alias table instead of per-caller field probing.
package normalization

import (
	"encoding/json"
	"math"
	"strings"

	"trade-ledger-engine/internal/domain"
)

// Alias tables: for each canonical field, the known key names searched
// in order. A dot in an alias descends into a nested object.
var (
	sideAliases     = []string{"side", "trade_type", "order_side", "direction"}
	priceAliases    = []string{"price", "avg_price", "average_filled_price", "fill_price", "execution_price"}
	qtyAliases      = []string{"base_qty", "base_size", "size", "filled_size", "qty", "base_amount"}
	notionalAliases = []string{"usd_notional", "quote_size", "quote_qty", "usd_value", "notional", "quote_amount"}
	feeAliases      = []string{"fee_usd", "commission", "fee", "fees", "total_fees", "fee.value"}
	timeAliases     = []string{"timestamp", "trade_time", "created_at", "time", "filled_at", "executed_at"}
	orderIDAliases  = []string{"order_id", "orderId", "client_order_id"}
	symbolAliases   = []string{"symbol", "product_id", "instrument", "market", "pair"}
)

// Normalizer converts raw records into canonical fills. It performs no
// I/O and never errors: malformed input returns nil so a single bad row
// cannot abort a whole snapshot.
type Normalizer struct {
	defaultSymbol string
}

// NewNormalizer creates a normalizer. Records carrying no symbol are
// assigned defaultSymbol; with an empty default such records are
// rejected instead.
func NewNormalizer(defaultSymbol string) *Normalizer {
	return &Normalizer{defaultSymbol: defaultSymbol}
}

// NormalizeJSON normalizes one raw JSON object. Returns nil for
// anything that does not decode to an object.
func (n *Normalizer) NormalizeJSON(raw []byte, source string) *domain.Fill {
	var rec map[string]interface{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil
	}
	return n.NormalizeRecord(rec, source)
}

// NormalizeRow normalizes a local ledger row. Flat columns are
// extracted first; anything absent falls through to the raw payload
// under the alias table.
func (n *Normalizer) NormalizeRow(row *domain.LedgerRow) *domain.Fill {
	if row == nil {
		return nil
	}

	rec := make(map[string]interface{})
	if len(row.RawPayload) > 0 {
		// Decode errors are deliberately ignored: a corrupt payload
		// just means only the flat columns are available
		json.Unmarshal(row.RawPayload, &rec)
	}

	// Flat columns take priority over payload keys
	if row.CreatedAt != 0 {
		rec["timestamp"] = row.CreatedAt
	}
	if row.Side != "" {
		rec["side"] = row.Side
	}
	if row.OrderID != "" {
		rec["order_id"] = row.OrderID
	}
	if row.Symbol != "" {
		rec["symbol"] = row.Symbol
	}
	if row.BaseSize > 0 {
		rec["base_size"] = row.BaseSize
	}
	if row.Price > 0 {
		rec["price"] = row.Price
	}
	if row.QuoteSize > 0 {
		rec["quote_size"] = row.QuoteSize
	}
	if row.FeeUsd > 0 {
		rec["fee_usd"] = row.FeeUsd
	}

	return n.NormalizeRecord(rec, domain.SourceLocal)
}

// NormalizeRecord normalizes one generic record. Returns nil when side,
// timestamp, or the price/qty pair cannot be established.
func (n *Normalizer) NormalizeRecord(rec map[string]interface{}, source string) *domain.Fill {
	if len(rec) == 0 {
		return nil
	}

	side, ok := extractSide(rec)
	if !ok {
		return nil
	}

	ts, ok := lookupTimestamp(rec, timeAliases)
	if !ok {
		return nil
	}

	symbol, ok := lookupString(rec, symbolAliases)
	if !ok {
		symbol = n.defaultSymbol
	}
	if symbol == "" {
		return nil
	}

	price, priceOK := lookupFloat(rec, priceAliases)
	qty, qtyOK := lookupFloat(rec, qtyAliases)
	notional, notionalOK := lookupFloat(rec, notionalAliases)

	// Exchange fills flag quantities quoted in the counter currency;
	// such a "size" is a notional, not a base quantity
	if quoted, _ := rec["size_in_quote"].(bool); quoted && qtyOK {
		if !notionalOK {
			notional, notionalOK = qty, true
		}
		qty, qtyOK = 0, false
	}

	// Derive the one missing value of {price, qty, notional} from the
	// other two; never guess when two are missing
	switch {
	case !priceOK && qtyOK && notionalOK && qty > 0:
		price, priceOK = notional/qty, true
	case !qtyOK && priceOK && notionalOK && price > 0:
		qty, qtyOK = notional/price, true
	case !notionalOK && priceOK && qtyOK:
		notional, notionalOK = price*qty, true
	}

	// A fill is only constructible with a positive price and quantity
	if !priceOK || !qtyOK || price <= 0 || qty <= 0 {
		return nil
	}
	if !notionalOK {
		notional = price * qty
	}

	fee := 0.0
	if v, ok := lookupFloat(rec, feeAliases); ok {
		fee = math.Abs(v)
	}

	orderID, _ := lookupString(rec, orderIDAliases)

	return &domain.Fill{
		Timestamp:   ts,
		Side:        side,
		Symbol:      symbol,
		Price:       price,
		BaseQty:     qty,
		UsdNotional: notional,
		FeeUsd:      fee,
		OrderID:     orderID,
		Source:      source,
	}
}

// extractSide normalizes the side field to exactly BUY or SELL. Any
// other value rejects the record; sides are never coerced to a default.
func extractSide(rec map[string]interface{}) (string, bool) {
	raw, ok := lookupString(rec, sideAliases)
	if !ok {
		return "", false
	}

	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case domain.SideBuy:
		return domain.SideBuy, true
	case domain.SideSell:
		return domain.SideSell, true
	default:
		return "", false
	}
}
