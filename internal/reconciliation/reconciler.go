// Package reconciliation decides which fill source to trust per
// logical trade. Locally logged rows are written at request time and
// can miss async fee and settlement corrections; the exchange is
// authoritative after the fact, so exchange fills override local rows
// for every order id they cover.
package reconciliation

import (
	"sort"

	"trade-ledger-engine/internal/domain"
)

// Source labels for snapshot diagnostics.
const (
	SourceExchange = "exchange"
	SourceLocal    = "local"
	SourceMixed    = "mixed"
	SourceNone     = "none"
)

// Reconcile merges local fills with exchange fills keyed by order id.
// Exchange fills win for every order id they cover; local fills are
// kept for order ids the exchange did not return (e.g. orders outside
// the provider's retention window) and for rows carrying no order id
// at all. With an empty exchange set everything local is kept.
//
// Pure merge over two already-normalized collections; performs no I/O.
// Output order is deterministic for identical inputs: exchange groups
// in sorted order-id order, then local fills in their input order. The
// caller sorts the merged result by timestamp before matching.
func Reconcile(local []domain.Fill, exchange map[string][]domain.Fill) ([]domain.Fill, string) {
	if len(exchange) == 0 {
		if len(local) == 0 {
			return nil, SourceNone
		}
		return append([]domain.Fill(nil), local...), SourceLocal
	}

	orderIDs := make([]string, 0, len(exchange))
	for orderID := range exchange {
		orderIDs = append(orderIDs, orderID)
	}
	sort.Strings(orderIDs)

	var result []domain.Fill
	for _, orderID := range orderIDs {
		result = append(result, exchange[orderID]...)
	}

	localKept := 0
	for _, f := range local {
		if f.OrderID != "" {
			if _, covered := exchange[f.OrderID]; covered {
				continue
			}
		}
		result = append(result, f)
		localKept++
	}

	if localKept > 0 {
		return result, SourceMixed
	}
	return result, SourceExchange
}
