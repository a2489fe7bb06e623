package reporting

import (
	"fmt"
	"strings"

	"trade-ledger-engine/internal/domain"
)

// RenderTradesCSV renders closed trades as a CSV string, one row per
// closed trade in match order.
func RenderTradesCSV(trades []domain.ClosedTrade) string {
	var sb strings.Builder

	sb.WriteString("opened_at,closed_at,symbol,qty,entry_price,exit_price,fees_usd,pnl_usd,pnl_bps\n")

	for _, tr := range trades {
		sb.WriteString(fmt.Sprintf("%d,%d,%s,%.8f,%.8f,%.8f,%.6f,%.6f,%.2f\n",
			tr.OpenedAt,
			tr.ClosedAt,
			tr.Symbol,
			tr.Qty,
			tr.EntryPrice,
			tr.ExitPrice,
			tr.FeesUsd,
			tr.PnlUsd,
			tr.PnlBps,
		))
	}

	return sb.String()
}
