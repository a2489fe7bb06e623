// Package reporting renders snapshots and closed trades into
// human-readable artifacts: a Markdown summary and a trade-level CSV.
package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"trade-ledger-engine/internal/domain"
)

// RenderMarkdown renders a snapshot as a Markdown report.
func RenderMarkdown(snap *domain.Snapshot) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# PnL Snapshot: %s\n\n", snap.Symbol))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n",
		time.UnixMilli(snap.GeneratedAt).UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Rows Scanned: %d | Fills Used: %d | Source: %s\n\n",
		snap.RowsScanned, snap.FillsUsed, snap.Diagnostics.SourceUsed))

	// Realized performance
	sb.WriteString("## Realized Performance\n\n")
	sb.WriteString("| Window | Trades | Wins | Losses | Win Rate | Avg Win (bps) | Avg Loss (bps) | Net PnL (USD) | Fees (USD) |\n")
	sb.WriteString("|--------|--------|------|--------|----------|---------------|----------------|---------------|------------|\n")
	writeWindowRow(&sb, "All Time", snap.WindowStats)
	writeWindowRow(&sb, "Last 24h", snap.Last24h)
	sb.WriteString("\n")

	// Open position
	sb.WriteString("## Open Position\n\n")
	if snap.OpenPosition.BaseQty > 0 {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Base Qty | %.8f |\n", snap.OpenPosition.BaseQty))
		sb.WriteString(fmt.Sprintf("| Cost (USD) | %.2f |\n", snap.OpenPosition.CostUsd))
		sb.WriteString(fmt.Sprintf("| Avg Price | %.2f |\n", snap.OpenPosition.AvgPrice))
		if snap.OpenPosition.SpotPrice != nil {
			sb.WriteString(fmt.Sprintf("| Spot Price | %.2f |\n", *snap.OpenPosition.SpotPrice))
		} else {
			sb.WriteString("| Spot Price | unavailable |\n")
		}
		if snap.OpenPosition.UnrealizedPnlUsd != nil {
			sb.WriteString(fmt.Sprintf("| Unrealized PnL (USD) | %.2f |\n", *snap.OpenPosition.UnrealizedPnlUsd))
		} else {
			sb.WriteString("| Unrealized PnL (USD) | unavailable |\n")
		}
	} else {
		sb.WriteString("No open position.\n")
	}
	sb.WriteString("\n")

	// Equity
	sb.WriteString("## Equity\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Running Equity (USD) | %.2f |\n", snap.Equity.Running))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", snap.Equity.MaxDrawdownPct))
	sb.WriteString("\n")

	// Diagnostics
	sb.WriteString("## Diagnostics\n\n")
	sb.WriteString(fmt.Sprintf("Malformed rows skipped: %d\n\n", snap.Diagnostics.MalformedRows))
	if len(snap.Diagnostics.OversoldQty) > 0 {
		sb.WriteString("### Oversold Quantities\n\n")
		symbols := make([]string, 0, len(snap.Diagnostics.OversoldQty))
		for symbol := range snap.Diagnostics.OversoldQty {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			sb.WriteString(fmt.Sprintf("- %s: %.8f sold beyond recorded inventory\n",
				symbol, snap.Diagnostics.OversoldQty[symbol]))
		}
		sb.WriteString("\n")
	}
	if len(snap.Diagnostics.PartialFailures) > 0 {
		sb.WriteString("### Partial Failures\n\n")
		for _, failure := range snap.Diagnostics.PartialFailures {
			sb.WriteString(fmt.Sprintf("- %s\n", failure))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeWindowRow(sb *strings.Builder, label string, w domain.WindowStats) {
	sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.4f | %.2f | %.2f | %.2f | %.2f |\n",
		label, w.TotalTrades, w.Wins, w.Losses, w.WinRate,
		w.AvgWinBps, w.AvgLossBps, w.NetRealizedPnlUsd, w.FeesPaidUsd))
}
