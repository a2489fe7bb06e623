package reporting

import (
	"strings"
	"testing"

	"trade-ledger-engine/internal/domain"
)

func sampleSnapshot() *domain.Snapshot {
	spot := 120.0
	unrealized := 20.0
	return &domain.Snapshot{
		GeneratedAt: 1700000000000,
		Symbol:      "BTC-USD",
		RowsScanned: 10,
		FillsUsed:   8,
		WindowStats: domain.WindowStats{
			TotalTrades:       4,
			Wins:              3,
			Losses:            1,
			WinRate:           0.75,
			AvgWinBps:         1200,
			AvgLossBps:        -300,
			NetRealizedPnlUsd: 42.5,
			FeesPaidUsd:       3.25,
		},
		OpenPosition: domain.OpenPosition{
			BaseQty:          1.0,
			CostUsd:          100,
			AvgPrice:         100,
			SpotPrice:        &spot,
			UnrealizedPnlUsd: &unrealized,
		},
		Equity:  domain.EquitySummary{Running: 42.5, MaxDrawdownPct: 12.5},
		Last24h: domain.WindowStats{TotalTrades: 1, Wins: 1, WinRate: 1.0, NetRealizedPnlUsd: 5},
		Diagnostics: domain.Diagnostics{
			SourceUsed:      "mixed",
			PartialFailures: []string{"exchange fills: chunk 2 failed"},
			MalformedRows:   2,
			OversoldQty:     map[string]float64{"BTC-USD": 0.5},
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown(sampleSnapshot())

	for _, want := range []string{
		"# PnL Snapshot: BTC-USD",
		"Generated: 2023-11-14T22:13:20Z",
		"Rows Scanned: 10 | Fills Used: 8 | Source: mixed",
		"| All Time | 4 | 3 | 1 | 0.7500 |",
		"| Last 24h | 1 | 1 | 0 | 1.0000 |",
		"| Spot Price | 120.00 |",
		"| Unrealized PnL (USD) | 20.00 |",
		"| Max Drawdown | 12.50% |",
		"Malformed rows skipped: 2",
		"- BTC-USD: 0.50000000 sold beyond recorded inventory",
		"- exchange fills: chunk 2 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q\n%s", want, out)
		}
	}
}

func TestRenderMarkdownNullSpot(t *testing.T) {
	snap := sampleSnapshot()
	snap.OpenPosition.SpotPrice = nil
	snap.OpenPosition.UnrealizedPnlUsd = nil

	out := RenderMarkdown(snap)

	if !strings.Contains(out, "| Spot Price | unavailable |") {
		t.Errorf("markdown should mark missing spot as unavailable\n%s", out)
	}
	if !strings.Contains(out, "| Unrealized PnL (USD) | unavailable |") {
		t.Errorf("markdown should mark missing unrealized pnl as unavailable\n%s", out)
	}
}

func TestRenderMarkdownFlatPosition(t *testing.T) {
	snap := sampleSnapshot()
	snap.OpenPosition = domain.OpenPosition{}

	out := RenderMarkdown(snap)

	if !strings.Contains(out, "No open position.") {
		t.Errorf("markdown should report flat position\n%s", out)
	}
}

func TestRenderTradesCSV(t *testing.T) {
	trades := []domain.ClosedTrade{
		{OpenedAt: 1000, ClosedAt: 2000, Symbol: "BTC-USD", Qty: 1, EntryPrice: 100, ExitPrice: 110, FeesUsd: 2, PnlUsd: 8, PnlBps: 1000},
		{OpenedAt: 1500, ClosedAt: 3000, Symbol: "ETH-USD", Qty: 0.5, EntryPrice: 2000, ExitPrice: 1900, FeesUsd: 1, PnlUsd: -51, PnlBps: -500},
	}

	out := RenderTradesCSV(trades)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "opened_at,closed_at,symbol,qty,entry_price,exit_price,fees_usd,pnl_usd,pnl_bps" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1000,2000,BTC-USD,1.00000000,100.00000000,110.00000000,2.000000,8.000000,1000.00") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "1500,3000,ETH-USD,0.50000000,") {
		t.Errorf("unexpected second row: %s", lines[2])
	}
}

func TestRenderTradesCSVEmpty(t *testing.T) {
	out := RenderTradesCSV(nil)
	if out != "opened_at,closed_at,symbol,qty,entry_price,exit_price,fees_usd,pnl_usd,pnl_bps\n" {
		t.Errorf("empty CSV should be header only, got %q", out)
	}
}
