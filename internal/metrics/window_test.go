package metrics

import (
	"testing"

	"trade-ledger-engine/internal/domain"
)

func TestAggregateWindow(t *testing.T) {
	trades := []domain.ClosedTrade{
		{ClosedAt: 1000, EntryPrice: 100, PnlUsd: 10, PnlBps: 1000, FeesUsd: 1},
		{ClosedAt: 2000, EntryPrice: 100, PnlUsd: -5, PnlBps: -500, FeesUsd: 1},
		{ClosedAt: 3000, EntryPrice: 100, PnlUsd: 20, PnlBps: 2000, FeesUsd: 2},
		{ClosedAt: 4000, EntryPrice: 100, PnlUsd: 0, PnlBps: 0, FeesUsd: 0.5},
	}

	stats := AggregateWindow(trades, 0)

	if stats.TotalTrades != 4 {
		t.Errorf("totalTrades = %d, want 4", stats.TotalTrades)
	}
	if stats.Wins != 2 || stats.Losses != 1 {
		t.Errorf("wins/losses = %d/%d, want 2/1", stats.Wins, stats.Losses)
	}
	if !almostEqual(stats.WinRate, 0.5) {
		t.Errorf("winRate = %v, want 0.5 (zero-pnl trade dilutes)", stats.WinRate)
	}
	if !almostEqual(stats.AvgWinBps, 1500) {
		t.Errorf("avgWinBps = %v, want 1500", stats.AvgWinBps)
	}
	if !almostEqual(stats.AvgLossBps, -500) {
		t.Errorf("avgLossBps = %v, want -500", stats.AvgLossBps)
	}
	if !almostEqual(stats.NetRealizedPnlUsd, 25) {
		t.Errorf("netRealizedPnlUsd = %v, want 25", stats.NetRealizedPnlUsd)
	}
	if !almostEqual(stats.FeesPaidUsd, 4.5) {
		t.Errorf("feesPaidUsd = %v, want 4.5", stats.FeesPaidUsd)
	}
}

func TestAggregateWindowSince(t *testing.T) {
	trades := []domain.ClosedTrade{
		{ClosedAt: 1000, EntryPrice: 100, PnlUsd: 10, PnlBps: 1000},
		{ClosedAt: 5000, EntryPrice: 100, PnlUsd: -5, PnlBps: -500},
	}

	stats := AggregateWindow(trades, 2000)

	if stats.TotalTrades != 1 {
		t.Fatalf("totalTrades = %d, want 1", stats.TotalTrades)
	}
	if stats.Losses != 1 || stats.Wins != 0 {
		t.Errorf("wins/losses = %d/%d, want 0/1", stats.Wins, stats.Losses)
	}
}

func TestAggregateWindowZeroEntryExcludedFromBps(t *testing.T) {
	trades := []domain.ClosedTrade{
		{ClosedAt: 1000, EntryPrice: 0, PnlUsd: 50, PnlBps: 0},
		{ClosedAt: 2000, EntryPrice: 100, PnlUsd: 10, PnlBps: 1000},
	}

	stats := AggregateWindow(trades, 0)

	if stats.Wins != 2 {
		t.Errorf("wins = %d, want 2", stats.Wins)
	}
	if !almostEqual(stats.AvgWinBps, 1000) {
		t.Errorf("avgWinBps = %v, want 1000 (zero-entry trade excluded)", stats.AvgWinBps)
	}
}

func TestAggregateWindowEmpty(t *testing.T) {
	stats := AggregateWindow(nil, 0)

	if stats.TotalTrades != 0 || stats.WinRate != 0 {
		t.Errorf("empty window has non-zero stats: %+v", stats)
	}
}
