package metrics

import (
	"trade-ledger-engine/internal/domain"
)

// AggregateWindow computes win/loss statistics over closed trades whose
// close time is at or after sinceMs. Pass sinceMs <= 0 for all-time.
//
// Zero-PnL trades count toward the total but are neither wins nor
// losses, so winRate uses the full trade count as its denominator.
// Basis-point averages only include trades with a positive entry price;
// free acquisitions would otherwise poison the mean.
func AggregateWindow(trades []domain.ClosedTrade, sinceMs int64) domain.WindowStats {
	var stats domain.WindowStats

	var winBpsSum, lossBpsSum float64
	var winBpsCount, lossBpsCount int

	for _, tr := range trades {
		if sinceMs > 0 && tr.ClosedAt < sinceMs {
			continue
		}

		stats.TotalTrades++
		stats.NetRealizedPnlUsd += tr.PnlUsd
		stats.FeesPaidUsd += tr.FeesUsd

		switch {
		case tr.PnlUsd > 0:
			stats.Wins++
			if tr.EntryPrice > 0 {
				winBpsSum += tr.PnlBps
				winBpsCount++
			}
		case tr.PnlUsd < 0:
			stats.Losses++
			if tr.EntryPrice > 0 {
				lossBpsSum += tr.PnlBps
				lossBpsCount++
			}
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades)
	}
	if winBpsCount > 0 {
		stats.AvgWinBps = winBpsSum / float64(winBpsCount)
	}
	if lossBpsCount > 0 {
		stats.AvgLossBps = lossBpsSum / float64(lossBpsCount)
	}

	return stats
}
