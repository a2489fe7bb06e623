package domain

// WindowStats holds realized-PnL aggregates over a time window.
type WindowStats struct {
	TotalTrades       int     `json:"totalTrades"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	WinRate           float64 `json:"winRate"`
	AvgWinBps         float64 `json:"avgWinBps"`
	AvgLossBps        float64 `json:"avgLossBps"`
	NetRealizedPnlUsd float64 `json:"netRealizedPnlUsd"`
	FeesPaidUsd       float64 `json:"feesPaidUsd"`
}

// OpenPosition summarizes remaining open inventory marked to spot.
// SpotPrice and UnrealizedPnlUsd are nil when no spot price was
// obtainable; nil is distinct from "no open position".
type OpenPosition struct {
	BaseQty          float64  `json:"baseQty"`
	CostUsd          float64  `json:"costUsd"`
	AvgPrice         float64  `json:"avgPrice"`
	SpotPrice        *float64 `json:"spotPrice"`
	UnrealizedPnlUsd *float64 `json:"unrealizedPnlUsd"`
}

// EquitySummary holds the terminal state of the realized equity curve.
type EquitySummary struct {
	Running        float64 `json:"running"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
}

// Diagnostics surfaces data-quality conditions encountered while
// computing a snapshot. These never abort the computation.
type Diagnostics struct {
	SourceUsed      string             `json:"sourceUsed"` // "exchange" | "local" | "mixed" | "none"
	PartialFailures []string           `json:"partialFailures"`
	MalformedRows   int                `json:"malformedRows"`
	OversoldQty     map[string]float64 `json:"oversoldQty,omitempty"` // per-symbol sell excess
}

// Snapshot is the aggregate PnL report. It is a derived, disposable
// view recomputed fresh on every request; the fill stream is the
// source of truth.
type Snapshot struct {
	GeneratedAt int64  `json:"generatedAt"` // ms
	Symbol      string `json:"symbol"`
	RowsScanned int    `json:"rowsScanned"`
	FillsUsed   int    `json:"fillsUsed"`

	WindowStats // all-time aggregates, flattened into the top level

	OpenPosition OpenPosition  `json:"openPosition"`
	Equity       EquitySummary `json:"equity"`
	Last24h      WindowStats   `json:"last24h"`
	Diagnostics  Diagnostics   `json:"diagnostics"`
}

// SnapshotRecord is a flattened snapshot summary persisted to the
// analytics store for trend inspection. Corresponds to snapshot_history
// table in ClickHouse. Never read back as a source of truth.
type SnapshotRecord struct {
	Symbol            string
	GeneratedAt       int64 // ms
	TotalTrades       int
	Wins              int
	Losses            int
	WinRate           float64
	NetRealizedPnlUsd float64
	FeesPaidUsd       float64
	OpenBaseQty       float64
	UnrealizedPnlUsd  *float64 // nil when no spot price was available
	MaxDrawdownPct    float64
	RowsScanned       int
	FillsUsed         int
	SourceUsed        string
}
