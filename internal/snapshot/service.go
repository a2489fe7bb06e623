// Package snapshot orchestrates the full PnL computation: load ledger
// rows, normalize, reconcile against exchange fills, run FIFO matching,
// and assemble the aggregate report. The computation is best-effort by
// design: upstream failures degrade the result and are surfaced in
// diagnostics, they never abort the snapshot.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"trade-ledger-engine/internal/domain"
	"trade-ledger-engine/internal/matching"
	"trade-ledger-engine/internal/metrics"
	"trade-ledger-engine/internal/normalization"
	"trade-ledger-engine/internal/observability"
	"trade-ledger-engine/internal/reconciliation"
	"trade-ledger-engine/internal/storage"
)

const (
	// DefaultSymbol is assumed when a request names no product.
	DefaultSymbol = "BTC-USD"

	// DefaultLookback bounds the scan when the request has no since.
	DefaultLookback = 90 * 24 * time.Hour

	// MaxRows caps a single snapshot's row scan regardless of the
	// requested limit.
	MaxRows = 10000
)

// ExchangeAPI is the slice of the exchange client the service needs.
// Fills come back raw so the normalizer owns all field extraction.
type ExchangeAPI interface {
	FetchProductPrice(ctx context.Context, productID string) (float64, error)
	FetchFillsForOrders(ctx context.Context, orderIDs []string) ([]json.RawMessage, error)
}

// SpotSource serves cached spot prices, typically a websocket ticker
// feed. ok is false when no fresh price is held.
type SpotSource interface {
	Spot(productID string) (float64, bool)
}

// Request scopes one snapshot computation.
type Request struct {
	Since  int64 // ms, inclusive; 0 means now minus DefaultLookback
	Limit  int   // 0 means MaxRows; larger values are clamped
	UserID string
	Symbol string // empty means DefaultSymbol
}

// Service computes snapshots. The exchange client, spot source, and
// history store are all optional: with none of them the service still
// produces a local-only snapshot.
type Service struct {
	rows     storage.LedgerRowStore
	history  storage.SnapshotHistoryStore
	exchange ExchangeAPI
	spot     SpotSource

	baseline float64
	now      func() time.Time
	logger   *log.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHistoryStore enables persisting snapshot summaries. Write
// failures are logged and never affect the response.
func WithHistoryStore(store storage.SnapshotHistoryStore) ServiceOption {
	return func(s *Service) { s.history = store }
}

// WithExchange enables reconciliation against exchange fills and the
// REST spot price fallback.
func WithExchange(api ExchangeAPI) ServiceOption {
	return func(s *Service) { s.exchange = api }
}

// WithSpotSource sets the preferred (cached) spot price source.
func WithSpotSource(src SpotSource) ServiceOption {
	return func(s *Service) { s.spot = src }
}

// WithBaseline sets the starting equity for drawdown measurement.
func WithBaseline(baseline float64) ServiceOption {
	return func(s *Service) { s.baseline = baseline }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithLogger overrides the service logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a snapshot service over the given ledger store.
func NewService(rows storage.LedgerRowStore, opts ...ServiceOption) *Service {
	s := &Service{
		rows:   rows,
		now:    time.Now,
		logger: log.New(os.Stdout, "[SNAPSHOT] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute produces a snapshot for the request scope. The only hard
// failure is the ledger row read; everything downstream degrades into
// diagnostics instead.
func (s *Service) Compute(ctx context.Context, req Request) (*domain.Snapshot, error) {
	snap, _, err := s.ComputeDetailed(ctx, req)
	return snap, err
}

// ComputeDetailed is Compute plus the closed trades behind the
// aggregates, for report generation.
func (s *Service) ComputeDetailed(ctx context.Context, req Request) (*domain.Snapshot, []domain.ClosedTrade, error) {
	start := s.now()

	symbol := req.Symbol
	if symbol == "" {
		symbol = DefaultSymbol
	}
	since := req.Since
	if since <= 0 {
		since = start.Add(-DefaultLookback).UnixMilli()
	}
	limit := req.Limit
	if limit <= 0 || limit > MaxRows {
		limit = MaxRows
	}

	rows, err := s.rows.GetByTimeRange(ctx, storage.LedgerRowFilter{
		Since:  since,
		UserID: req.UserID,
		Symbol: symbol,
		Limit:  limit,
	})
	if err != nil {
		observability.RecordSnapshotRun("error", time.Since(start).Seconds())
		return nil, nil, fmt.Errorf("loading ledger rows: %w", err)
	}

	normalizer := normalization.NewNormalizer(symbol)

	var local []domain.Fill
	var malformed int
	for _, row := range rows {
		fill := normalizer.NormalizeRow(row)
		if fill == nil {
			malformed++
			continue
		}
		local = append(local, *fill)
	}

	var partialFailures []string

	exchangeFills, failures := s.fetchExchangeFills(ctx, normalizer, local)
	partialFailures = append(partialFailures, failures...)

	fills, sourceUsed := reconciliation.Reconcile(local, exchangeFills)

	// Stable sort by timestamp only: equal-timestamp fills keep the
	// reconciled order, which is what makes reruns deterministic.
	sort.SliceStable(fills, func(i, j int) bool {
		return fills[i].Timestamp < fills[j].Timestamp
	})

	trades, openLots, matchDiag := matching.Match(fills)

	spot := s.fetchSpot(ctx, symbol, &partialFailures)
	position := matching.ValueOpenPosition(openLots[symbol], spot)

	curve := metrics.BuildEquityCurve(trades, s.baseline)
	allTime := metrics.AggregateWindow(trades, 0)
	last24h := metrics.AggregateWindow(trades, start.Add(-24*time.Hour).UnixMilli())

	snap := &domain.Snapshot{
		GeneratedAt:  start.UnixMilli(),
		Symbol:       symbol,
		RowsScanned:  len(rows),
		FillsUsed:    len(fills),
		WindowStats:  allTime,
		OpenPosition: position,
		Equity:       curve.Summary(),
		Last24h:      last24h,
		Diagnostics: domain.Diagnostics{
			SourceUsed:      sourceUsed,
			PartialFailures: partialFailures,
			MalformedRows:   malformed,
			OversoldQty:     matchDiag.OversoldQty,
		},
	}

	observability.RecordRowsScanned(len(rows))
	observability.RecordMalformedRows(malformed)
	observability.RecordFillsUsed(len(fills))
	if matchDiag.Oversold() {
		observability.RecordOversell()
	}

	status := "ok"
	if len(partialFailures) > 0 {
		status = "partial"
	}
	observability.RecordSnapshotRun(status, time.Since(start).Seconds())

	s.persistHistory(ctx, snap)

	return snap, trades, nil
}

// fetchExchangeFills pulls fills for every order ID seen in the local
// fills and groups them by order. Failures are reported, not returned:
// a dead exchange just means the snapshot runs on local data.
func (s *Service) fetchExchangeFills(ctx context.Context, normalizer *normalization.Normalizer, local []domain.Fill) (map[string][]domain.Fill, []string) {
	if s.exchange == nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	var orderIDs []string
	for _, fill := range local {
		if fill.OrderID == "" || seen[fill.OrderID] {
			continue
		}
		seen[fill.OrderID] = true
		orderIDs = append(orderIDs, fill.OrderID)
	}
	if len(orderIDs) == 0 {
		return nil, nil
	}

	raw, err := s.exchange.FetchFillsForOrders(ctx, orderIDs)
	var failures []string
	if err != nil {
		// Partial errors still carry usable fills; total failures
		// carry none and the reconciler falls back to local data
		failures = append(failures, fmt.Sprintf("exchange fills: %v", err))
		s.logger.Printf("exchange fill fetch degraded: %v", err)
	}
	if len(raw) == 0 {
		return nil, failures
	}

	grouped := make(map[string][]domain.Fill)
	for _, msg := range raw {
		fill := normalizer.NormalizeJSON(msg, domain.SourceExchange)
		if fill == nil || fill.OrderID == "" {
			continue
		}
		grouped[fill.OrderID] = append(grouped[fill.OrderID], *fill)
	}
	return grouped, failures
}

// fetchSpot tries the cached ticker feed first, then one REST lookup.
// Returns nil when no price is obtainable so unrealized PnL renders as
// null instead of a fake zero.
func (s *Service) fetchSpot(ctx context.Context, symbol string, partialFailures *[]string) *float64 {
	if s.spot != nil {
		if price, ok := s.spot.Spot(symbol); ok {
			return &price
		}
	}
	if s.exchange == nil {
		return nil
	}
	price, err := s.exchange.FetchProductPrice(ctx, symbol)
	if err != nil {
		*partialFailures = append(*partialFailures, fmt.Sprintf("spot price: %v", err))
		s.logger.Printf("spot price lookup failed for %s: %v", symbol, err)
		return nil
	}
	return &price
}

// persistHistory writes the snapshot summary to the analytics store.
// Log-only on failure; history is a derived view.
func (s *Service) persistHistory(ctx context.Context, snap *domain.Snapshot) {
	if s.history == nil {
		return
	}
	record := &domain.SnapshotRecord{
		Symbol:            snap.Symbol,
		GeneratedAt:       snap.GeneratedAt,
		TotalTrades:       snap.TotalTrades,
		Wins:              snap.Wins,
		Losses:            snap.Losses,
		WinRate:           snap.WinRate,
		NetRealizedPnlUsd: snap.NetRealizedPnlUsd,
		FeesPaidUsd:       snap.FeesPaidUsd,
		OpenBaseQty:       snap.OpenPosition.BaseQty,
		UnrealizedPnlUsd:  snap.OpenPosition.UnrealizedPnlUsd,
		MaxDrawdownPct:    snap.Equity.MaxDrawdownPct,
		RowsScanned:       snap.RowsScanned,
		FillsUsed:         snap.FillsUsed,
		SourceUsed:        snap.Diagnostics.SourceUsed,
	}
	if err := s.history.InsertBulk(ctx, []*domain.SnapshotRecord{record}); err != nil {
		s.logger.Printf("snapshot history write failed: %v", err)
	}
}
