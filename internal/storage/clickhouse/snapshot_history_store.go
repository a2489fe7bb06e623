package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"trade-ledger-engine/internal/domain"
	"trade-ledger-engine/internal/storage"
)

// SnapshotHistoryStore implements storage.SnapshotHistoryStore using ClickHouse.
// snapshot_history is a MergeTree of derived views; no uniqueness is
// enforced because every recomputation is a new observation.
type SnapshotHistoryStore struct {
	conn *Conn
}

// NewSnapshotHistoryStore creates a new SnapshotHistoryStore.
func NewSnapshotHistoryStore(conn *Conn) *SnapshotHistoryStore {
	return &SnapshotHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotHistoryStore = (*SnapshotHistoryStore)(nil)

// InsertBulk adds multiple snapshot summaries.
func (s *SnapshotHistoryStore) InsertBulk(ctx context.Context, records []*domain.SnapshotRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO snapshot_history (
			symbol, generated_at, total_trades, wins, losses, win_rate,
			net_realized_pnl_usd, fees_paid_usd, open_base_qty, unrealized_pnl_usd,
			max_drawdown_pct, rows_scanned, fills_used, source_used
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, rec := range records {
		err = batch.Append(
			rec.Symbol, uint64(rec.GeneratedAt),
			uint32(rec.TotalTrades), uint32(rec.Wins), uint32(rec.Losses), rec.WinRate,
			rec.NetRealizedPnlUsd, rec.FeesPaidUsd, rec.OpenBaseQty, rec.UnrealizedPnlUsd,
			rec.MaxDrawdownPct, uint32(rec.RowsScanned), uint32(rec.FillsUsed), rec.SourceUsed,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves summaries for a symbol within [since, until], ordered by generated_at ASC.
func (s *SnapshotHistoryStore) GetBySymbol(ctx context.Context, symbol string, since, until int64) ([]*domain.SnapshotRecord, error) {
	query := `
		SELECT symbol, generated_at, total_trades, wins, losses, win_rate,
		       net_realized_pnl_usd, fees_paid_usd, open_base_qty, unrealized_pnl_usd,
		       max_drawdown_pct, rows_scanned, fills_used, source_used
		FROM snapshot_history
		WHERE symbol = ? AND generated_at >= ? AND generated_at <= ?
		ORDER BY generated_at ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(since), uint64(until))
	if err != nil {
		return nil, fmt.Errorf("query snapshot history: %w", err)
	}
	defer rows.Close()

	return scanSnapshotRecords(rows)
}

// scanSnapshotRecords scans multiple rows into a slice of SnapshotRecord.
func scanSnapshotRecords(rows driver.Rows) ([]*domain.SnapshotRecord, error) {
	var result []*domain.SnapshotRecord

	for rows.Next() {
		var (
			rec         domain.SnapshotRecord
			generatedAt uint64
			trades      uint32
			wins        uint32
			losses      uint32
			rowsScanned uint32
			fillsUsed   uint32
		)

		err := rows.Scan(
			&rec.Symbol, &generatedAt, &trades, &wins, &losses, &rec.WinRate,
			&rec.NetRealizedPnlUsd, &rec.FeesPaidUsd, &rec.OpenBaseQty, &rec.UnrealizedPnlUsd,
			&rec.MaxDrawdownPct, &rowsScanned, &fillsUsed, &rec.SourceUsed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot record: %w", err)
		}

		rec.GeneratedAt = int64(generatedAt)
		rec.TotalTrades = int(trades)
		rec.Wins = int(wins)
		rec.Losses = int(losses)
		rec.RowsScanned = int(rowsScanned)
		rec.FillsUsed = int(fillsUsed)

		result = append(result, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot records: %w", err)
	}

	return result, nil
}
