package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"trade-ledger-engine/internal/domain"
	"trade-ledger-engine/internal/storage"
)

// LedgerRowStore implements storage.LedgerRowStore using PostgreSQL.
type LedgerRowStore struct {
	pool *Pool
}

// NewLedgerRowStore creates a new LedgerRowStore.
func NewLedgerRowStore(pool *Pool) *LedgerRowStore {
	return &LedgerRowStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerRowStore = (*LedgerRowStore)(nil)

const insertLedgerRowQuery = `
	INSERT INTO ledger_rows (
		user_id, created_at, side, order_id, symbol, base_size, price, quote_size, fee_usd, raw_payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// Insert adds a new row. Returns ErrDuplicateKey if (user_id, order_id, created_at, side) exists.
func (s *LedgerRowStore) Insert(ctx context.Context, row *domain.LedgerRow) error {
	_, err := s.pool.Exec(ctx, insertLedgerRowQuery,
		row.UserID,
		row.CreatedAt,
		row.Side,
		row.OrderID,
		row.Symbol,
		row.BaseSize,
		row.Price,
		row.QuoteSize,
		row.FeeUsd,
		rawPayloadArg(row.RawPayload),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert ledger row: %w", err)
	}
	return nil
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *LedgerRowStore) InsertBulk(ctx context.Context, rows []*domain.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		_, err := tx.Exec(ctx, insertLedgerRowQuery,
			row.UserID,
			row.CreatedAt,
			row.Side,
			row.OrderID,
			row.Symbol,
			row.BaseSize,
			row.Price,
			row.QuoteSize,
			row.FeeUsd,
			rawPayloadArg(row.RawPayload),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert ledger row in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves rows matching the filter, ordered by created_at ASC.
func (s *LedgerRowStore) GetByTimeRange(ctx context.Context, filter storage.LedgerRowFilter) ([]*domain.LedgerRow, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, user_id, created_at, side, order_id, symbol, base_size, price, quote_size, fee_usd, raw_payload
		FROM ledger_rows
		WHERE created_at >= $1
	`)

	args := []interface{}{filter.Since}

	if filter.Until > 0 {
		args = append(args, filter.Until)
		sb.WriteString(fmt.Sprintf(" AND created_at <= $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		sb.WriteString(fmt.Sprintf(" AND user_id = $%d", len(args)))
	}
	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		sb.WriteString(fmt.Sprintf(" AND symbol = $%d", len(args)))
	}

	sb.WriteString(" ORDER BY created_at ASC, id ASC")

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("get ledger rows by time range: %w", err)
	}
	defer rows.Close()

	return scanLedgerRows(rows)
}

// rawPayloadArg converts an empty payload to NULL for the JSONB column.
func rawPayloadArg(payload []byte) interface{} {
	if len(payload) == 0 {
		return nil
	}
	return payload
}

// scanLedgerRows scans multiple rows into a slice of LedgerRow.
func scanLedgerRows(rows pgx.Rows) ([]*domain.LedgerRow, error) {
	var result []*domain.LedgerRow

	for rows.Next() {
		var row domain.LedgerRow

		err := rows.Scan(
			&row.ID,
			&row.UserID,
			&row.CreatedAt,
			&row.Side,
			&row.OrderID,
			&row.Symbol,
			&row.BaseSize,
			&row.Price,
			&row.QuoteSize,
			&row.FeeUsd,
			&row.RawPayload,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}

		result = append(result, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}

	return result, nil
}
