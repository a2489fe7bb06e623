package storage

import (
	"context"

	"trade-ledger-engine/internal/domain"
)

// LedgerRowFilter bounds a ledger row query. Since/Until are inclusive
// millisecond timestamps; a zero Until means "no upper bound". UserID
// and Symbol filter when non-empty. Limit caps the number of rows
// returned (0 means no cap) so compute cost stays proportional to the
// requested scope.
type LedgerRowFilter struct {
	Since  int64
	Until  int64
	UserID string
	Symbol string
	Limit  int
}

// LedgerRowStore provides access to ledger_rows storage. Rows are
// append-only: inserted once at request time, never updated.
type LedgerRowStore interface {
	// Insert adds a new row. Returns ErrDuplicateKey if
	// (user_id, order_id, created_at, side) exists.
	Insert(ctx context.Context, row *domain.LedgerRow) error

	// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, rows []*domain.LedgerRow) error

	// GetByTimeRange retrieves rows matching the filter, ordered by created_at ASC.
	GetByTimeRange(ctx context.Context, filter LedgerRowFilter) ([]*domain.LedgerRow, error)
}

// SnapshotHistoryStore provides access to snapshot_history storage.
// Purely a derived view; write failures are logged by callers and never
// affect the snapshot response.
type SnapshotHistoryStore interface {
	// InsertBulk adds multiple snapshot summaries.
	InsertBulk(ctx context.Context, records []*domain.SnapshotRecord) error

	// GetBySymbol retrieves summaries for a symbol within [since, until], ordered by generated_at ASC.
	GetBySymbol(ctx context.Context, symbol string, since, until int64) ([]*domain.SnapshotRecord, error)
}
