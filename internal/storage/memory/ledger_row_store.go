package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trade-ledger-engine/internal/domain"
	"trade-ledger-engine/internal/storage"
)

// LedgerRowStore is an in-memory implementation of storage.LedgerRowStore.
type LedgerRowStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.LedgerRow // keyed by composite key
	nextID int64
}

// NewLedgerRowStore creates a new in-memory ledger row store.
func NewLedgerRowStore() *LedgerRowStore {
	return &LedgerRowStore{
		data:   make(map[string]*domain.LedgerRow),
		nextID: 1,
	}
}

// rowKey generates a unique key for a ledger row.
func rowKey(userID, orderID string, createdAt int64, side string) string {
	return fmt.Sprintf("%s|%s|%d|%s", userID, orderID, createdAt, side)
}

// Insert adds a new row. Returns ErrDuplicateKey if exists.
func (s *LedgerRowStore) Insert(_ context.Context, row *domain.LedgerRow) error {
	if row == nil || row.Symbol == "" {
		return storage.ErrInvalidInput
	}

	key := rowKey(row.UserID, row.OrderID, row.CreatedAt, row.Side)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *row
	copy.ID = s.nextID
	s.nextID++
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *LedgerRowStore) InsertBulk(_ context.Context, rows []*domain.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(rows))

	// First pass: check for duplicates (existing + intra-batch)
	for _, row := range rows {
		if row == nil || row.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := rowKey(row.UserID, row.OrderID, row.CreatedAt, row.Side)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, row := range rows {
		key := rowKey(row.UserID, row.OrderID, row.CreatedAt, row.Side)
		copy := *row
		copy.ID = s.nextID
		s.nextID++
		s.data[key] = &copy
	}

	return nil
}

// GetByTimeRange retrieves rows matching the filter, ordered by created_at ASC.
func (s *LedgerRowStore) GetByTimeRange(_ context.Context, filter storage.LedgerRowFilter) ([]*domain.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LedgerRow
	for _, row := range s.data {
		if row.CreatedAt < filter.Since {
			continue
		}
		if filter.Until > 0 && row.CreatedAt > filter.Until {
			continue
		}
		if filter.UserID != "" && row.UserID != filter.UserID {
			continue
		}
		if filter.Symbol != "" && row.Symbol != filter.Symbol {
			continue
		}
		copy := *row
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

var _ storage.LedgerRowStore = (*LedgerRowStore)(nil)
