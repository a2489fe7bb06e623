package memory

import (
	"context"
	"sort"
	"sync"

	"trade-ledger-engine/internal/domain"
	"trade-ledger-engine/internal/storage"
)

// SnapshotHistoryStore is an in-memory implementation of storage.SnapshotHistoryStore.
type SnapshotHistoryStore struct {
	mu   sync.RWMutex
	data []*domain.SnapshotRecord
}

// NewSnapshotHistoryStore creates a new in-memory snapshot history store.
func NewSnapshotHistoryStore() *SnapshotHistoryStore {
	return &SnapshotHistoryStore{}
}

// InsertBulk adds multiple snapshot summaries.
func (s *SnapshotHistoryStore) InsertBulk(_ context.Context, records []*domain.SnapshotRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec == nil || rec.Symbol == "" {
			return storage.ErrInvalidInput
		}
		copy := *rec
		if rec.UnrealizedPnlUsd != nil {
			v := *rec.UnrealizedPnlUsd
			copy.UnrealizedPnlUsd = &v
		}
		s.data = append(s.data, &copy)
	}

	return nil
}

// GetBySymbol retrieves summaries for a symbol within [since, until], ordered by generated_at ASC.
func (s *SnapshotHistoryStore) GetBySymbol(_ context.Context, symbol string, since, until int64) ([]*domain.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SnapshotRecord
	for _, rec := range s.data {
		if rec.Symbol != symbol {
			continue
		}
		if rec.GeneratedAt < since || rec.GeneratedAt > until {
			continue
		}
		copy := *rec
		if rec.UnrealizedPnlUsd != nil {
			v := *rec.UnrealizedPnlUsd
			copy.UnrealizedPnlUsd = &v
		}
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].GeneratedAt < result[j].GeneratedAt
	})

	return result, nil
}

var _ storage.SnapshotHistoryStore = (*SnapshotHistoryStore)(nil)
