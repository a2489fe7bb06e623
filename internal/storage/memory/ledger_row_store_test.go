package memory

import (
	"context"
	"errors"
	"testing"

	"trade-ledger-engine/internal/domain"
	"trade-ledger-engine/internal/storage"
)

func testRow(userID, orderID string, createdAt int64, side string) *domain.LedgerRow {
	return &domain.LedgerRow{
		UserID:    userID,
		CreatedAt: createdAt,
		Side:      side,
		OrderID:   orderID,
		Symbol:    "BTC-USD",
		BaseSize:  1.0,
		Price:     100.0,
		QuoteSize: 100.0,
		FeeUsd:    0.5,
	}
}

func TestLedgerRowStore_InsertAndGet(t *testing.T) {
	store := NewLedgerRowStore()
	ctx := context.Background()

	err := store.Insert(ctx, testRow("user1", "ord-1", 1000, "BUY"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, storage.LedgerRowFilter{Since: 0})
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(result))
	}
	if result[0].ID == 0 {
		t.Error("Expected assigned ID, got 0")
	}
	if result[0].OrderID != "ord-1" {
		t.Errorf("OrderID mismatch: got %s, want ord-1", result[0].OrderID)
	}
}

func TestLedgerRowStore_DuplicateKey(t *testing.T) {
	store := NewLedgerRowStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testRow("user1", "ord-1", 1000, "BUY")); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, testRow("user1", "ord-1", 1000, "BUY"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same order at a different timestamp is a distinct row (partial fill).
	if err := store.Insert(ctx, testRow("user1", "ord-1", 2000, "BUY")); err != nil {
		t.Errorf("Insert at new timestamp failed: %v", err)
	}
}

func TestLedgerRowStore_InsertBulkAtomicity(t *testing.T) {
	store := NewLedgerRowStore()
	ctx := context.Background()

	rows := []*domain.LedgerRow{
		testRow("user1", "ord-1", 1000, "BUY"),
		testRow("user1", "ord-2", 2000, "SELL"),
		testRow("user1", "ord-1", 1000, "BUY"), // intra-batch duplicate
	}

	err := store.InsertBulk(ctx, rows)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Nothing from the failed batch may be visible.
	result, err := store.GetByTimeRange(ctx, storage.LedgerRowFilter{Since: 0})
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected empty store after failed bulk, got %d rows", len(result))
	}
}

func TestLedgerRowStore_GetByTimeRangeFilters(t *testing.T) {
	store := NewLedgerRowStore()
	ctx := context.Background()

	rows := []*domain.LedgerRow{
		testRow("user1", "ord-1", 1000, "BUY"),
		testRow("user1", "ord-2", 2000, "SELL"),
		testRow("user2", "ord-3", 3000, "BUY"),
	}
	ethRow := testRow("user1", "ord-4", 4000, "BUY")
	ethRow.Symbol = "ETH-USD"
	rows = append(rows, ethRow)

	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Time window
	result, err := store.GetByTimeRange(ctx, storage.LedgerRowFilter{Since: 2000, Until: 3000})
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Time window: expected 2 rows, got %d", len(result))
	}

	// User filter
	result, err = store.GetByTimeRange(ctx, storage.LedgerRowFilter{Since: 0, UserID: "user2"})
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 1 || result[0].OrderID != "ord-3" {
		t.Errorf("User filter: expected ord-3, got %v", result)
	}

	// Symbol filter
	result, err = store.GetByTimeRange(ctx, storage.LedgerRowFilter{Since: 0, Symbol: "ETH-USD"})
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 1 || result[0].OrderID != "ord-4" {
		t.Errorf("Symbol filter: expected ord-4, got %v", result)
	}

	// Limit
	result, err = store.GetByTimeRange(ctx, storage.LedgerRowFilter{Since: 0, Limit: 2})
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Limit: expected 2 rows, got %d", len(result))
	}
	if result[0].CreatedAt != 1000 || result[1].CreatedAt != 2000 {
		t.Errorf("Limit should keep earliest rows, got %d/%d", result[0].CreatedAt, result[1].CreatedAt)
	}
}

func TestLedgerRowStore_Ordering(t *testing.T) {
	store := NewLedgerRowStore()
	ctx := context.Background()

	// Insert out of chronological order.
	if err := store.Insert(ctx, testRow("user1", "ord-2", 2000, "BUY")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testRow("user1", "ord-1", 1000, "BUY")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testRow("user1", "ord-3", 1000, "SELL")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, storage.LedgerRowFilter{Since: 0})
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(result))
	}
	if result[0].CreatedAt != 1000 || result[1].CreatedAt != 1000 || result[2].CreatedAt != 2000 {
		t.Errorf("Rows not ordered by created_at: %d/%d/%d",
			result[0].CreatedAt, result[1].CreatedAt, result[2].CreatedAt)
	}
	// Equal timestamps fall back to insertion (ID) order.
	if result[0].OrderID != "ord-1" || result[1].OrderID != "ord-3" {
		t.Errorf("Equal-timestamp tiebreak wrong: %s/%s", result[0].OrderID, result[1].OrderID)
	}
}

func TestLedgerRowStore_InvalidInput(t *testing.T) {
	store := NewLedgerRowStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil row: expected ErrInvalidInput, got %v", err)
	}

	row := testRow("user1", "ord-1", 1000, "BUY")
	row.Symbol = ""
	if err := store.Insert(ctx, row); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty symbol: expected ErrInvalidInput, got %v", err)
	}
}

func TestLedgerRowStore_DefensiveCopy(t *testing.T) {
	store := NewLedgerRowStore()
	ctx := context.Background()

	row := testRow("user1", "ord-1", 1000, "BUY")
	if err := store.Insert(ctx, row); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	row.Price = 999

	result, err := store.GetByTimeRange(ctx, storage.LedgerRowFilter{Since: 0})
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if result[0].Price != 100.0 {
		t.Errorf("Caller mutation leaked into store: price = %f", result[0].Price)
	}

	result[0].Price = 555
	again, _ := store.GetByTimeRange(ctx, storage.LedgerRowFilter{Since: 0})
	if again[0].Price != 100.0 {
		t.Errorf("Returned row mutation leaked into store: price = %f", again[0].Price)
	}
}
