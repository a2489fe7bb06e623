package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trade-ledger-engine/internal/domain"
	"trade-ledger-engine/internal/snapshot"
	"trade-ledger-engine/internal/storage/memory"
)

const testSecret = "test-secret"

func newTestServer(store *memory.LedgerRowStore) *Server {
	logger := log.New(io.Discard, "", 0)
	return &Server{
		adminSecret: testSecret,
		service:     snapshot.NewService(store, snapshot.WithLogger(logger)),
		logger:      logger,
		started:     time.Now(),
	}
}

func seedLedgerRow(t *testing.T, store *memory.LedgerRowStore, userID, side, orderID string, ts int64, size, price, fee float64) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.LedgerRow{
		UserID:    userID,
		CreatedAt: ts,
		Side:      side,
		OrderID:   orderID,
		Symbol:    "BTC-USD",
		BaseSize:  size,
		Price:     price,
		QuoteSize: size * price,
		FeeUsd:    fee,
	})
	if err != nil {
		t.Fatalf("seeding row: %v", err)
	}
}

func getSnapshot(t *testing.T, srv *Server, target string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("X-Admin-Secret", testSecret)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	resp := rec.Result()
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func TestParseSince(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"2023-11-14T22:13:20Z", 1700000000000, false},
		{"2023-11-14T14:13:20-08:00", 1700000000000, false},
		{"1700000000000", 1700000000000, false},
		{"0", 0, false},
		{"not-a-time", 0, true},
		{"2023-11-14", 0, true},
	}
	for _, c := range cases {
		got, err := parseSince(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseSince(%q): expected error, got %d", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSince(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseSince(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSnapshotEndpointISOSince(t *testing.T) {
	store := memory.NewLedgerRowStore()
	ts := time.Now().Add(-time.Hour).UnixMilli()
	seedLedgerRow(t, store, "user-1", "BUY", "ord-1", ts, 1.0, 100, 1)
	seedLedgerRow(t, store, "user-1", "SELL", "ord-2", ts+1000, 1.0, 110, 1)
	srv := newTestServer(store)

	resp, body := getSnapshot(t, srv, "/api/pnl/snapshot?since=2000-01-01T00:00:00Z")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ISO since: status = %d, body %s", resp.StatusCode, body)
	}
	var snap struct {
		RowsScanned int `json:"rowsScanned"`
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if snap.RowsScanned != 2 {
		t.Errorf("rowsScanned = %d, want 2", snap.RowsScanned)
	}

	// Epoch milliseconds still accepted.
	resp, body = getSnapshot(t, srv, "/api/pnl/snapshot?since=946684800000")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("epoch since: status = %d, body %s", resp.StatusCode, body)
	}

	resp, _ = getSnapshot(t, srv, "/api/pnl/snapshot?since=yesterday")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed since: status = %d, want 400", resp.StatusCode)
	}
}

func TestSnapshotEndpointUserScope(t *testing.T) {
	store := memory.NewLedgerRowStore()
	ts := time.Now().Add(-time.Hour).UnixMilli()
	seedLedgerRow(t, store, "alice", "BUY", "ord-1", ts, 1.0, 100, 1)
	seedLedgerRow(t, store, "alice", "SELL", "ord-2", ts+1000, 1.0, 110, 1)
	seedLedgerRow(t, store, "bob", "BUY", "ord-3", ts+2000, 2.0, 100, 1)
	srv := newTestServer(store)

	for _, param := range []string{"userId", "user_id"} {
		resp, body := getSnapshot(t, srv, "/api/pnl/snapshot?"+param+"=alice&since=2000-01-01T00:00:00Z")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status = %d, body %s", param, resp.StatusCode, body)
		}
		var snap struct {
			RowsScanned int `json:"rowsScanned"`
		}
		if err := json.Unmarshal(body, &snap); err != nil {
			t.Fatalf("%s: decoding response: %v", param, err)
		}
		if snap.RowsScanned != 2 {
			t.Errorf("%s: rowsScanned = %d, want 2 (alice only)", param, snap.RowsScanned)
		}
	}
}

func TestSnapshotEndpointRequiresSecret(t *testing.T) {
	srv := newTestServer(memory.NewLedgerRowStore())

	req := httptest.NewRequest(http.MethodGet, "/api/pnl/snapshot", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no secret: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/pnl/snapshot?secret="+testSecret+"&since=1", nil)
	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("query secret: status = %d, want 200", rec.Code)
	}
}
