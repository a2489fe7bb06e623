// Package main provides the ledger import tool: it loads trade records
// from CSV or JSONL files into the ledger_rows table. Rows are stored
// raw; normalization happens at snapshot time.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trade-ledger-engine/internal/domain"
	"trade-ledger-engine/internal/observability"
	"trade-ledger-engine/internal/storage"
	"trade-ledger-engine/internal/storage/migrations"
	pgstore "trade-ledger-engine/internal/storage/postgres"
)

const batchSize = 500

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	userID := flag.String("user-id", "", "User ID to attribute imported rows to")
	format := flag.String("format", "", "Input format: csv or jsonl (default: by file extension)")
	flag.Parse()

	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if flag.NArg() == 0 {
		logger.Fatal("Usage: ingest [flags] <file> [file...]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgres(ctx, pool); err != nil {
		logger.Fatalf("Migrations failed: %v", err)
	}

	store := pgstore.NewLedgerRowStore(pool)

	var total, skipped int
	for _, path := range flag.Args() {
		imported, bad, err := ingestFile(ctx, store, path, *userID, *format)
		if err != nil {
			logger.Fatalf("Import %s: %v", path, err)
		}
		logger.Printf("Imported %d rows from %s (%d skipped)", imported, path, bad)
		total += imported
		skipped += bad
	}

	observability.RecordRowsImported(total)
	fmt.Printf("Imported %d rows total, %d skipped\n", total, skipped)
}

// ingestFile imports one file, returning (imported, skipped) counts.
func ingestFile(ctx context.Context, store storage.LedgerRowStore, path, userID, format string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = "csv"
		case ".jsonl", ".ndjson", ".json":
			format = "jsonl"
		default:
			return 0, 0, fmt.Errorf("cannot infer format from %q, pass --format", path)
		}
	}

	switch format {
	case "csv":
		return ingestCSV(ctx, store, f, userID)
	case "jsonl":
		return ingestJSONL(ctx, store, f, userID)
	default:
		return 0, 0, fmt.Errorf("unknown format %q", format)
	}
}

// ingestCSV reads a headered CSV. Recognized columns map to the flat
// row fields; the entire record is also kept as the raw payload so the
// normalizer can recover columns this tool does not know about.
func ingestCSV(ctx context.Context, store storage.LedgerRowStore, r io.Reader, userID string) (int, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var batch []*domain.LedgerRow
	var imported, skipped int

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("read record: %w", err)
		}

		row := rowFromCSV(cols, record, userID)
		if row == nil {
			skipped++
			continue
		}

		batch = append(batch, row)
		if len(batch) >= batchSize {
			n, err := flushBatch(ctx, store, batch)
			imported += n
			if err != nil {
				return imported, skipped, err
			}
			batch = batch[:0]
		}
	}

	n, err := flushBatch(ctx, store, batch)
	imported += n
	return imported, skipped, err
}

// rowFromCSV builds a ledger row from one CSV record. Returns nil when
// the record carries no usable timestamp.
func rowFromCSV(cols map[string]int, record []string, userID string) *domain.LedgerRow {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	floatField := func(name string) float64 {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return 0
		}
		return v
	}

	createdAt := parseTimestamp(field("created_at"))
	if createdAt == 0 {
		createdAt = parseTimestamp(field("timestamp"))
	}
	if createdAt == 0 {
		return nil
	}

	// Keep the full record as payload for alias-based recovery.
	payload := make(map[string]string, len(cols))
	for name, idx := range cols {
		if idx < len(record) && record[idx] != "" {
			payload[name] = record[idx]
		}
	}
	rawPayload, _ := json.Marshal(payload)

	return &domain.LedgerRow{
		UserID:     userID,
		CreatedAt:  createdAt,
		Side:       strings.ToUpper(field("side")),
		OrderID:    field("order_id"),
		Symbol:     firstNonEmpty(field("symbol"), field("product_id")),
		BaseSize:   floatField("base_size"),
		Price:      floatField("price"),
		QuoteSize:  floatField("quote_size"),
		FeeUsd:     floatField("fee_usd"),
		RawPayload: rawPayload,
	}
}

// ingestJSONL reads newline-delimited JSON objects. Each line becomes a
// row with the original object as the raw payload; flat columns are
// filled from the common key names when present.
func ingestJSONL(ctx context.Context, store storage.LedgerRowStore, r io.Reader, userID string) (int, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var batch []*domain.LedgerRow
	var imported, skipped int

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			skipped++
			continue
		}

		row := rowFromJSON(obj, []byte(line), userID)
		if row == nil {
			skipped++
			continue
		}

		batch = append(batch, row)
		if len(batch) >= batchSize {
			n, err := flushBatch(ctx, store, batch)
			imported += n
			if err != nil {
				return imported, skipped, err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return imported, skipped, fmt.Errorf("scan input: %w", err)
	}

	n, err := flushBatch(ctx, store, batch)
	imported += n
	return imported, skipped, err
}

// rowFromJSON builds a ledger row from a decoded JSON object.
func rowFromJSON(obj map[string]interface{}, raw []byte, userID string) *domain.LedgerRow {
	str := func(keys ...string) string {
		for _, key := range keys {
			if v, ok := obj[key].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}
	num := func(keys ...string) float64 {
		for _, key := range keys {
			switch v := obj[key].(type) {
			case float64:
				return v
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					return f
				}
			}
		}
		return 0
	}

	createdAt := int64(num("created_at", "timestamp", "time"))
	if createdAt == 0 {
		createdAt = parseTimestamp(str("created_at", "timestamp", "time"))
	}
	if createdAt == 0 {
		return nil
	}

	return &domain.LedgerRow{
		UserID:     userID,
		CreatedAt:  normalizeMs(createdAt),
		Side:       strings.ToUpper(str("side")),
		OrderID:    str("order_id", "orderId"),
		Symbol:     str("symbol", "product_id"),
		BaseSize:   num("base_size", "size", "base_qty"),
		Price:      num("price"),
		QuoteSize:  num("quote_size", "usd_notional"),
		FeeUsd:     num("fee_usd", "commission", "fee"),
		RawPayload: raw,
	}
}

// flushBatch inserts a batch, falling back to row-by-row inserts when
// the batch contains duplicates so reimports are idempotent.
func flushBatch(ctx context.Context, store storage.LedgerRowStore, batch []*domain.LedgerRow) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	err := store.InsertBulk(ctx, batch)
	if err == nil {
		return len(batch), nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, err
	}

	var inserted int
	for _, row := range batch {
		err := store.Insert(ctx, row)
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, storage.ErrDuplicateKey):
			// Already imported, skip
		default:
			return inserted, err
		}
	}
	return inserted, nil
}

// parseTimestamp accepts ms or seconds since epoch, or RFC3339.
func parseTimestamp(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return normalizeMs(n)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli()
	}
	return 0
}

// normalizeMs promotes second-resolution timestamps to milliseconds.
func normalizeMs(n int64) int64 {
	if n > 0 && n < 1e12 {
		return n * 1000
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
