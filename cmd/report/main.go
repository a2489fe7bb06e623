// Package main provides a one-shot report generator: it computes a PnL
// snapshot from stored ledger rows and writes it as JSON, Markdown, and
// a closed-trades CSV.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trade-ledger-engine/internal/cdpauth"
	"trade-ledger-engine/internal/exchange"
	"trade-ledger-engine/internal/reporting"
	"trade-ledger-engine/internal/snapshot"
	pgstore "trade-ledger-engine/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	symbol := flag.String("symbol", snapshot.DefaultSymbol, "Product to report on")
	userID := flag.String("user-id", "", "Restrict to one user's rows")
	since := flag.Int64("since", 0, "Window start (ms since epoch, 0 = 90 days back)")
	baseline := flag.Float64("baseline", 0, "Starting equity for drawdown measurement")
	stdout := flag.Bool("stdout", false, "Print the JSON snapshot to stdout instead of writing files")
	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	opts := []snapshot.ServiceOption{
		snapshot.WithBaseline(*baseline),
		snapshot.WithLogger(logger),
	}
	if signer, err := createSigner(); err != nil {
		logger.Fatalf("Invalid CDP key material: %v", err)
	} else if signer != nil {
		opts = append(opts, snapshot.WithExchange(exchange.NewClient(signer)))
	}

	service := snapshot.NewService(pgstore.NewLedgerRowStore(pool), opts...)

	snap, trades, err := service.ComputeDetailed(ctx, snapshot.Request{
		Since:  *since,
		UserID: *userID,
		Symbol: *symbol,
	})
	if err != nil {
		logger.Fatalf("Snapshot failed: %v", err)
	}

	if *stdout {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			logger.Fatalf("Encode snapshot: %v", err)
		}
		return
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatalf("Create output directory: %v", err)
	}

	jsonData, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		logger.Fatalf("Marshal snapshot: %v", err)
	}
	writeFile(logger, filepath.Join(*outputDir, "snapshot.json"), jsonData)
	writeFile(logger, filepath.Join(*outputDir, "snapshot.md"), []byte(reporting.RenderMarkdown(snap)))
	writeFile(logger, filepath.Join(*outputDir, "closed_trades.csv"), []byte(reporting.RenderTradesCSV(trades)))

	fmt.Printf("Report written to %s/ (%d closed trades, source: %s)\n",
		*outputDir, len(trades), snap.Diagnostics.SourceUsed)
}

func writeFile(logger *log.Logger, path string, data []byte) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Fatalf("Write %s: %v", path, err)
	}
	logger.Printf("Wrote %s", path)
}

// createSigner builds a request signer from CDP_* env vars; nil when
// no key is configured.
func createSigner() (cdpauth.Signer, error) {
	keyID := os.Getenv("CDP_API_KEY_ID")
	keyMaterial := os.Getenv("CDP_API_PRIVATE_KEY")
	if keyID == "" || keyMaterial == "" {
		return nil, nil
	}

	keyMaterial = strings.ReplaceAll(keyMaterial, `\n`, "\n")

	alg := strings.ToUpper(os.Getenv("CDP_KEY_ALG"))
	switch alg {
	case "", "ES256":
		return cdpauth.NewES256Signer(keyID, []byte(keyMaterial))
	case "EDDSA", "ED25519":
		return cdpauth.NewEdDSASigner(keyID, keyMaterial)
	default:
		return nil, fmt.Errorf("unsupported CDP_KEY_ALG %q", alg)
	}
}
