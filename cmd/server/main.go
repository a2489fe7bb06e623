// Package main provides the trade ledger server: it serves PnL
// snapshots over HTTP, reconciling stored ledger rows against exchange
// fills on every request. A websocket ticker feed keeps spot prices
// warm in the background.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"trade-ledger-engine/internal/cdpauth"
	"trade-ledger-engine/internal/exchange"
	"trade-ledger-engine/internal/observability"
	"trade-ledger-engine/internal/snapshot"
	"trade-ledger-engine/internal/storage"
	chstore "trade-ledger-engine/internal/storage/clickhouse"
	"trade-ledger-engine/internal/storage/memory"
	"trade-ledger-engine/internal/storage/migrations"
	pgstore "trade-ledger-engine/internal/storage/postgres"
)

// Server holds all components of the service.
type Server struct {
	adminSecret string
	service     *snapshot.Service
	feed        *exchange.TickerFeed
	logger      *log.Logger

	mu          sync.Mutex
	started     time.Time
	snapshots   int
	lastRequest time.Time
}

// appStores holds the storage implementations behind the service.
type appStores struct {
	ledgerRows storage.LedgerRowStore
	history    storage.SnapshotHistoryStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	symbol := flag.String("symbol", envOr("DEFAULT_SYMBOL", snapshot.DefaultSymbol), "Default product for snapshots")
	baseline := flag.Float64("baseline", envFloat("EQUITY_BASELINE", 0), "Starting equity for drawdown measurement")
	exchangeURL := flag.String("exchange-url", envOr("EXCHANGE_BASE_URL", exchange.DefaultBaseURL), "Exchange REST base URL")
	wsEndpoint := flag.String("ws-endpoint", envOr("EXCHANGE_WS_ENDPOINT", exchange.DefaultWSEndpoint), "Exchange websocket endpoint")
	noTicker := flag.Bool("no-ticker", false, "Disable the websocket ticker feed")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	adminSecret := os.Getenv("PNL_ADMIN_SECRET")
	if adminSecret == "" {
		logger.Fatal("PNL_ADMIN_SECRET is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Exchange access is optional: without key material the service
	// runs on local ledger data only.
	var exchangeClient *exchange.Client
	signer, err := createSigner()
	if err != nil {
		logger.Fatalf("Invalid CDP key material: %v", err)
	}
	if signer != nil {
		exchangeClient = exchange.NewClient(signer,
			exchange.WithBaseURL(*exchangeURL),
			exchange.WithRateLimit(10, 20),
		)
		logger.Printf("Exchange client enabled (%s)", signer.Alg())
	} else {
		logger.Println("No CDP credentials configured, running local-only")
	}

	var feed *exchange.TickerFeed
	if !*noTicker && exchangeClient != nil {
		feed = exchange.NewTickerFeed(*wsEndpoint, []string{*symbol}, nil)
		go func() {
			if err := feed.Run(ctx); err != nil && err != context.Canceled {
				logger.Printf("Ticker feed stopped: %v", err)
			}
		}()
	}

	opts := []snapshot.ServiceOption{
		snapshot.WithBaseline(*baseline),
	}
	if stores.history != nil {
		opts = append(opts, snapshot.WithHistoryStore(stores.history))
	}
	if exchangeClient != nil {
		opts = append(opts, snapshot.WithExchange(exchangeClient))
	}
	if feed != nil {
		opts = append(opts, snapshot.WithSpotSource(feed))
	}
	service := snapshot.NewService(stores.ledgerRows, opts...)

	server := &Server{
		adminSecret: adminSecret,
		service:     service,
		feed:        feed,
		logger:      logger,
		started:     time.Now(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.routes(),
	}

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
		if feed != nil {
			feed.Close()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the ledger row store and, when configured, the
// snapshot history store, applying migrations at startup.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*appStores, func(), error) {
	if useMemory {
		stores := &appStores{
			ledgerRows: memory.NewLedgerRowStore(),
			history:    memory.NewSnapshotHistoryStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouse(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &appStores{
		ledgerRows: pgstore.NewLedgerRowStore(pool),
		history:    chstore.NewSnapshotHistoryStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// createSigner builds a request signer from CDP_* env vars. Returns
// (nil, nil) when no key is configured; fails hard on malformed keys
// rather than producing unsigned requests.
func createSigner() (cdpauth.Signer, error) {
	keyID := os.Getenv("CDP_API_KEY_ID")
	keyMaterial := os.Getenv("CDP_API_PRIVATE_KEY")
	if keyID == "" || keyMaterial == "" {
		return nil, nil
	}

	// Env vars flatten newlines in PEM blocks
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

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.requireSecret(s.handleStatus))
	mux.HandleFunc("/api/pnl/snapshot", s.requireSecret(s.handleSnapshot))

	return mux
}

// requireSecret gates data-access endpoints behind the admin secret,
// accepted either as the X-Admin-Secret header or a secret query
// parameter. The check runs before any data is touched.
func (s *Server) requireSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get("X-Admin-Secret")
		if secret == "" {
			secret = r.URL.Query().Get("secret")
		}
		if secret != s.adminSecret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleSnapshot computes and returns a PnL snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	req := snapshot.Request{
		UserID: userID,
		Symbol: r.URL.Query().Get("symbol"),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := parseSince(v)
		if err != nil {
			http.Error(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		req.Since = since
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		req.Limit = limit
	}

	snap, err := s.service.Compute(r.Context(), req)
	if err != nil {
		s.logger.Printf("Snapshot error: %v", err)
		http.Error(w, "snapshot computation failed", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.snapshots++
	s.lastRequest = time.Now()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// parseSince accepts an ISO-8601 timestamp or epoch milliseconds and
// returns epoch milliseconds.
func parseSince(v string) (int64, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UnixMilli(), nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string    `json:"status"`
	Uptime      string    `json:"uptime"`
	Started     time.Time `json:"started"`
	Snapshots   int       `json:"snapshots"`
	LastRequest time.Time `json:"last_request,omitempty"`
	TickerFeed  bool      `json:"ticker_feed"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).String(),
		Started:     s.started,
		Snapshots:   s.snapshots,
		LastRequest: s.lastRequest,
		TickerFeed:  s.feed != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// envOr returns the env var value or a default when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envFloat returns the env var parsed as float64 or a default.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
