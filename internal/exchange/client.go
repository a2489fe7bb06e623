// Package exchange provides an authenticated client for the exchange
// REST API and a WebSocket spot-price feed. Every REST call mints a
// fresh CDP token scoped to the exact method and path being requested.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"trade-ledger-engine/internal/cdpauth"
	"trade-ledger-engine/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.coinbase.com"
	DefaultTimeout   = 10 * time.Second
	DefaultChunkSize = 40
)

// REST paths.
const (
	accountsPath = "/api/v3/brokerage/accounts"
	productPath  = "/api/v3/brokerage/products/%s"
	fillsPath    = "/api/v3/brokerage/orders/historical/fills"
)

// Client performs authenticated GET requests against the exchange.
type Client struct {
	baseURL   *url.URL
	client    *http.Client
	signer    cdpauth.Signer
	limiter   *rate.Limiter
	chunkSize int
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithBaseURL overrides the exchange base URL (used in tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if u, err := url.Parse(baseURL); err == nil {
			c.baseURL = u
		}
	}
}

// WithChunkSize sets the order-id batch size for fill lookups.
func WithChunkSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithRateLimit caps outbound request rate.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new exchange client. The signer is required;
// every request carries a bearer token minted by it.
func NewClient(signer cdpauth.Signer, opts ...ClientOption) *Client {
	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		baseURL:   base,
		client:    &http.Client{Timeout: DefaultTimeout},
		signer:    signer,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs an authenticated GET for pathWithQuery and decodes the
// JSON response into out. The signed uri claim covers the query string
// verbatim, so pathWithQuery must be exactly what is sent on the wire.
func (c *Client) get(ctx context.Context, pathWithQuery string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	token, err := c.signer.Sign(http.MethodGet, c.baseURL.Host, pathWithQuery)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}
	observability.RecordTokenMinted(c.signer.Alg())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+pathWithQuery, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordExchangeError("network")
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	observability.RecordExchangeRequest(req.URL.Path, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestError{Status: resp.StatusCode, Body: string(body)}
		observability.RecordExchangeError(statusClass(resp.StatusCode))
		return reqErr
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// statusClass buckets an HTTP status for error metrics.
func statusClass(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth"
	case status == http.StatusTooManyRequests:
		return "rate_limit"
	case status >= 500:
		return "server"
	default:
		return "client"
	}
}

// FetchAccounts retrieves brokerage accounts. Used as a cheap
// reachability and credential probe before bulk lookups.
func (c *Client) FetchAccounts(ctx context.Context) ([]Account, error) {
	var resp accountsResponse
	if err := c.get(ctx, accountsPath, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// FetchProductPrice retrieves the current spot price for a product.
func (c *Client) FetchProductPrice(ctx context.Context, productID string) (float64, error) {
	var resp productResponse
	if err := c.get(ctx, fmt.Sprintf(productPath, url.PathEscape(productID)), &resp); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse product price %q: %w", resp.Price, err)
	}
	return price, nil
}

// FetchFillsForOrders retrieves authoritative fills for the given order
// ids. Ids are batched into bounded chunks, one authenticated request
// per chunk, issued concurrently. A failed chunk never drops the
// results of successful chunks: when some chunks fail the accumulated
// fills are returned together with a *PartialError. When every chunk
// fails the first error is returned alone.
func (c *Client) FetchFillsForOrders(ctx context.Context, orderIDs []string) ([]json.RawMessage, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	chunks := chunkStrings(orderIDs, c.chunkSize)

	// Results are collected per chunk index so concatenation order is
	// deterministic regardless of goroutine completion order.
	results := make([][]json.RawMessage, len(chunks))
	errs := make([]*ChunkError, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(idx int, ids []string) {
			defer wg.Done()

			q := url.Values{}
			for _, id := range ids {
				q.Add("order_ids", id)
			}

			var resp fillsResponse
			if err := c.get(ctx, fillsPath+"?"+q.Encode(), &resp); err != nil {
				errs[idx] = &ChunkError{Chunk: idx, IDs: ids, Err: err}
				return
			}
			results[idx] = resp.Fills
		}(i, chunk)
	}

	wg.Wait()

	var fills []json.RawMessage
	var failed []*ChunkError
	for idx := range chunks {
		if errs[idx] != nil {
			failed = append(failed, errs[idx])
			continue
		}
		fills = append(fills, results[idx]...)
	}

	observability.RecordFillsFetched(len(fills))

	if len(failed) == 0 {
		return fills, nil
	}
	if len(failed) == len(chunks) {
		return nil, failed[0]
	}
	return fills, &PartialError{Failed: failed, Total: len(chunks)}
}

// chunkStrings splits ids into slices of at most size elements.
func chunkStrings(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
