package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWSEndpoint is the public market-data WebSocket endpoint.
// The ticker channel is unauthenticated.
const DefaultWSEndpoint = "wss://advanced-trade-ws.coinbase.com"

// TickerConfig configures TickerFeed behavior.
type TickerConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// Staleness is how long a cached price stays usable without a
	// fresh tick.
	Staleness time.Duration
}

// DefaultTickerConfig returns default ticker feed configuration.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		Staleness:         30 * time.Second,
	}
}

// TickerFeed maintains a cache of last-seen spot prices per product
// from the exchange's WebSocket ticker channel. The snapshot service
// consults it before falling back to a REST price lookup.
type TickerFeed struct {
	endpoint string
	products []string
	config   TickerConfig
	now      func() time.Time

	mu     sync.RWMutex
	prices map[string]tickerPrice

	closed atomic.Bool
}

type tickerPrice struct {
	price float64
	seen  time.Time
}

// subscribeRequest is the ticker channel subscription message.
type subscribeRequest struct {
	Type       string   `json:"type"`
	Channel    string   `json:"channel"`
	ProductIDs []string `json:"product_ids"`
}

// tickerMessage is the envelope of a ticker channel event.
type tickerMessage struct {
	Channel string `json:"channel"`
	Events  []struct {
		Tickers []struct {
			ProductID string `json:"product_id"`
			Price     string `json:"price"`
		} `json:"tickers"`
	} `json:"events"`
}

// NewTickerFeed creates a ticker feed for the given products. Run must
// be called to start consuming.
func NewTickerFeed(endpoint string, products []string, config *TickerConfig) *TickerFeed {
	cfg := DefaultTickerConfig()
	if config != nil {
		cfg = *config
	}
	if endpoint == "" {
		endpoint = DefaultWSEndpoint
	}

	return &TickerFeed{
		endpoint: endpoint,
		products: products,
		config:   cfg,
		now:      time.Now,
		prices:   make(map[string]tickerPrice),
	}
}

// Run consumes ticker messages until ctx is cancelled, reconnecting
// with exponential backoff on connection loss.
func (f *TickerFeed) Run(ctx context.Context) error {
	delay := f.config.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := f.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if f.closed.Load() {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > f.config.MaxReconnectDelay {
			delay = f.config.MaxReconnectDelay
		}
	}
}

// consume dials, subscribes, and reads ticker messages until the
// connection drops or ctx is cancelled.
func (f *TickerFeed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Close the connection when ctx is cancelled to unblock ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := subscribeRequest{
		Type:       "subscribe",
		Channel:    "ticker",
		ProductIDs: f.products,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		if f.config.ReadTimeout > 0 {
			conn.SetReadDeadline(f.now().Add(f.config.ReadTimeout))
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		f.handleMessage(msg)
	}
}

// handleMessage updates the price cache from one ticker message.
// Malformed messages are ignored; the feed is advisory only.
func (f *TickerFeed) handleMessage(msg []byte) {
	var tick tickerMessage
	if err := json.Unmarshal(msg, &tick); err != nil {
		return
	}
	if tick.Channel != "ticker" {
		return
	}

	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range tick.Events {
		for _, t := range event.Tickers {
			price, err := strconv.ParseFloat(t.Price, 64)
			if err != nil || price <= 0 {
				continue
			}
			f.prices[t.ProductID] = tickerPrice{price: price, seen: now}
		}
	}
}

// Spot returns the cached spot price for a product when one has been
// seen within the staleness window.
func (f *TickerFeed) Spot(productID string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.prices[productID]
	if !ok {
		return 0, false
	}
	if f.config.Staleness > 0 && f.now().Sub(p.seen) > f.config.Staleness {
		return 0, false
	}
	return p.price, true
}

// Close marks the feed closed so Run stops reconnecting.
func (f *TickerFeed) Close() {
	f.closed.Store(true)
}
