// Package poloniex handles interactions with the Poloniex exchange.
package poloniex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var tickerStreamURL = "wss://ws.poloniex.com/ws/public"

// SetTickerStreamURL overrides the websocket endpoint. Intended for tests.
func SetTickerStreamURL(u string) { tickerStreamURL = u }

// TickerUpdate is one best-quote update from the ticker channel, reshaped
// into the legacy "BASE_QUOTE" market naming used by the REST client.
type TickerUpdate struct {
	Pair   string
	Bid    float64
	Ask    float64
	Frozen bool
	Time   time.Time
}

// TickerHandler consumes ticker updates as they arrive.
type TickerHandler func(TickerUpdate)

// TickerStream maintains a websocket subscription to the public ticker
// channel and dispatches updates to a handler.
type TickerStream struct {
	handler TickerHandler
	logger  *zap.Logger
}

// NewTickerStream creates a ticker stream dispatching to handler.
func NewTickerStream(handler TickerHandler, logger *zap.Logger) *TickerStream {
	return &TickerStream{handler: handler, logger: logger}
}

type tickerMessage struct {
	Channel string `json:"channel"`
	Data    []struct {
		Symbol string          `json:"symbol"`
		Bid    decimal.Decimal `json:"bid"`
		Ask    decimal.Decimal `json:"ask"`
		State  string          `json:"state"`
		Ts     int64           `json:"ts"`
	} `json:"data"`
}

// Run connects and consumes ticker updates until ctx is cancelled,
// redialling with exponential backoff on connection loss.
func (s *TickerStream) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("ticker stream disconnected, redialling",
				zap.Error(err), zap.Duration("backoff", backoff))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *TickerStream) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, tickerStreamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial ticker stream: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"event":   "subscribe",
		"channel": []string{"ticker"},
		"symbols": []string{"all"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("failed to subscribe to ticker channel: %w", err)
	}
	s.logger.Info("subscribed to ticker stream", zap.String("url", tickerStreamURL))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ticker stream read failed: %w", err)
		}
		var msg tickerMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Channel != "ticker" {
			continue // ping replies and subscription acks
		}
		for _, d := range msg.Data {
			pair, ok := legacyPair(d.Symbol)
			if !ok {
				continue
			}
			s.handler(TickerUpdate{
				Pair:   pair,
				Bid:    d.Bid.InexactFloat64(),
				Ask:    d.Ask.InexactFloat64(),
				Frozen: d.State != "" && d.State != "NORMAL",
				Time:   time.UnixMilli(d.Ts).UTC(),
			})
		}
	}
}

// legacyPair converts a "QUOTE_BASE" stream symbol (ETH_BTC) into the
// "BASE_QUOTE" naming (BTC_ETH) the REST API and the rest of the codebase
// use.
func legacyPair(symbol string) (string, bool) {
	parts := strings.Split(symbol, "_")
	if len(parts) != 2 {
		return "", false
	}
	return parts[1] + "_" + parts[0], true
}
