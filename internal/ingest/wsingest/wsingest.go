// Package wsingest implements the WebSocket ingest adapter (C11): a
// single feed of order/trade/cancel events pushed by an upstream
// matching engine or market data gateway.
//
// The feed auto-reconnects with exponential backoff (1s → 30s max) and
// a read deadline (90s) detects a silently dead server within ~2 missed
// pings — the same reconnect shape the teacher's exchange/ws.go uses
// for its Polymarket market/user channels.
package wsingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"riskengine/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	eventBufferSize  = 1024
)

// Feed manages a single WebSocket connection carrying order, trade, and
// cancel events. Consumers read from OrderEvents/TradeEvents/CancelEvents.
type Feed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex

	orderCh  chan types.Order
	tradeCh  chan types.Trade
	cancelCh chan types.Cancel

	throttle *TokenBucket

	logger *slog.Logger
}

// New creates a feed that dials wsURL. throttle, if non-nil, is waited
// on before each dispatched event — useful to cap the rate at which a
// downstream engine is driven when it is applying back-pressure.
func New(wsURL string, throttle *TokenBucket, logger *slog.Logger) *Feed {
	return &Feed{
		url:      wsURL,
		orderCh:  make(chan types.Order, eventBufferSize),
		tradeCh:  make(chan types.Trade, eventBufferSize),
		cancelCh: make(chan types.Cancel, eventBufferSize),
		throttle: throttle,
		logger:   logger.With("component", "wsingest"),
	}
}

// OrderEvents returns a read-only channel of incoming orders.
func (f *Feed) OrderEvents() <-chan types.Order { return f.orderCh }

// TradeEvents returns a read-only channel of incoming trades.
func (f *Feed) TradeEvents() <-chan types.Trade { return f.tradeCh }

// CancelEvents returns a read-only channel of incoming cancels.
func (f *Feed) CancelEvents() <-chan types.Cancel { return f.cancelCh }

// Run connects and maintains the WebSocket connection with
// auto-reconnect. Blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close gracefully closes the connection.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	f.logger.Info("websocket connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if f.throttle != nil {
			if err := f.throttle.Wait(ctx); err != nil {
				return err
			}
		}
		f.dispatchMessage(msg)
	}
}

func (f *Feed) dispatchMessage(data []byte) {
	var envelope struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}

	switch types.EventKind(envelope.Kind) {
	case types.EventOrder:
		var evt types.Order
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal order event", "error", err)
			return
		}
		select {
		case f.orderCh <- evt:
		default:
			f.logger.Warn("order channel full, dropping event", "order_id", evt.OrderID)
		}

	case types.EventTrade:
		var evt types.Trade
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal trade event", "error", err)
			return
		}
		select {
		case f.tradeCh <- evt:
		default:
			f.logger.Warn("trade channel full, dropping event", "trade_id", evt.TradeID)
		}

	case types.EventCancel:
		var evt types.Cancel
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal cancel event", "error", err)
			return
		}
		select {
		case f.cancelCh <- evt:
		default:
			f.logger.Warn("cancel channel full, dropping event", "cancel_id", evt.CancelID)
		}

	default:
		f.logger.Debug("unknown ws event kind", "kind", envelope.Kind)
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
