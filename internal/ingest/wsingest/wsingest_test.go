package wsingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newEchoServer starts a WS server that sends each message in msgs once
// a client connects, then idles.
func newEchoServer(t *testing.T, msgs [][]byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range msgs {
			_ = conn.WriteMessage(websocket.TextMessage, m)
		}
		// Keep the connection open so the client doesn't reconnect mid-test.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestFeedDispatchesOrderEvent(t *testing.T) {
	t.Parallel()

	order, _ := json.Marshal(map[string]any{
		"kind":        "order",
		"AccountID":   "A1",
		"ContractID":  "T2303",
		"Volume":      5,
		"Price":       100.0,
		"OrderID":     42,
	})
	srv := newEchoServer(t, [][]byte{order})
	defer srv.Close()

	f := New(wsURL(srv.URL), nil, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go f.Run(ctx)
	defer f.Close()

	select {
	case got := <-f.OrderEvents():
		if got.AccountID != "A1" || got.OrderID != 42 {
			t.Errorf("unexpected order: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for order event")
	}
}

func TestFeedDispatchesTradeEvent(t *testing.T) {
	t.Parallel()

	trade, _ := json.Marshal(map[string]any{
		"kind":      "trade",
		"TradeID":   7,
		"Volume":    10,
		"Price":     55.5,
	})
	srv := newEchoServer(t, [][]byte{trade})
	defer srv.Close()

	f := New(wsURL(srv.URL), nil, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go f.Run(ctx)
	defer f.Close()

	select {
	case got := <-f.TradeEvents():
		if got.TradeID != 7 {
			t.Errorf("unexpected trade: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trade event")
	}
}

func TestFeedIgnoresUnknownKind(t *testing.T) {
	t.Parallel()

	unknown, _ := json.Marshal(map[string]any{"kind": "heartbeat"})
	srv := newEchoServer(t, [][]byte{unknown})
	defer srv.Close()

	f := New(wsURL(srv.URL), nil, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go f.Run(ctx)
	defer f.Close()

	select {
	case got := <-f.OrderEvents():
		t.Fatalf("unexpected order event for unknown kind: %+v", got)
	case <-ctx.Done():
	}
}
