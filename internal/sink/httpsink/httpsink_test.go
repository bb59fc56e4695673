package httpsink

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"riskengine/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDeliverSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL, time.Second, 0, testLogger())
	err := s.Deliver(context.Background(), types.Action{Kind: types.SuspendAccountTrading, Subject: "A1"}, []string{"breach"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestDeliverNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := New(srv.URL, time.Second, 0, testLogger())
	err := s.Deliver(context.Background(), types.Action{Kind: types.Alert, Subject: "A1"}, nil)
	if err == nil {
		t.Error("expected error for non-OK status")
	}
}

func TestDeliverRetriesOn5xx(t *testing.T) {
	t.Parallel()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL, time.Second, 3, testLogger())
	err := s.Deliver(context.Background(), types.Action{Kind: types.Alert, Subject: "A1"}, nil)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if attempts < 2 {
		t.Errorf("attempts = %d, want >= 2 (retry on 5xx)", attempts)
	}
}
