package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRecorder_Smoke(t *testing.T) {
	r := NewRecorder()
	r.RecordTick("BTCUSDT", 12*time.Millisecond)
	r.RecordOrder("BTCUSDT", "BUY", "MARKET", "placed")
	r.RecordFill("BTCUSDT", "SELL", "FILLED")
	r.RecordRoundTrip("BTCUSDT", decimal.NewFromInt(5), decimal.NewFromInt(20))
	r.RecordRoundTrip("BTCUSDT", decimal.NewFromInt(-3), decimal.NewFromInt(17))
	r.RecordRuntimeState("BTCUSDT", 1)
	r.RecordWallet("BTCUSDT", "USDT", decimal.NewFromInt(1000))
	r.RecordLoan("BTCUSDT", "BTC", decimal.Zero)
}

func TestServer_Health(t *testing.T) {
	healthy := true
	s := NewServer(0, "/metrics", nil, func() (bool, string) {
		return healthy, "feed stale"
	}, nil)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q", body["status"])
	}

	healthy = false
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["reason"] != "feed stale" {
		t.Errorf("reason = %q", body["reason"])
	}
}

func TestServer_State(t *testing.T) {
	s := NewServer(0, "", func() any {
		return map[string]string{"runtime_state": "RUN"}
	}, nil, nil)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["runtime_state"] != "RUN" {
		t.Errorf("body = %v", body)
	}

	// No state func registered
	s = NewServer(0, "", nil, nil, nil)
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s := NewServer(0, "/metrics", nil, nil, nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty metrics body")
	}
}
