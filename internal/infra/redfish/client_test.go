package redfish

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gardentiller/tiller/internal/resilience"
)

func testDeps(t *testing.T) (*resilience.Executor, *resilience.Breaker) {
	t.Helper()
	ex := resilience.NewExecutor(slog.New(slog.DiscardHandler))
	b := resilience.NewBreaker(resilience.BreakerConfig{
		Name:          "redfish.get",
		FailMax:       100,
		ResetTimeout:  time.Minute,
		CountTimeouts: true,
	})
	return ex, b
}

func clientFor(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	ex, b := testDeps(t)
	policy := resilience.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}
	return newTestClient(srv.URL, srv.Client(), policy, ex, b)
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/redfish/v1/Systems" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Members": [{"@odata.id": "/redfish/v1/Systems/System.1"}]}`))
	}))
	defer srv.Close()

	res := clientFor(t, srv).Get(context.Background(), "/redfish/v1/Systems")
	if res.Failed() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	members, ok := res.Value["Members"].([]any)
	if !ok || len(members) != 1 {
		t.Errorf("unexpected payload: %v", res.Value)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"PowerState": "On"}`))
	}))
	defer srv.Close()

	res := clientFor(t, srv).Get(context.Background(), "/redfish/v1/Systems/System.1")
	if res.Failed() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if res.Value["PowerState"] != "On" {
		t.Errorf("payload = %v, want PowerState On", res.Value)
	}
}

func TestGetUnauthorizedIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	res := clientFor(t, srv).Get(context.Background(), ServiceRoot)
	if !res.Failed() {
		t.Fatal("expected failure")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (401 is not retryable)", got)
	}
	if resilience.Classify(res.Err) != resilience.KindPermanent {
		t.Errorf("kind = %v, want permanent", resilience.Classify(res.Err))
	}
	if !strings.Contains(res.Err.Error(), "check BMC credentials") {
		t.Errorf("missing actionable credential hint: %v", res.Err)
	}
}

func TestGetMalformedJSONIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	res := clientFor(t, srv).Get(context.Background(), ServiceRoot)
	if !res.Failed() {
		t.Fatal("expected failure")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (malformed body is not retryable)", got)
	}
	if !strings.Contains(res.Err.Error(), "malformed redfish response") {
		t.Errorf("err = %v, want malformed-response detail", res.Err)
	}
}

func TestGetTLSCertificateErrorIsPermanent(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// Default transport does not trust the test server's certificate.
	ex, b := testDeps(t)
	c := newTestClient(srv.URL, &http.Client{Timeout: 5 * time.Second},
		resilience.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, ex, b)

	res := c.Get(context.Background(), ServiceRoot)
	if !res.Failed() {
		t.Fatal("expected failure")
	}
	if resilience.Classify(res.Err) != resilience.KindPermanent {
		t.Errorf("kind = %v, want permanent", resilience.Classify(res.Err))
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (certificate errors are not retried blindly)", res.Attempts)
	}
	if !strings.Contains(res.Err.Error(), "verify_ssl") {
		t.Errorf("missing actionable TLS hint: %v", res.Err)
	}
}

func TestGetConnectionErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	res := clientFor(t, srv).Get(context.Background(), ServiceRoot)
	if !res.Failed() {
		t.Fatal("expected failure")
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3 (connection errors are retried)", res.Attempts)
	}
}

func TestGetCircuitOpenSkipsServer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ex := resilience.NewExecutor(slog.New(slog.DiscardHandler))
	b := resilience.NewBreaker(resilience.BreakerConfig{
		Name:         "redfish.get",
		FailMax:      2,
		ResetTimeout: time.Minute,
	})
	c := newTestClient(srv.URL, srv.Client(),
		resilience.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond}, ex, b)

	_ = c.Get(context.Background(), ServiceRoot) // two failures trip the breaker
	before := calls.Load()

	res := c.Get(context.Background(), ServiceRoot)
	if resilience.Classify(res.Err) != resilience.KindCircuitOpen {
		t.Fatalf("kind = %v, want circuit_open", resilience.Classify(res.Err))
	}
	if calls.Load() != before {
		t.Error("server was contacted through an open breaker")
	}
}
