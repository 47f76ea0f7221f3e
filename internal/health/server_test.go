package health

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gardentiller/tiller/internal/resilience"
)

func TestHealthReportsDegradedWhenBreakerOpens(t *testing.T) {
	registry := resilience.NewRegistry()
	b := registry.Get("ipmi.exec", resilience.BreakerConfig{FailMax: 1})
	s := NewServer(registry, 0)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok with all breakers closed", body["status"])
	}

	// Trip the breaker and check the status flips.
	_ = b.Call(func() error { return resilience.Transient(errors.New("bmc unreachable")) })

	rec = httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded with an open breaker", body["status"])
	}
}

func TestBreakersEndpointListsSnapshots(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Get("redfish.get", resilience.BreakerConfig{})
	registry.Get("command.run", resilience.BreakerConfig{})
	s := NewServer(registry, 0)

	rec := httptest.NewRecorder()
	s.handleBreakers(rec, httptest.NewRequest("GET", "/breakers", nil))

	var snaps []resilience.BreakerSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&snaps); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d breakers, want 2", len(snaps))
	}
	// Sorted by name for stable output.
	if snaps[0].Name != "command.run" || snaps[1].Name != "redfish.get" {
		t.Errorf("unexpected order: %s, %s", snaps[0].Name, snaps[1].Name)
	}
	if snaps[0].State != "closed" {
		t.Errorf("state = %q, want closed", snaps[0].State)
	}
}
