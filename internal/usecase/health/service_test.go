package health

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterServiceMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockBackend struct {
	health   domain.BackendHealth
	delay    time.Duration
	panicMsg string
	lastColl string
}

func (m *mockBackend) Health(_ context.Context, collection string) domain.BackendHealth {
	m.lastColl = collection
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.health
}

// --- Tests ---

func TestCheck_Healthy(t *testing.T) {
	b := &mockBackend{health: domain.BackendHealth{Reachable: true, ItemCount: 20}}
	r := New(b, "NeuralQuery API", "neural-search").Check(context.Background())

	want := Report{Status: Healthy, Service: "NeuralQuery API", Index: "neural-search", TotalVectors: 20}
	if r != want {
		t.Errorf("got %+v, want %+v", r, want)
	}
	if b.lastColl != "neural-search" {
		t.Errorf("probed %q", b.lastColl)
	}
	if v := testutil.ToFloat64(metrics.BackendUp); v != 1 {
		t.Errorf("backend_up = %v, want 1", v)
	}
}

func TestCheck_EmptyCollectionIsHealthy(t *testing.T) {
	r := New(&mockBackend{health: domain.BackendHealth{Reachable: true}}, "svc", "idx").Check(context.Background())
	if r.Status != Healthy || r.TotalVectors != 0 {
		t.Errorf("unexpected report: %+v", r)
	}
}

func TestCheck_Unreachable(t *testing.T) {
	r := New(&mockBackend{}, "svc", "idx").Check(context.Background())
	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Service != "svc" || r.Index != "idx" {
		t.Errorf("identity must be present when unhealthy: %+v", r)
	}
	if v := testutil.ToFloat64(metrics.BackendUp); v != 0 {
		t.Errorf("backend_up = %v, want 0", v)
	}
}

func TestCheck_Timeout(t *testing.T) {
	b := &mockBackend{health: domain.BackendHealth{Reachable: true}, delay: time.Second}
	start := time.Now()
	r := New(b, "svc", "idx").WithTimeout(20 * time.Millisecond).Check(context.Background())
	if r.Status != Unhealthy {
		t.Errorf("expected %q on timeout, got %q", Unhealthy, r.Status)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("check did not honour its timeout")
	}
}

func TestCheck_PanicRecovered(t *testing.T) {
	r := New(&mockBackend{panicMsg: "boom"}, "svc", "idx").Check(context.Background())
	if r.Status != Unhealthy {
		t.Errorf("expected %q after panic, got %q", Unhealthy, r.Status)
	}
}
