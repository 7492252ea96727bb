package neuralquery

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/corpus"
	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/request"
	"github.com/kailas-cloud/neuralquery/internal/metrics"
	"github.com/kailas-cloud/neuralquery/internal/repository/memstore"
	nqchi "github.com/kailas-cloud/neuralquery/internal/transport/chi"
	"github.com/kailas-cloud/neuralquery/internal/transport/hashing"
	healthuc "github.com/kailas-cloud/neuralquery/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/neuralquery/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/neuralquery/internal/usecase/search"
)

const (
	testCollection = "neural-search"
	testKey        = "s3cret"
	testDim        = 64
)

func TestMain(m *testing.M) {
	metrics.RegisterServiceMetrics()
	os.Exit(m.Run())
}

// newTestServer serves the real router over a memory backend, optionally pre-ingested.
func newTestServer(t *testing.T, ingest bool) *httptest.Server {
	t.Helper()
	store := memstore.New(100)
	embedder := hashing.New(testDim)

	if ingest {
		ing := ingestuc.New(store, embedder, nil, corpus.Documents(), ingestuc.Config{
			Collection: testCollection,
			Dimension:  testDim,
			Metric:     domain.MetricCosine,
			Model:      "hashing",
		})
		if _, err := ing.Run(context.Background(), ingestuc.Options{}); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	srv := nqchi.NewServer(
		searchuc.New(store, embedder, testCollection),
		healthuc.New(store, "NeuralQuery API", testCollection),
		nqchi.Config{
			Title:   "NeuralQuery Semantic Search API",
			Version: "1.0.0",
			Limits:  request.DefaultLimits(),
			APIKeys: []string{testKey},
		},
		zap.NewNop(),
	)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"localhost:8000", "ftp://host", "://"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q): expected error", raw)
		}
	}
}

func TestSearch_OK(t *testing.T) {
	ts := newTestServer(t, true)
	c, err := New(ts.URL+"/", WithAPIKey(testKey))
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Search(context.Background(), "How do I optimize Docker images?", WithTopK(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TopK != 5 || len(res.Results) != 5 {
		t.Fatalf("expected 5 results, got top_k=%d len=%d", res.TopK, len(res.Results))
	}
	if res.Query != "How do I optimize Docker images?" {
		t.Errorf("query echo = %q", res.Query)
	}
	for i := 1; i < len(res.Results); i++ {
		if res.Results[i].Score > res.Results[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}
	if res.Results[0].Metadata["category"] == nil {
		t.Errorf("metadata missing: %+v", res.Results[0])
	}
}

func TestSearch_DefaultTopK(t *testing.T) {
	ts := newTestServer(t, true)
	c, _ := New(ts.URL, WithAPIKey(testKey))

	res, err := c.Search(context.Background(), "python testing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TopK != 3 || len(res.Results) != 3 {
		t.Errorf("expected server default of 3, got top_k=%d len=%d", res.TopK, len(res.Results))
	}
}

func TestSearch_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		c, _ := New(newTestServer(t, true).URL, WithAPIKey(testKey))
		_, err := c.Search(ctx, "hi", WithTopK(3))
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 APIError, got %#v", err)
		}
		if len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "query" {
			t.Errorf("expected a query field error, got %+v", apiErr.Fields)
		}
	})

	t.Run("explicit zero top_k", func(t *testing.T) {
		c, _ := New(newTestServer(t, true).URL, WithAPIKey(testKey))
		_, err := c.Search(ctx, "docker images", WithTopK(0))
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !errors.Is(err, ErrValidation) {
			t.Fatalf("expected a validation APIError, got %v", err)
		}
		if len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "top_k" {
			t.Errorf("expected a top_k field error, got %+v", apiErr.Fields)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		c, _ := New(newTestServer(t, true).URL, WithAPIKey("wrong"))
		if _, err := c.Search(ctx, "docker images", WithTopK(3)); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("index not ingested", func(t *testing.T) {
		c, _ := New(newTestServer(t, false).URL, WithAPIKey(testKey))
		_, err := c.Search(ctx, "docker images", WithTopK(3))
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		if !strings.Contains(err.Error(), "collection_not_found") {
			t.Errorf("expected error code in message, got %q", err.Error())
		}
	})

	t.Run("server without error body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream gone", http.StatusBadGateway)
		}))
		defer ts.Close()
		c, _ := New(ts.URL)
		_, err := c.Search(ctx, "docker images", WithTopK(3))
		if !errors.Is(err, ErrServer) || !strings.Contains(err.Error(), "upstream gone") {
			t.Fatalf("expected ErrServer with body text, got %v", err)
		}
	})
}

func TestHealth(t *testing.T) {
	ctx := context.Background()

	c, _ := New(newTestServer(t, true).URL)
	h, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Healthy() || h.TotalVectors != len(corpus.Documents()) || h.Index != testCollection {
		t.Errorf("unexpected health: %+v", h)
	}

	// Missing collection is reported healthy with zero vectors.
	c, _ = New(newTestServer(t, false).URL)
	h, err = c.Health(ctx)
	if err != nil || !h.Healthy() || h.TotalVectors != 0 {
		t.Errorf("expected healthy empty index, got %+v, %v", h, err)
	}
}

func TestHealth_UnhealthyKeepsReport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy","service":"NeuralQuery API","index":"neural-search","total_vectors":0}`))
	}))
	defer ts.Close()

	c, _ := New(ts.URL)
	h, err := c.Health(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if h.Status != "unhealthy" || h.Service != "NeuralQuery API" {
		t.Errorf("report not decoded: %+v", h)
	}
}

func TestInfo(t *testing.T) {
	c, _ := New(newTestServer(t, false).URL)
	info, err := c.Info(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Docs != "/docs" || info.Health != "/health" || info.Version != "1.0.0" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestObservability(t *testing.T) {
	ts := newTestServer(t, true)
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c, err := New(ts.URL, WithAPIKey(testKey), WithPrometheus(reg), WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, _ = c.Search(ctx, "docker images", WithTopK(3))
	_, _ = c.Search(ctx, "no", WithTopK(3))

	m := c.obs.metrics
	if got := testutil.ToFloat64(m.operations.WithLabelValues("search", "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("search", "invalid")); got != 1 {
		t.Errorf("invalid count = %v, want 1", got)
	}
	if !strings.Contains(logs.String(), "neuralquery request failed") {
		t.Errorf("expected failure log, got %q", logs.String())
	}

	// A second client on the same registry reuses the collectors.
	if _, err := New(ts.URL, WithPrometheus(reg)); err != nil {
		t.Fatalf("second client: %v", err)
	}
}

func TestWithHTTPClient(t *testing.T) {
	var sawAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"message":"m","version":"1.0.0","docs":"/docs","health":"/health"}`))
	}))
	defer ts.Close()

	hc := &http.Client{Transport: userAgent{"nq-test", http.DefaultTransport}}
	c, err := New(ts.URL, WithHTTPClient(hc))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Info(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawAgent != "nq-test" {
		t.Errorf("custom client not used, User-Agent %q", sawAgent)
	}
}

type userAgent struct {
	ua   string
	next http.RoundTripper
}

func (u userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", u.ua)
	return u.next.RoundTrip(r)
}
