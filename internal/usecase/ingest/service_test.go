package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/kailas-cloud/neuralquery/internal/corpus"
	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/batch"
	"github.com/kailas-cloud/neuralquery/internal/metrics"
	"github.com/kailas-cloud/neuralquery/internal/repository/memstore"
)

func TestMain(m *testing.M) {
	metrics.RegisterServiceMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockBackend struct {
	ensureErrs  []error // consumed one per EnsureCollection call
	ensureCalls int
	dropCalls   int
	batchSize   int
	failBatch   int // 1-based batch index to fail; 0 never fails
	upserted    []domain.Item
	upsertCalls int
	stored      int // items present before this run
	unreachable bool
}

func (m *mockBackend) EnsureCollection(_ context.Context, _ domain.CollectionSpec) error {
	m.ensureCalls++
	if len(m.ensureErrs) > 0 {
		err := m.ensureErrs[0]
		m.ensureErrs = m.ensureErrs[1:]
		return err
	}
	return nil
}

func (m *mockBackend) Upsert(_ context.Context, _ string, items []domain.Item, onBatch batch.Callback) error {
	m.upsertCalls++
	ranges := batch.Split(len(items), m.batchSize)
	committed := 0
	for _, rg := range ranges {
		if rg.Index+1 == m.failBatch {
			return &batch.Error{Range: rg, Total: len(ranges), Committed: committed, Err: domain.ErrBackendUnavailable}
		}
		m.upserted = append(m.upserted, items[rg.Start:rg.End]...)
		committed += rg.Len()
		onBatch(rg, len(ranges))
	}
	return nil
}

func (m *mockBackend) DropCollection(_ context.Context, _ string) error {
	m.dropCalls++
	m.stored = 0
	return nil
}

func (m *mockBackend) Health(_ context.Context, _ string) domain.BackendHealth {
	if m.unreachable {
		return domain.BackendHealth{}
	}
	return domain.BackendHealth{Reachable: true, ItemCount: m.stored + len(m.upserted)}
}

type mockEmbedder struct {
	dim        int
	err        error
	batchCalls int
	texts      int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: make([]float32, m.dim)}, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.texts += len(texts)
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, m.dim)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

type memCheckpoints struct {
	entries map[string]domain.IngestCheckpoint
	puts    int
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{entries: map[string]domain.IngestCheckpoint{}}
}

func (m *memCheckpoints) Get(collection string) (domain.IngestCheckpoint, bool, error) {
	cp, ok := m.entries[collection]
	return cp, ok, nil
}

func (m *memCheckpoints) Put(cp domain.IngestCheckpoint) error {
	m.puts++
	m.entries[cp.Collection] = cp
	return nil
}

const testDim = 8

func testConfig() Config {
	return Config{Collection: "neural-search", Dimension: testDim, Metric: domain.MetricCosine, Model: "all-minilm"}
}

func newTestService(b *mockBackend, e *mockEmbedder, cps Checkpoints) *Service {
	s := New(b, e, cps, corpus.Documents(), testConfig())
	s.newRunID = func() string { return "run-test" }
	return s
}

func (s *Service) withBackend(b Backend) *Service {
	s.backend = b
	return s
}

// --- Tests ---

func TestRun_IngestsWholeCorpus(t *testing.T) {
	b := &mockBackend{batchSize: 8}
	e := &mockEmbedder{dim: testDim}
	cps := newMemCheckpoints()

	var progress []int
	rep, err := newTestService(b, e, cps).Run(context.Background(), Options{
		OnBatch: func(rg batch.Range, total int) { progress = append(progress, rg.End) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.RunID != "run-test" || rep.Documents != 20 || rep.Upserted != 20 || rep.Batches != 3 || rep.Skipped != 0 {
		t.Errorf("unexpected report: %+v", rep)
	}
	if fmt.Sprint(progress) != "[8 16 20]" {
		t.Errorf("progress = %v", progress)
	}
	if len(b.upserted) != 20 || b.upserted[0].ID != "doc_0" || b.upserted[19].ID != "doc_19" {
		t.Fatalf("unexpected upserted items")
	}
	if b.upserted[0].Metadata["category"] != corpus.Documents()[0].Category {
		t.Errorf("metadata = %v", b.upserted[0].Metadata)
	}
	if e.batchCalls != 1 || e.texts != 20 {
		t.Errorf("expected one batch embed of 20 texts, got %d calls / %d texts", e.batchCalls, e.texts)
	}
	cp := cps.entries["neural-search"]
	if !cp.Complete || cp.Committed != 20 || cp.Total != 20 {
		t.Errorf("unexpected checkpoint: %+v", cp)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	b := &mockBackend{}
	s := New(b, &mockEmbedder{dim: testDim}, nil, corpus.Documents(), Config{Collection: "", Dimension: testDim, Metric: domain.MetricCosine})
	_, err := s.Run(context.Background(), Options{})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if b.ensureCalls != 0 {
		t.Error("backend must not be touched with invalid config")
	}
}

func TestRun_DimensionMismatchWithoutRecreate(t *testing.T) {
	b := &mockBackend{ensureErrs: []error{domain.ErrDimensionMismatch}}
	_, err := newTestService(b, &mockEmbedder{dim: testDim}, nil).Run(context.Background(), Options{})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if b.dropCalls != 0 || b.upsertCalls != 0 {
		t.Errorf("expected no drop or upsert, got drop=%d upsert=%d", b.dropCalls, b.upsertCalls)
	}
}

func TestRun_RecreateOnDimensionMismatch(t *testing.T) {
	b := &mockBackend{batchSize: 100, ensureErrs: []error{fmt.Errorf("wrap: %w", domain.ErrDimensionMismatch)}}
	cps := newMemCheckpoints()
	fp := Fingerprint("all-minilm", testDim, corpus.Documents())
	cps.entries["neural-search"] = domain.IngestCheckpoint{Collection: "neural-search", Fingerprint: fp, Committed: 10}

	rep, err := newTestService(b, &mockEmbedder{dim: testDim}, cps).Run(context.Background(), Options{Recreate: true, Resume: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.dropCalls != 1 || b.ensureCalls != 2 {
		t.Errorf("expected drop + re-ensure, got drop=%d ensure=%d", b.dropCalls, b.ensureCalls)
	}
	if rep.Skipped != 0 || rep.Upserted != 20 {
		t.Errorf("a rebuilt collection must ignore the checkpoint: %+v", rep)
	}
}

func TestRun_BackendUnavailable(t *testing.T) {
	b := &mockBackend{ensureErrs: []error{domain.ErrBackendUnavailable}}
	_, err := newTestService(b, &mockEmbedder{dim: testDim}, nil).Run(context.Background(), Options{Recreate: true})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if b.dropCalls != 0 {
		t.Error("only a dimension mismatch may trigger a drop")
	}
}

func TestRun_EmbeddingFailure(t *testing.T) {
	b := &mockBackend{}
	_, err := newTestService(b, &mockEmbedder{err: domain.ErrEmbeddingProviderError}, nil).Run(context.Background(), Options{})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if b.upsertCalls != 0 {
		t.Error("nothing may be upserted when embedding fails")
	}
}

func TestRun_WrongEmbeddingDimension(t *testing.T) {
	b := &mockBackend{}
	_, err := newTestService(b, &mockEmbedder{dim: testDim + 1}, nil).Run(context.Background(), Options{})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRun_PartialFailureThenResume(t *testing.T) {
	cps := newMemCheckpoints()
	b := &mockBackend{batchSize: 8, failBatch: 2}

	_, err := newTestService(b, &mockEmbedder{dim: testDim}, cps).Run(context.Background(), Options{})
	var be *batch.Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *batch.Error, got %v", err)
	}
	if be.Range.Start != 8 || be.Committed != 8 {
		t.Errorf("unexpected batch error: %+v", be)
	}
	cp := cps.entries["neural-search"]
	if cp.Committed != 8 || cp.Complete {
		t.Fatalf("unexpected checkpoint after failure: %+v", cp)
	}

	// Second run resumes after the committed prefix.
	b2 := &mockBackend{batchSize: 8, stored: len(b.upserted)}
	e2 := &mockEmbedder{dim: testDim}
	rep, err := newTestService(b2, e2, cps).Run(context.Background(), Options{Resume: true})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if rep.Skipped != 8 || rep.Upserted != 12 {
		t.Errorf("unexpected resume report: %+v", rep)
	}
	if b2.upserted[0].ID != "doc_8" {
		t.Errorf("resume started at %s, want doc_8", b2.upserted[0].ID)
	}
	if e2.texts != 12 {
		t.Errorf("resume embedded %d texts, want 12", e2.texts)
	}
	if !cps.entries["neural-search"].Complete {
		t.Error("checkpoint should be complete")
	}
}

func TestRun_ResumeWithChangedFingerprintStartsOver(t *testing.T) {
	cps := newMemCheckpoints()
	cps.entries["neural-search"] = domain.IngestCheckpoint{Collection: "neural-search", Fingerprint: "stale", Committed: 16}
	b := &mockBackend{batchSize: 100}

	rep, err := newTestService(b, &mockEmbedder{dim: testDim}, cps).Run(context.Background(), Options{Resume: true})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Skipped != 0 || rep.Upserted != 20 {
		t.Errorf("unexpected report: %+v", rep)
	}
}

func TestRun_ResumeCompleteIsNoop(t *testing.T) {
	cps := newMemCheckpoints()
	fp := Fingerprint("all-minilm", testDim, corpus.Documents())
	cps.entries["neural-search"] = domain.IngestCheckpoint{Collection: "neural-search", Fingerprint: fp, Committed: 20, Complete: true}
	b := &mockBackend{stored: 20}
	e := &mockEmbedder{dim: testDim}

	rep, err := newTestService(b, e, cps).Run(context.Background(), Options{Resume: true})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Skipped != 20 || b.upsertCalls != 0 || e.batchCalls != 0 {
		t.Errorf("expected no work, got report %+v, upserts %d, embeds %d", rep, b.upsertCalls, e.batchCalls)
	}
}

func TestRun_ResumeAfterBackendDataLossStartsOver(t *testing.T) {
	fp := Fingerprint("all-minilm", testDim, corpus.Documents())
	tests := []struct {
		name    string
		backend *mockBackend
	}{
		{"empty backend", &mockBackend{batchSize: 100}},
		{"fewer items than committed", &mockBackend{batchSize: 100, stored: 5}},
		{"health unreachable", &mockBackend{batchSize: 100, unreachable: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cps := newMemCheckpoints()
			cps.entries["neural-search"] = domain.IngestCheckpoint{
				Collection: "neural-search", Fingerprint: fp, Committed: 20, Complete: true,
			}

			rep, err := newTestService(tt.backend, &mockEmbedder{dim: testDim}, cps).
				Run(context.Background(), Options{Resume: true})
			if err != nil {
				t.Fatal(err)
			}
			if rep.Skipped != 0 || rep.Upserted != 20 || len(tt.backend.upserted) != 20 {
				t.Errorf("expected a full re-ingest, got report %+v with %d items written", rep, len(tt.backend.upserted))
			}
		})
	}
}

func TestRun_ResumeAgainstFreshMemoryBackend(t *testing.T) {
	ctx := context.Background()
	cps := newMemCheckpoints()
	first := memstore.New(8)
	if _, err := newTestService(nil, &mockEmbedder{dim: testDim}, cps).withBackend(first).Run(ctx, Options{}); err != nil {
		t.Fatal(err)
	}
	if !cps.entries["neural-search"].Complete {
		t.Fatal("first run should leave a complete checkpoint")
	}

	// Same checkpoint ledger, but the backend lost its data.
	fresh := memstore.New(8)
	rep, err := newTestService(nil, &mockEmbedder{dim: testDim}, cps).withBackend(fresh).Run(ctx, Options{Resume: true})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Skipped != 0 || rep.Upserted != 20 {
		t.Errorf("unexpected report: %+v", rep)
	}
	if got := fresh.Health(ctx, "neural-search").ItemCount; got != 20 {
		t.Errorf("backend holds %d items, want 20", got)
	}
}

func TestRun_WithoutResumeIgnoresCheckpoint(t *testing.T) {
	cps := newMemCheckpoints()
	fp := Fingerprint("all-minilm", testDim, corpus.Documents())
	cps.entries["neural-search"] = domain.IngestCheckpoint{Collection: "neural-search", Fingerprint: fp, Committed: 20, Complete: true}
	b := &mockBackend{batchSize: 100}

	rep, err := newTestService(b, &mockEmbedder{dim: testDim}, cps).Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Upserted != 20 {
		t.Errorf("expected full re-ingest, got %+v", rep)
	}
}

func TestFingerprint(t *testing.T) {
	docs := corpus.Documents()
	base := Fingerprint("all-minilm", 384, docs)
	if base != Fingerprint("all-minilm", 384, corpus.Documents()) {
		t.Error("fingerprint must be deterministic")
	}
	if base == Fingerprint("other-model", 384, docs) {
		t.Error("model must change the fingerprint")
	}
	if base == Fingerprint("all-minilm", 768, docs) {
		t.Error("dimension must change the fingerprint")
	}
	edited := corpus.Documents()
	edited[3].Text += "!"
	if base == Fingerprint("all-minilm", 384, edited) {
		t.Error("text must change the fingerprint")
	}
}
