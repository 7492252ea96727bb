// Package ingest embeds the static corpus and upserts it into the vector backend.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/corpus"
	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/batch"
	"github.com/kailas-cloud/neuralquery/internal/logger"
	"github.com/kailas-cloud/neuralquery/internal/metrics"
)

// Config identifies the target collection and the embedding model feeding it.
type Config struct {
	Collection string
	Dimension  int
	Metric     domain.Metric
	Model      string
}

// Options tune a single run.
type Options struct {
	// Recreate drops and recreates a collection whose dimension no longer matches.
	Recreate bool
	// Resume skips items a previous run with the same fingerprint already committed.
	Resume bool
	// OnBatch observes each committed batch, e.g. to drive a progress bar.
	OnBatch batch.Callback
}

// Report summarises a finished run.
type Report struct {
	RunID     string
	Documents int
	Batches   int
	Upserted  int
	Skipped   int
	Duration  time.Duration
}

// Service runs ingestion jobs.
type Service struct {
	backend     Backend
	embed       domain.Embedder
	checkpoints Checkpoints
	docs        []corpus.Document
	cfg         Config
	newRunID    func() string
	now         func() time.Time
}

// New creates an ingestion service over docs. checkpoints may be nil, which disables Resume.
func New(backend Backend, embed domain.Embedder, checkpoints Checkpoints, docs []corpus.Document, cfg Config) *Service {
	return &Service{
		backend:     backend,
		embed:       embed,
		checkpoints: checkpoints,
		docs:        docs,
		cfg:         cfg,
		newRunID:    func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

// Run ensures the collection, embeds the corpus and upserts it in batches.
// A partial failure returns an error wrapping *batch.Error with corpus-relative ranges.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	start := s.now()
	rep := Report{RunID: s.newRunID(), Documents: len(s.docs)}
	log := logger.FromContext(ctx).With(zap.String("run_id", rep.RunID), zap.String("collection", s.cfg.Collection))

	spec := domain.CollectionSpec{Name: s.cfg.Collection, Dimension: s.cfg.Dimension, Metric: s.cfg.Metric}
	if err := spec.Validate(); err != nil {
		return rep, err
	}

	dropped, err := s.ensure(ctx, spec, opts.Recreate, log)
	if err != nil {
		return rep, err
	}

	fingerprint := Fingerprint(s.cfg.Model, s.cfg.Dimension, s.docs)
	offset, err := s.resumeOffset(ctx, fingerprint, opts.Resume && !dropped, log)
	if err != nil {
		return rep, err
	}
	rep.Skipped = offset

	pending := s.docs[offset:]
	if len(pending) == 0 {
		log.Info("nothing to ingest", zap.Int("skipped", offset))
		rep.Duration = s.now().Sub(start)
		return rep, s.save(fingerprint, rep.RunID, len(s.docs), true)
	}

	items, err := s.embedDocs(ctx, pending)
	if err != nil {
		return rep, err
	}

	onBatch := func(rg batch.Range, total int) {
		rep.Batches = total
		rep.Upserted += rg.Len()
		metrics.IngestItemsTotal.Add(float64(rg.Len()))
		log.Info(fmt.Sprintf("upserted batch %d/%d", rg.Index+1, total), zap.Int("items", rg.Len()))
		if err := s.save(fingerprint, rep.RunID, offset+rg.End, false); err != nil {
			log.Warn("checkpoint write failed", zap.Error(err))
		}
		if opts.OnBatch != nil {
			opts.OnBatch(rg, total)
		}
	}

	if err := s.backend.Upsert(ctx, s.cfg.Collection, items, onBatch); err != nil {
		rep.Duration = s.now().Sub(start)
		var be *batch.Error
		if errors.As(err, &be) {
			metrics.IngestBatchFailuresTotal.Inc()
			return rep, fmt.Errorf("upsert: %w", be.Offset(offset))
		}
		return rep, fmt.Errorf("upsert: %w", err)
	}

	rep.Duration = s.now().Sub(start)
	if err := s.save(fingerprint, rep.RunID, len(s.docs), true); err != nil {
		log.Warn("checkpoint write failed", zap.Error(err))
	}
	log.Info("ingestion complete",
		zap.Int("documents", rep.Documents),
		zap.Int("upserted", rep.Upserted),
		zap.Int("skipped", rep.Skipped),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// ensure creates the collection; with recreate, a dimension mismatch drops it first.
// dropped reports whether the collection was rebuilt, which invalidates any checkpoint.
func (s *Service) ensure(ctx context.Context, spec domain.CollectionSpec, recreate bool, log *zap.Logger) (bool, error) {
	err := s.backend.EnsureCollection(ctx, spec)
	if err == nil {
		return false, nil
	}
	if !recreate || !errors.Is(err, domain.ErrDimensionMismatch) {
		return false, fmt.Errorf("ensure collection: %w", err)
	}

	log.Warn("dimension mismatch, recreating collection", zap.Error(err))
	if err := s.backend.DropCollection(ctx, spec.Name); err != nil {
		return false, fmt.Errorf("drop collection: %w", err)
	}
	if err := s.backend.EnsureCollection(ctx, spec); err != nil {
		return true, fmt.Errorf("ensure collection: %w", err)
	}
	return true, nil
}

// resumeOffset returns how many leading documents are already committed.
// The checkpoint is trusted only while the backend still holds at least that many items.
func (s *Service) resumeOffset(ctx context.Context, fingerprint string, resume bool, log *zap.Logger) (int, error) {
	if !resume || s.checkpoints == nil {
		return 0, nil
	}
	cp, found, err := s.checkpoints.Get(s.cfg.Collection)
	if err != nil {
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}
	if !found {
		return 0, nil
	}
	if cp.Fingerprint != fingerprint {
		log.Info("corpus or model changed since last run, starting over", zap.String("previous_run", cp.RunID))
		return 0, nil
	}
	if cp.Committed <= 0 || cp.Committed > len(s.docs) {
		return 0, nil
	}
	if h := s.backend.Health(ctx, s.cfg.Collection); !h.Reachable || h.ItemCount < cp.Committed {
		log.Warn("backend holds fewer items than the checkpoint, starting over",
			zap.String("previous_run", cp.RunID),
			zap.Int("committed", cp.Committed),
			zap.Int("stored", h.ItemCount),
			zap.Bool("reachable", h.Reachable),
		)
		return 0, nil
	}
	log.Info("resuming", zap.String("previous_run", cp.RunID), zap.Int("committed", cp.Committed))
	return cp.Committed, nil
}

func (s *Service) embedDocs(ctx context.Context, docs []corpus.Document) ([]domain.Item, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	res, err := domain.EmbedMany(ctx, s.embed, texts)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(res.Embeddings) != len(docs) {
		return nil, fmt.Errorf("embed corpus: %w: got %d vectors for %d documents",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(docs))
	}

	items := make([]domain.Item, len(docs))
	for i, d := range docs {
		if err := domain.CheckDimension(res.Embeddings[i], s.cfg.Dimension); err != nil {
			return nil, fmt.Errorf("embed %s: %w", d.ID, err)
		}
		items[i] = domain.Item{
			ID:       d.ID,
			Vector:   res.Embeddings[i],
			Metadata: domain.Metadata{"category": d.Category},
		}
	}
	return items, nil
}

func (s *Service) save(fingerprint, runID string, committed int, complete bool) error {
	if s.checkpoints == nil {
		return nil
	}
	return s.checkpoints.Put(domain.IngestCheckpoint{
		Collection:  s.cfg.Collection,
		Fingerprint: fingerprint,
		RunID:       runID,
		Committed:   committed,
		Total:       len(s.docs),
		Complete:    complete,
	})
}

// Fingerprint identifies a corpus as embedded by one model at one dimension.
func Fingerprint(model string, dim int, docs []corpus.Document) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(model)
	write(strconv.Itoa(dim))
	for _, d := range docs {
		write(d.ID)
		write(d.Text)
		write(d.Category)
	}
	return hex.EncodeToString(h.Sum(nil))
}
