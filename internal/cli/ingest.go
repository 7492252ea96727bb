package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/neuralquery/internal/corpus"
	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/batch"
	"github.com/kailas-cloud/neuralquery/internal/repository/checkpoint"
	ingestuc "github.com/kailas-cloud/neuralquery/internal/usecase/ingest"
)

const (
	lockFile       = "ingest.lock"
	checkpointFile = "checkpoints.db"
)

type ingestFlags struct {
	recreate   bool
	resume     bool
	noProgress bool
}

func newIngestCommand(g *globalFlags) *cobra.Command {
	f := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed the corpus and upsert it into the vector index",
		Long: `Ensures the collection exists, embeds every corpus document and upserts
the vectors in batches. Re-running is safe: items are replaced by id.

A failed run leaves earlier batches committed; --resume continues after them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), g, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&f.recreate, "recreate", false, "drop and recreate the collection if its dimension changed")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "skip items committed by the previous run of the same corpus")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

func runIngest(parent context.Context, g *globalFlags, f *ingestFlags, stdout, stderr io.Writer) error {
	a, cleanup, err := g.bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()
	logStart(a, "ingest")

	cfg := a.Config
	if err := os.MkdirAll(cfg.Ingest.StateDir, 0o750); err != nil {
		return fmt.Errorf("%w: state dir: %w", domain.ErrConfiguration, err)
	}

	unlock, err := acquireIngestLock(filepath.Join(cfg.Ingest.StateDir, lockFile))
	if err != nil {
		return err
	}
	defer unlock()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.LoadEmbedder(ctx); err != nil {
		return err
	}
	if err := a.WaitForBackend(ctx); err != nil {
		return err
	}

	cps, err := checkpoint.Open(filepath.Join(cfg.Ingest.StateDir, checkpointFile))
	if err != nil {
		return err
	}
	defer cps.Close()

	docs := corpus.Documents()
	svc := ingestuc.New(a.Backend, a.Embedder, cps, docs, ingestuc.Config{
		Collection: cfg.Backend.Collection,
		Dimension:  cfg.Embedding.Dimensions,
		Metric:     domain.Metric(cfg.Backend.Metric),
		Model:      cfg.Embedding.Model,
	})

	opts := ingestuc.Options{Recreate: f.recreate, Resume: f.resume}
	var bar *progressbar.ProgressBar
	if !f.noProgress {
		opts.OnBatch = func(rg batch.Range, total int) {
			if bar == nil {
				bar = newBatchBar(total, stderr)
			}
			_ = bar.Set(rg.Index + 1)
		}
	}

	rep, err := svc.Run(ctx, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		var be *batch.Error
		if errors.As(err, &be) {
			fmt.Fprintf(stderr, "%d of %d items are committed; rerun with --resume to continue from item %d.\n",
				be.Committed, len(docs), be.Committed)
		}
		return err
	}

	fmt.Fprintf(stdout, "Ingested %d documents into %q (%d upserted, %d skipped, %d batches) in %s [run %s]\n",
		rep.Documents, cfg.Backend.Collection, rep.Upserted, rep.Skipped, rep.Batches,
		rep.Duration.Round(time.Millisecond), rep.RunID)
	return nil
}

// acquireIngestLock takes the single-writer lock without waiting.
func acquireIngestLock(path string) (func(), error) {
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot acquire ingest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another ingestion run is in progress (lock: %s)", path)
	}
	return func() { _ = l.Unlock() }, nil
}

func newBatchBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Upserting batches[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
