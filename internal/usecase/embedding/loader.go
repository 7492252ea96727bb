package embedding

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/neuralquery/internal/domain"
)

// probeText is embedded once at startup to prove the model answers with the configured dimension.
const probeText = "neuralquery startup probe"

// Load verifies that e is reachable and produces dim-dimensional vectors.
// Any failure wraps domain.ErrConfiguration so callers stop before serving.
func Load(ctx context.Context, e domain.Embedder, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", domain.ErrConfiguration, dim)
	}
	res, err := e.Embed(ctx, probeText)
	if err != nil {
		return fmt.Errorf("%w: embedding model unavailable: %w", domain.ErrConfiguration, err)
	}
	if len(res.Embedding) != dim {
		return fmt.Errorf("%w: embedding model produces %d dimensions, configured %d",
			domain.ErrConfiguration, len(res.Embedding), dim)
	}
	return nil
}
