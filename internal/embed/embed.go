// Package embed produces fixed-length vectors for chunk text.
package embed

import "context"

// Embedder turns texts into embedding vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ProbeDimension embeds a short probe text and returns the model's actual
// output dimension. The caller reconciles it against the configured
// collection dimension; a mismatch is corrected, not fatal.
func ProbeDimension(ctx context.Context, e Embedder) (int, error) {
	vecs, err := e.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 {
		return 0, nil
	}
	return len(vecs[0]), nil
}
