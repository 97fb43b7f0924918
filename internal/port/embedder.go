package port

import "context"

// Embedder converts text into a fixed-dimension numeric vector.
type Embedder interface {
	// Embed generates the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
