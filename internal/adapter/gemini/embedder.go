package gemini

import (
	"context"
	"fmt"

	"kb/internal/domain"
)

// Embedder converts text into embedding vectors via the embedContent
// endpoint. Dimensionality is fixed per model for the life of the instance.
type Embedder struct {
	client    *Client
	model     string
	dimension int
}

type embedRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// NewEmbedder creates an embedder for the given model.
func NewEmbedder(client *Client, model string) *Embedder {
	dimension := 768
	switch model {
	case "text-embedding-004", "embedding-001":
		dimension = 768
	case "gemini-embedding-001":
		dimension = 3072
	}

	return &Embedder{
		client:    client,
		model:     model,
		dimension: dimension,
	}
}

// Embed generates the embedding for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := embedRequest{
		Model:   "models/" + e.model,
		Content: content{Parts: []part{{Text: text}}},
	}

	var resp embedResponse
	if err := e.client.post(ctx, "/models/"+e.model+":embedContent", req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: embedding response contained no values", domain.ErrProvider)
	}
	return resp.Embedding.Values, nil
}

// Dimension returns the embedding vector dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model.
func (e *Embedder) ModelName() string {
	return e.model
}
