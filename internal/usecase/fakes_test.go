package usecase

import (
	"context"
	"crypto/sha256"
	"fmt"

	"kb/internal/domain"
)

// fakeParser returns fixed text for any path.
type fakeParser struct {
	text string
	err  error
}

func (p *fakeParser) Extract(string) (string, error) {
	return p.text, p.err
}

func (p *fakeParser) ExtractBytes([]byte, string) (string, error) {
	return p.text, p.err
}

// fakeEmbedder returns deterministic text-derived vectors, with optional
// overrides per input and an optional failure on the nth call.
type fakeEmbedder struct {
	dim     int
	vectors map[string][]float32
	failAt  int
	calls   int
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.failAt > 0 && e.calls == e.failAt {
		return nil, fmt.Errorf("%w: quota exhausted", domain.ErrProvider)
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, e.dim)
	for i := range vec {
		vec[i] = float32(sum[i])/255 + 0.01
	}
	return vec, nil
}

func (e *fakeEmbedder) Dimension() int {
	return e.dim
}

func (e *fakeEmbedder) ModelName() string {
	return "fake"
}

// fakeGenerator replays scripted responses and records prompts.
type fakeGenerator struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "ok", nil
	}
	resp := g.responses[0]
	if len(g.responses) > 1 {
		g.responses = g.responses[1:]
	}
	return resp, nil
}

func (g *fakeGenerator) Chat(ctx context.Context, _ []domain.Message, prompt string, model string) (string, error) {
	return g.Generate(ctx, prompt, model)
}

func (g *fakeGenerator) ListModels(context.Context) ([]string, error) {
	return []string{"gemini-1.5-flash"}, nil
}

// failingStore fails every operation with a store error.
type failingStore struct{}

func (failingStore) SaveDocument(string, string, []domain.Fragment) (uint64, error) {
	return 0, fmt.Errorf("%w: disk full", domain.ErrStore)
}

func (failingStore) ListDocuments() ([]domain.Document, error) {
	return nil, fmt.Errorf("%w: disk full", domain.ErrStore)
}

func (failingStore) DeleteDocument(uint64) error {
	return fmt.Errorf("%w: disk full", domain.ErrStore)
}

func (failingStore) DeleteCategory(string) error {
	return fmt.Errorf("%w: disk full", domain.ErrStore)
}

func (failingStore) UpdateCategory(string, string) error {
	return fmt.Errorf("%w: disk full", domain.ErrStore)
}

func (failingStore) ClearAll() error {
	return fmt.Errorf("%w: disk full", domain.ErrStore)
}

func (failingStore) Search([]float32, []uint64, int) ([]domain.ScoredFragment, error) {
	return nil, fmt.Errorf("%w: disk full", domain.ErrStore)
}

func (failingStore) Close() error { return nil }
