package port

import (
	"context"

	"kb/internal/domain"
)

// Generator produces natural-language text from prompts.
type Generator interface {
	// Generate produces text from a single prompt using the named model.
	Generate(ctx context.Context, prompt string, model string) (string, error)

	// Chat produces text from a prompt in the context of prior turns.
	Chat(ctx context.Context, history []domain.Message, prompt string, model string) (string, error)

	// ListModels returns the provider's generation-capable model names.
	ListModels(ctx context.Context) ([]string, error)
}
