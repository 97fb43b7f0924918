package gemini

import (
	"context"
	"fmt"
	"strings"

	"kb/internal/domain"
)

// Generator produces text via the generateContent endpoint.
type Generator struct {
	client *Client
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type listModelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// NewGenerator creates a generator sharing the given client.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate produces text from a single prompt using the named model.
func (g *Generator) Generate(ctx context.Context, prompt string, model string) (string, error) {
	req := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
	}
	return g.generate(ctx, model, req)
}

// Chat produces text from a prompt preceded by prior conversation turns.
// Assistant turns map to the API's "model" role.
func (g *Generator) Chat(ctx context.Context, history []domain.Message, prompt string, model string) (string, error) {
	contents := make([]content, 0, len(history)+1)
	for _, msg := range history {
		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: msg.Content}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: prompt}}})

	return g.generate(ctx, model, generateRequest{Contents: contents})
}

func (g *Generator) generate(ctx context.Context, model string, req generateRequest) (string, error) {
	var resp generateResponse
	if err := g.client.post(ctx, "/models/"+model+":generateContent", req, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: generation response contained no candidates", domain.ErrProvider)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

// ListModels returns the names of models that support generateContent,
// stripped of their "models/" prefix.
func (g *Generator) ListModels(ctx context.Context) ([]string, error) {
	var resp listModelsResponse
	if err := g.client.get(ctx, "/models", &resp); err != nil {
		return nil, err
	}

	var names []string
	for _, m := range resp.Models {
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				names = append(names, strings.TrimPrefix(m.Name, "models/"))
				break
			}
		}
	}
	return names, nil
}
