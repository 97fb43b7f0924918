package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kb/internal/domain"
	"kb/internal/port"
)

// QueryRouter classifies a conversational turn as needing a fresh retrieval
// ("search") or not ("chat"), and rewrites search turns into standalone
// queries with pronouns resolved against recent history.
//
// The classification is delegated to a generation call and is best-effort:
// the provider's output is untrusted text, parsed defensively. Anything
// malformed falls back to a search with the raw utterance, so the router
// never crashes or stalls the conversation.
type QueryRouter struct {
	llm    port.Generator
	model  string
	window int // trailing turns shown to the model
	logger *zap.Logger
}

// NewQueryRouter creates a router using the given (typically fast) model.
func NewQueryRouter(llm port.Generator, model string, window int, logger *zap.Logger) *QueryRouter {
	if window <= 0 {
		window = 4
	}
	return &QueryRouter{
		llm:    llm,
		model:  model,
		window: window,
		logger: logger,
	}
}

// Classify returns the intent for the new utterance given recent history.
func (r *QueryRouter) Classify(ctx context.Context, utterance string, history []domain.Message) domain.Intent {
	fallback := domain.Intent{Kind: domain.IntentSearch, Query: utterance}

	raw, err := r.llm.Generate(ctx, r.buildPrompt(utterance, history), r.model)
	if err != nil {
		r.logger.Debug("intent classification call failed, falling back to search", zap.Error(err))
		return fallback
	}

	intent, err := parseIntent(raw, utterance)
	if err != nil {
		r.logger.Debug("intent classification output rejected, falling back to search",
			zap.String("output", raw),
			zap.Error(err),
		)
		return fallback
	}
	return intent
}

func (r *QueryRouter) buildPrompt(utterance string, history []domain.Message) string {
	var b strings.Builder
	b.WriteString("Analyze the user's latest query in the context of the conversation history.\n\n")
	b.WriteString("History:\n")
	b.WriteString(renderHistory(tail(history, r.window)))
	b.WriteString("\n\nUser Query: \"")
	b.WriteString(utterance)
	b.WriteString("\"\n\nTask:\n")
	b.WriteString("1. Determine intent:\n")
	b.WriteString("   - 'search': needs to retrieve new information from documents (facts, numbers, specific content).\n")
	b.WriteString("   - 'chat': general conversation, greeting, or clarification/summarization of a *previous* answer without needing new documents.\n")
	b.WriteString("2. If 'search', rewrite the query to be standalone and specific, resolving any pronouns (it, they, that) from the history.\n\n")
	b.WriteString(`Output JSON only: { "type": "search" | "chat", "newQuery": "..." }`)
	return b.String()
}

type intentOutput struct {
	Type     string `json:"type"`
	NewQuery string `json:"newQuery"`
}

// parseIntent validates the provider's output against the expected shape.
// utterance is used as the rewritten query when the model classifies a
// search but omits one.
func parseIntent(raw, utterance string) (domain.Intent, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var out intentOutput
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return domain.Intent{}, fmt.Errorf("%w: %v", domain.ErrClassification, err)
	}

	switch out.Type {
	case string(domain.IntentSearch):
		query := strings.TrimSpace(out.NewQuery)
		if query == "" {
			query = utterance
		}
		return domain.Intent{Kind: domain.IntentSearch, Query: query}, nil
	case string(domain.IntentChat):
		return domain.Intent{Kind: domain.IntentChat}, nil
	default:
		return domain.Intent{}, fmt.Errorf("%w: unknown intent type %q", domain.ErrClassification, out.Type)
	}
}

// renderHistory formats turns as "User:"/"AI:" lines.
func renderHistory(history []domain.Message) string {
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		speaker := "User"
		if msg.Role == domain.RoleAssistant {
			speaker = "AI"
		}
		lines = append(lines, speaker+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

// tail returns the last n elements of msgs.
func tail(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
