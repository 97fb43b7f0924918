package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kb/internal/domain"
	"kb/internal/port"
)

// TurnOptions is caller-supplied per-turn configuration.
type TurnOptions struct {
	// Categories restricts retrieval to documents in these categories.
	// Empty means the whole corpus.
	Categories []string
	// SimilarityFloor is the minimum top-match similarity required before
	// the session answers from retrieved context.
	SimilarityFloor float64
}

// ChatSession ties the query router, vector store and generation provider
// together for one conversation. It carries the append-only turn history
// and the most recent retrieval result set, so a follow-up turn classified
// as "chat" can still reference the last retrieval without hitting the
// store again. State lives only in process memory.
type ChatSession struct {
	router   *QueryRouter
	embedder port.Embedder
	store    port.VectorStore
	llm      port.Generator
	model    string
	topK     int
	window   int // trailing turns included in the generation prompt
	logger   *zap.Logger

	history     []domain.Message
	lastContext []domain.ScoredFragment
}

// NewChatSession creates a session generating answers with the given model.
func NewChatSession(
	router *QueryRouter,
	embedder port.Embedder,
	store port.VectorStore,
	llm port.Generator,
	model string,
	topK, window int,
	logger *zap.Logger,
) *ChatSession {
	if topK <= 0 {
		topK = 5
	}
	if window <= 0 {
		window = 6
	}
	return &ChatSession{
		router:   router,
		embedder: embedder,
		store:    store,
		llm:      llm,
		model:    model,
		topK:     topK,
		window:   window,
		logger:   logger,
	}
}

// AnswerTurn runs one conversational turn and returns the assistant
// message, which is also appended to the session history.
//
// Provider failures become an inline assistant-role error message so the
// conversation can continue; store failures are returned as errors since
// they imply possible corruption of the knowledge base.
func (s *ChatSession) AnswerTurn(ctx context.Context, utterance string, opts TurnOptions) (string, error) {
	// The router and the generation prompt see the history as it was
	// before this turn.
	prior := s.history
	s.history = append(s.history, domain.Message{Role: domain.RoleUser, Content: utterance})

	intent := s.router.Classify(ctx, utterance, prior)

	contextFrags := s.lastContext
	finalQuery := utterance

	if intent.Kind == domain.IntentSearch {
		finalQuery = intent.Query

		filter, err := s.resolveCategories(opts.Categories)
		if err != nil {
			return "", err
		}

		queryVec, err := s.embedder.Embed(ctx, finalQuery)
		if err != nil {
			return s.failTurn(err)
		}

		results, err := s.store.Search(queryVec, filter, s.topK)
		if err != nil {
			return s.failTurn(err)
		}

		if len(results) == 0 || results[0].Similarity < opts.SimilarityFloor {
			topSim := 0.0
			if len(results) > 0 {
				topSim = results[0].Similarity
			}
			s.logger.Debug("no match above similarity floor",
				zap.String("query", finalQuery),
				zap.Float64("top_similarity", topSim),
				zap.Float64("floor", opts.SimilarityFloor),
			)
			msg := noInfoMessage(finalQuery, topSim, opts.SimilarityFloor)
			s.history = append(s.history, domain.Message{Role: domain.RoleAssistant, Content: msg})
			return msg, nil
		}

		contextFrags = results
		s.lastContext = results
		s.logger.Debug("retrieval adopted",
			zap.String("query", finalQuery),
			zap.Int("fragments", len(results)),
			zap.Float64("top_similarity", results[0].Similarity),
		)
	}

	answer, err := s.llm.Generate(ctx, buildAnswerPrompt(finalQuery, contextFrags, tail(prior, s.window)), s.model)
	if err != nil {
		return s.failTurn(err)
	}

	s.history = append(s.history, domain.Message{Role: domain.RoleAssistant, Content: answer})
	return answer, nil
}

// History returns the conversation so far.
func (s *ChatSession) History() []domain.Message {
	return s.history
}

// failTurn converts a provider failure into an inline assistant message.
// Store failures are never swallowed.
func (s *ChatSession) failTurn(err error) (string, error) {
	if errors.Is(err, domain.ErrStore) {
		return "", err
	}
	s.logger.Warn("chat turn failed", zap.Error(err))
	msg := "Error: " + err.Error()
	s.history = append(s.history, domain.Message{Role: domain.RoleAssistant, Content: msg})
	return msg, nil
}

// resolveCategories maps category names to the ids of their documents.
// An empty result (no categories given, or none of them populated) means
// the whole corpus.
func (s *ChatSession) resolveCategories(categories []string) ([]uint64, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	docs, err := s.store.ListDocuments()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	var ids []uint64
	for _, doc := range docs {
		category := doc.Category
		if category == "" {
			category = domain.DefaultCategory
		}
		if wanted[category] {
			ids = append(ids, doc.ID)
		}
	}
	return ids, nil
}

// noInfoMessage is the fixed reply for a turn whose best match falls below
// the similarity floor. The generation provider is not called.
func noInfoMessage(query string, topSimilarity, floor float64) string {
	return fmt.Sprintf(
		"The knowledge base has no relevant information about %q (best match %.1f%%, below the %.0f%% threshold). You can try lowering the threshold.",
		query, topSimilarity*100, floor*100,
	)
}

// buildAnswerPrompt composes the generation prompt from the question, the
// retrieved fragments and a trailing window of conversation history.
func buildAnswerPrompt(question string, fragments []domain.ScoredFragment, history []domain.Message) string {
	refs := make([]string, 0, len(fragments))
	for _, f := range fragments {
		refs = append(refs, "[reference]: "+f.Fragment.Content)
	}

	var b strings.Builder
	b.WriteString("You are a knowledge base assistant. Answer the [User Question] based on the [References] and the [Conversation History].\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Prefer the [References] when answering.\n")
	b.WriteString("2. If the references are insufficient, say so clearly instead of inventing facts.\n")
	b.WriteString("3. Answer in Markdown; use tables for numeric data.\n\n")
	b.WriteString("[Conversation History]:\n")
	b.WriteString(renderHistory(history))
	b.WriteString("\n\n[References]:\n")
	b.WriteString(strings.Join(refs, "\n\n"))
	b.WriteString("\n\n[User Question]:\n")
	b.WriteString(question)
	return b.String()
}
