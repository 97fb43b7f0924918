package domain

import "time"

// DefaultCategory is the label applied to documents without one.
const DefaultCategory = "uncategorized"

// Document is one ingested source file. A document always belongs to
// exactly one category; deleting it cascades to its fragments.
type Document struct {
	ID         uint64
	Name       string
	Category   string
	CreatedAt  time.Time
	ChunkCount int
}

// Fragment is the unit of embedding and retrieval: a bounded substring of a
// document's extracted text plus its embedding vector.
type Fragment struct {
	ID        string
	DocID     uint64
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// ScoredFragment pairs a fragment with its cosine similarity to a query.
type ScoredFragment struct {
	Fragment   Fragment
	Similarity float64
}

// Message roles in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn, held only in process memory.
type Message struct {
	Role    string
	Content string
}

// IntentKind classifies a conversational turn.
type IntentKind string

const (
	// IntentSearch means the turn needs a fresh retrieval.
	IntentSearch IntentKind = "search"
	// IntentChat means the turn can reuse previously retrieved context.
	IntentChat IntentKind = "chat"
)

// Intent is the query router's verdict for a turn. Query is the standalone
// rewritten query when Kind is IntentSearch.
type Intent struct {
	Kind  IntentKind
	Query string
}
