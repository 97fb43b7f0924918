package port

import "kb/internal/domain"

// VectorStore persists documents, their fragments and fragment vectors.
// Search is brute-force at the target scale; an indexed implementation can
// be substituted behind this interface without changing callers.
type VectorStore interface {
	// SaveDocument atomically creates one document and its fragments.
	// Either all fragments are persisted or none are. Returns the new
	// document id.
	SaveDocument(name, category string, fragments []domain.Fragment) (uint64, error)

	// ListDocuments returns all documents.
	ListDocuments() ([]domain.Document, error)

	// DeleteDocument removes the document and every fragment it owns.
	// No-op if the id does not exist.
	DeleteDocument(id uint64) error

	// DeleteCategory deletes every document whose category equals name
	// (documents without a category fall back to the default label).
	DeleteCategory(name string) error

	// UpdateCategory moves every document under oldName to newName.
	// No-op if nothing matches.
	UpdateCategory(oldName, newName string) error

	// ClearAll removes every document and fragment.
	ClearAll() error

	// Search ranks all fragments by cosine similarity to query, restricted
	// to the given document ids when filterDocIDs is non-empty, and returns
	// the top limit matches in descending similarity order.
	Search(query []float32, filterDocIDs []uint64, limit int) ([]domain.ScoredFragment, error)

	Close() error
}
