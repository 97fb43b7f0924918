package domain

import "errors"

// Error kinds. Callers match with errors.Is; adapters wrap with
// fmt.Errorf("...: %w", ...) so the underlying cause stays inspectable.
var (
	// ErrConfiguration marks invalid setup, e.g. chunk overlap >= chunk size
	// or an uninitialized provider. Aborts before any write.
	ErrConfiguration = errors.New("configuration error")

	// ErrParse marks an unreadable or corrupt source file.
	ErrParse = errors.New("parse error")

	// ErrProvider marks a failed embedding or generation call (network,
	// auth, quota, malformed response).
	ErrProvider = errors.New("provider error")

	// ErrStore marks a persistence layer failure. Never swallowed: it
	// implies possible corruption of the knowledge base.
	ErrStore = errors.New("store error")

	// ErrClassification marks unparsable query-router output. Recovered
	// locally by falling back to a search with the raw utterance; never
	// surfaced to the user.
	ErrClassification = errors.New("classification error")
)
