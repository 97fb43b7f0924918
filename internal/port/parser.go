package port

// DocumentParser extracts plain text from a source document.
type DocumentParser interface {
	// Extract reads the file at path and returns its text content.
	Extract(path string) (string, error)

	// ExtractBytes extracts text from raw content based on the file
	// extension (including the leading dot, e.g. ".pdf").
	ExtractBytes(content []byte, ext string) (string, error)
}
