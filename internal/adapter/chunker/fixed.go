package chunker

import (
	"fmt"

	"kb/internal/domain"
)

// FixedChunker splits text into fixed-length fragments with a character
// overlap between neighbours. No sentence or paragraph awareness: the split
// is a pure offset walk, trading boundary quality for speed.
type FixedChunker struct {
	size    int
	overlap int
}

// NewFixedChunker creates a chunker emitting fragments of size characters
// that share overlap characters with their predecessor. overlap >= size
// would never advance, so it is rejected up front.
func NewFixedChunker(size, overlap int) (*FixedChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfiguration, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrConfiguration, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap (%d) must be smaller than chunk size (%d)", domain.ErrConfiguration, overlap, size)
	}
	return &FixedChunker{size: size, overlap: overlap}, nil
}

// Split returns the ordered fragments of text. The final fragment may be
// shorter than the configured size; empty text yields no fragments.
// Offsets count runes, not bytes.
func (c *FixedChunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Size returns the configured fragment length in characters.
func (c *FixedChunker) Size() int {
	return c.size
}

// Overlap returns the configured overlap in characters.
func (c *FixedChunker) Overlap() int {
	return c.overlap
}
