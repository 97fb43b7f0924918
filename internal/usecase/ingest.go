package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"kb/internal/domain"
	"kb/internal/port"
)

// ProgressFunc reports ingestion progress as (completed, total) embedded
// fragments.
type ProgressFunc func(completed, total int)

// IngestPipeline turns one source file into a persisted document:
// parse, chunk, embed each chunk sequentially, then save atomically.
// Embedding calls are serialized with a fixed inter-call delay to stay
// under external rate limits.
type IngestPipeline struct {
	parser   port.DocumentParser
	chunker  port.Chunker
	embedder port.Embedder
	store    port.VectorStore
	delay    time.Duration
	logger   *zap.Logger
}

// NewIngestPipeline creates an ingestion pipeline.
func NewIngestPipeline(
	parser port.DocumentParser,
	chunker port.Chunker,
	embedder port.Embedder,
	store port.VectorStore,
	delay time.Duration,
	logger *zap.Logger,
) *IngestPipeline {
	return &IngestPipeline{
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		delay:    delay,
		logger:   logger,
	}
}

// Ingest parses the file at path, embeds its fragments and persists the
// resulting document under category. Any failure before the final save
// leaves the store untouched: a half-embedded document would silently
// degrade retrieval recall, so partial entries are disallowed.
func (p *IngestPipeline) Ingest(ctx context.Context, path, category string, progress ProgressFunc) (domain.Document, error) {
	name := filepath.Base(path)

	text, err := p.parser.Extract(path)
	if err != nil {
		return domain.Document{}, err
	}

	chunks := p.chunker.Split(text)
	p.logger.Debug("document parsed",
		zap.String("name", name),
		zap.Int("characters", len([]rune(text))),
		zap.Int("chunks", len(chunks)),
	)

	fragments := make([]domain.Fragment, 0, len(chunks))
	for i, chunk := range chunks {
		if i > 0 {
			if err := sleepCtx(ctx, p.delay); err != nil {
				return domain.Document{}, err
			}
		}
		if err := ctx.Err(); err != nil {
			return domain.Document{}, err
		}

		embedding, err := p.embedder.Embed(ctx, chunk)
		if err != nil {
			return domain.Document{}, fmt.Errorf("embed chunk %d/%d of %q: %w", i+1, len(chunks), name, err)
		}

		fragments = append(fragments, domain.Fragment{
			Content:   chunk,
			Embedding: embedding,
			Metadata:  map[string]string{"fileName": name},
		})
		if progress != nil {
			progress(i+1, len(chunks))
		}
	}

	docID, err := p.store.SaveDocument(name, category, fragments)
	if err != nil {
		return domain.Document{}, err
	}

	if category == "" {
		category = domain.DefaultCategory
	}
	doc := domain.Document{
		ID:         docID,
		Name:       name,
		Category:   category,
		CreatedAt:  time.Now(),
		ChunkCount: len(fragments),
	}

	p.logger.Info("document ingested",
		zap.Uint64("doc_id", docID),
		zap.String("name", name),
		zap.String("category", category),
		zap.Int("fragments", len(fragments)),
	)
	return doc, nil
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
