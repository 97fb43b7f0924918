package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"kb/internal/adapter/chunker"
	"kb/internal/adapter/store"
	"kb/internal/domain"
)

func newTestStore(t *testing.T) *store.BoltStore {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newChunker(t *testing.T, size, overlap int) *chunker.FixedChunker {
	t.Helper()
	c, err := chunker.NewFixedChunker(size, overlap)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestIngestChunksEmbedsAndPersists(t *testing.T) {
	text := strings.Repeat("alpha ", 150) + strings.Repeat("bravo ", 150) + strings.Repeat("charlie ", 25)
	text = string([]rune(text)[:2000])

	st := newTestStore(t)
	emb := &fakeEmbedder{dim: 8}
	pipeline := NewIngestPipeline(
		&fakeParser{text: text},
		newChunker(t, 800, 100),
		emb, st, 0, zap.NewNop(),
	)

	var progress [][2]int
	doc, err := pipeline.Ingest(context.Background(), "/tmp/report.pdf", "finance", func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	if err != nil {
		t.Fatal(err)
	}

	if doc.Name != "report.pdf" {
		t.Errorf("expected name report.pdf, got %q", doc.Name)
	}
	if doc.Category != "finance" {
		t.Errorf("expected category finance, got %q", doc.Category)
	}
	if doc.ChunkCount != 3 {
		t.Errorf("expected 3 chunks from 2000 chars at 800/100, got %d", doc.ChunkCount)
	}

	want := [][2]int{{1, 3}, {2, 3}, {3, 3}}
	if len(progress) != len(want) {
		t.Fatalf("expected %d progress reports, got %d", len(want), len(progress))
	}
	for i, p := range progress {
		if p != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, p, want[i])
		}
	}

	docs, err := st.ListDocuments()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != doc.ID {
		t.Fatalf("expected the ingested document in the store, got %v", docs)
	}

	// Searching with the embedding of chunk 2's own text returns chunk 2
	// with similarity 1.0.
	chunk2 := string([]rune(text)[700:1500])
	queryVec, err := emb.Embed(context.Background(), chunk2)
	if err != nil {
		t.Fatal(err)
	}
	results, err := st.Search(queryVec, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Fragment.Content != chunk2 {
		t.Error("expected chunk 2 as the top match for its own embedding")
	}
	if math.Abs(results[0].Similarity-1.0) > 1e-6 {
		t.Errorf("expected similarity 1.0, got %f", results[0].Similarity)
	}
	if results[0].Fragment.Metadata["fileName"] != "report.pdf" {
		t.Errorf("expected fileName metadata, got %v", results[0].Fragment.Metadata)
	}
}

func TestIngestAbortsOnEmbedFailure(t *testing.T) {
	// 3000 chars at 800/100 yields 5 chunks; the embedding call fails on
	// chunk 3. Nothing may be persisted.
	text := strings.Repeat("x", 3000)

	st := newTestStore(t)
	pipeline := NewIngestPipeline(
		&fakeParser{text: text},
		newChunker(t, 800, 100),
		&fakeEmbedder{dim: 8, failAt: 3},
		st, 0, zap.NewNop(),
	)

	_, err := pipeline.Ingest(context.Background(), "big.txt", "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrProvider) {
		t.Errorf("expected provider error, got %v", err)
	}

	docs, err := st.ListDocuments()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents after failed ingestion, got %d", len(docs))
	}
	results, err := st.Search(make([]float32, 8), nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no fragments after failed ingestion, got %d", len(results))
	}
}

func TestIngestAbortsOnParseFailure(t *testing.T) {
	st := newTestStore(t)
	emb := &fakeEmbedder{dim: 8}
	pipeline := NewIngestPipeline(
		&fakeParser{err: fmt.Errorf("%w: corrupt file", domain.ErrParse)},
		newChunker(t, 800, 100),
		emb, st, 0, zap.NewNop(),
	)

	_, err := pipeline.Ingest(context.Background(), "broken.pdf", "", nil)
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("expected no embedding calls, got %d", emb.calls)
	}
	docs, _ := st.ListDocuments()
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}

func TestIngestDelaysBetweenEmbeddingCalls(t *testing.T) {
	text := strings.Repeat("y", 2000) // 3 chunks

	const delay = 20 * time.Millisecond
	pipeline := NewIngestPipeline(
		&fakeParser{text: text},
		newChunker(t, 800, 100),
		&fakeEmbedder{dim: 8},
		newTestStore(t), delay, zap.NewNop(),
	)

	start := time.Now()
	if _, err := pipeline.Ingest(context.Background(), "slow.txt", "", nil); err != nil {
		t.Fatal(err)
	}
	// Two inter-call delays for three chunks.
	if elapsed := time.Since(start); elapsed < 2*delay {
		t.Errorf("expected at least %v of inter-call delay, took %v", 2*delay, elapsed)
	}
}

func TestIngestCancelled(t *testing.T) {
	st := newTestStore(t)
	pipeline := NewIngestPipeline(
		&fakeParser{text: strings.Repeat("z", 3000)},
		newChunker(t, 800, 100),
		&fakeEmbedder{dim: 8},
		st, 50*time.Millisecond, zap.NewNop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Ingest(ctx, "cancelled.txt", "", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	docs, _ := st.ListDocuments()
	if len(docs) != 0 {
		t.Errorf("expected no documents from cancelled ingestion, got %d", len(docs))
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	st := newTestStore(t)
	pipeline := NewIngestPipeline(
		&fakeParser{text: ""},
		newChunker(t, 800, 100),
		&fakeEmbedder{dim: 8},
		st, 0, zap.NewNop(),
	)

	doc, err := pipeline.Ingest(context.Background(), "empty.txt", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ChunkCount != 0 {
		t.Errorf("expected 0 chunks, got %d", doc.ChunkCount)
	}
	if doc.Category != domain.DefaultCategory {
		t.Errorf("expected default category, got %q", doc.Category)
	}
}
