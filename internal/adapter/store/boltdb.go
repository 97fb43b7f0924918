// Package store persists documents, fragments and fragment vectors in
// BoltDB. Similarity search is brute-force over an in-memory vector cache;
// the port.VectorStore interface allows swapping in an indexed
// implementation later without touching callers.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"kb/internal/domain"
)

var (
	bucketDocuments    = []byte("documents")
	bucketFragments    = []byte("fragments")
	bucketDocFragments = []byte("doc_fragments")
	bucketMeta         = []byte("meta")
)

// BoltStore is a BoltDB-backed vector store. Fragment vectors are mirrored
// in memory so search never touches the disk for scoring; fragment content
// is loaded only for the returned hits.
type BoltStore struct {
	db *bbolt.DB

	mu        sync.RWMutex
	vectors   map[string]vectorEntry
	dimension int // 0 until the first fragment is stored
}

type vectorEntry struct {
	docID  uint64
	vector []float32
}

type docRecord struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	CreatedAt  int64  `json:"created_at"`
	ChunkCount int    `json:"chunk_count"`
}

type fragmentRecord struct {
	DocID     uint64            `json:"doc_id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewBoltStore opens (or creates) the database at path, runs any pending
// schema migration and loads the vector cache.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %v", domain.ErrStore, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketFragments, bucketDocFragments, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	s := &BoltStore{
		db:      db,
		vectors: make(map[string]vectorEntry),
	}

	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: load vectors: %v", domain.ErrStore, err)
	}

	return s, nil
}

// loadVectors fills the in-memory cache from the fragments bucket.
func (s *BoltStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFragments).ForEach(func(k, v []byte) error {
			var rec fragmentRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // skip corrupted entries
			}
			s.vectors[string(k)] = vectorEntry{docID: rec.DocID, vector: rec.Embedding}
			if s.dimension == 0 {
				s.dimension = len(rec.Embedding)
			}
			return nil
		})
	})
}

// SaveDocument atomically creates one document and its fragments in a single
// write transaction; a reader never observes the document with a partial
// fragment set. Returns the new document id.
func (s *BoltStore) SaveDocument(name, category string, fragments []domain.Fragment) (uint64, error) {
	if category == "" {
		category = domain.DefaultCategory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range fragments {
		if s.dimension != 0 && len(f.Embedding) != s.dimension {
			return 0, fmt.Errorf("%w: embedding dimension mismatch: store has %d, fragment has %d", domain.ErrStore, s.dimension, len(f.Embedding))
		}
	}

	var docID uint64
	fragIDs := make([]string, len(fragments))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)

		id, err := docs.NextSequence()
		if err != nil {
			return err
		}
		docID = id

		rec := docRecord{
			Name:       name,
			Category:   category,
			CreatedAt:  time.Now().Unix(),
			ChunkCount: len(fragments),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := docs.Put(itob(docID), data); err != nil {
			return err
		}

		frags := tx.Bucket(bucketFragments)
		for i, f := range fragments {
			fragID := f.ID
			if fragID == "" {
				fragID = uuid.NewString()
			}
			fragIDs[i] = fragID

			fragData, err := json.Marshal(fragmentRecord{
				DocID:     docID,
				Content:   f.Content,
				Embedding: f.Embedding,
				Metadata:  f.Metadata,
			})
			if err != nil {
				return err
			}
			if err := frags.Put([]byte(fragID), fragData); err != nil {
				return err
			}
		}

		idsData, err := json.Marshal(fragIDs)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocFragments).Put(itob(docID), idsData)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: save document %q: %v", domain.ErrStore, name, err)
	}

	for i, f := range fragments {
		s.vectors[fragIDs[i]] = vectorEntry{docID: docID, vector: f.Embedding}
		if s.dimension == 0 {
			s.dimension = len(f.Embedding)
		}
	}

	return docID, nil
}

// ListDocuments returns all documents.
func (s *BoltStore) ListDocuments() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var rec docRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			docs = append(docs, domain.Document{
				ID:         btoi(k),
				Name:       rec.Name,
				Category:   rec.Category,
				CreatedAt:  time.Unix(rec.CreatedAt, 0),
				ChunkCount: rec.ChunkCount,
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", domain.ErrStore, err)
	}
	return docs, nil
}

// DeleteDocument removes the document and cascades to every fragment it
// owns. Deleting a missing id is a no-op.
func (s *BoltStore) DeleteDocument(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fragIDs []string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		docFrags := tx.Bucket(bucketDocFragments)
		if data := docFrags.Get(itob(id)); data != nil {
			if err := json.Unmarshal(data, &fragIDs); err != nil {
				return err
			}
		}

		frags := tx.Bucket(bucketFragments)
		for _, fragID := range fragIDs {
			if err := frags.Delete([]byte(fragID)); err != nil {
				return err
			}
		}
		if err := docFrags.Delete(itob(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketDocuments).Delete(itob(id))
	})
	if err != nil {
		return fmt.Errorf("%w: delete document %d: %v", domain.ErrStore, id, err)
	}

	for _, fragID := range fragIDs {
		delete(s.vectors, fragID)
	}
	if len(s.vectors) == 0 {
		s.dimension = 0
	}
	return nil
}

// DeleteCategory deletes every document filed under name. Documents without
// a category match the default label.
func (s *BoltStore) DeleteCategory(name string) error {
	docs, err := s.ListDocuments()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if categoryOf(doc.Category) == name {
			if err := s.DeleteDocument(doc.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateCategory moves every document under oldName to newName. The affected
// id set is computed first, then applied in one batch transaction.
func (s *BoltStore) UpdateCategory(oldName, newName string) error {
	docs, err := s.ListDocuments()
	if err != nil {
		return err
	}

	var affected []uint64
	for _, doc := range docs {
		if categoryOf(doc.Category) == oldName {
			affected = append(affected, doc.ID)
		}
	}
	if len(affected) == 0 {
		return nil
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		for _, id := range affected {
			data := b.Get(itob(id))
			if data == nil {
				continue
			}
			var rec docRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			rec.Category = newName
			updated, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put(itob(id), updated); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: rename category %q to %q: %v", domain.ErrStore, oldName, newName, err)
	}
	return nil
}

// ClearAll removes every document and fragment.
func (s *BoltStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocuments, bucketFragments, bucketDocFragments} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: clear all: %v", domain.ErrStore, err)
	}

	s.vectors = make(map[string]vectorEntry)
	s.dimension = 0
	return nil
}

// Search ranks all fragments by cosine similarity to query, restricted to
// filterDocIDs when non-empty, and returns the top limit matches in
// descending order. Tie order is unspecified but stable within a call.
func (s *BoltStore) Search(query []float32, filterDocIDs []uint64, limit int) ([]domain.ScoredFragment, error) {
	if limit <= 0 {
		limit = 5
	}

	s.mu.RLock()

	if s.dimension != 0 && len(query) != s.dimension {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: query dimension mismatch: store has %d, query has %d", domain.ErrStore, s.dimension, len(query))
	}

	var filter map[uint64]bool
	if len(filterDocIDs) > 0 {
		filter = make(map[uint64]bool, len(filterDocIDs))
		for _, id := range filterDocIDs {
			filter[id] = true
		}
	}

	type scored struct {
		fragID     string
		similarity float64
	}
	scores := make([]scored, 0, len(s.vectors))
	for fragID, entry := range s.vectors {
		if filter != nil && !filter[entry.docID] {
			continue
		}
		scores = append(scores, scored{fragID, cosineSimilarity(query, entry.vector)})
	}
	s.mu.RUnlock()

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].similarity > scores[j].similarity
	})
	if limit > len(scores) {
		limit = len(scores)
	}
	scores = scores[:limit]

	results := make([]domain.ScoredFragment, 0, len(scores))
	err := s.db.View(func(tx *bbolt.Tx) error {
		frags := tx.Bucket(bucketFragments)
		for _, sc := range scores {
			data := frags.Get([]byte(sc.fragID))
			if data == nil {
				continue
			}
			var rec fragmentRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			results = append(results, domain.ScoredFragment{
				Fragment: domain.Fragment{
					ID:        sc.fragID,
					DocID:     rec.DocID,
					Content:   rec.Content,
					Embedding: rec.Embedding,
					Metadata:  rec.Metadata,
				},
				Similarity: sc.similarity,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load search results: %v", domain.ErrStore, err)
	}

	return results, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// categoryOf resolves an empty category to the default label.
func categoryOf(category string) string {
	if category == "" {
		return domain.DefaultCategory
	}
	return category
}

// cosineSimilarity computes the cosine similarity between two vectors.
// If either vector is all-zero the similarity is 0; the ranking never sees
// a NaN.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// itob encodes a document id as a big-endian key so bucket order follows
// insertion order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
