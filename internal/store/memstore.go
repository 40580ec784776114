package store

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"
)

// Compile-time assertion that MemStore satisfies both storage interfaces.
var (
	_ RecordStore  = (*MemStore)(nil)
	_ SessionIndex = (*MemStore)(nil)
)

// MemStore is a thread-safe in-memory [RecordStore] and [SessionIndex].
// It backs single-user deployments and tests; the similarity search is a
// linear scan, fine at the session counts one speaker produces.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	embeddings  map[string]indexedSession
}

type indexedSession struct {
	transcript string
	embedding  []float32
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		collections: make(map[string]map[string][]byte),
		embeddings:  make(map[string]indexedSession),
	}
}

// Put implements [RecordStore.Put].
func (s *MemStore) Put(_ context.Context, collection, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string][]byte)
		s.collections[collection] = coll
	}
	coll[key] = cp
	return nil
}

// Get implements [RecordStore.Get].
func (s *MemStore) Get(_ context.Context, collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

// GetAll implements [RecordStore.GetAll].
func (s *MemStore) GetAll(_ context.Context, collection string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.collections[collection]
	out := make(map[string][]byte, len(coll))
	for key, value := range coll {
		cp := make([]byte, len(value))
		copy(cp, value)
		out[key] = cp
	}
	return out, nil
}

// Delete implements [RecordStore.Delete].
func (s *MemStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[collection]
	if _, ok := coll[key]; !ok {
		return ErrNotFound
	}
	delete(coll, key)
	return nil
}

// IndexSession implements [SessionIndex.IndexSession].
func (s *MemStore) IndexSession(_ context.Context, sessionID, transcript string, embedding []float32) error {
	cp := make([]float32, len(embedding))
	copy(cp, embedding)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[sessionID] = indexedSession{transcript: transcript, embedding: cp}
	return nil
}

// SimilarSessions implements [SessionIndex.SimilarSessions] with an exact
// linear scan over cosine distance.
func (s *MemStore) SimilarSessions(_ context.Context, embedding []float32, topK int, excludeSessionID string) ([]SimilarSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SimilarSession, 0, len(s.embeddings))
	for id, entry := range s.embeddings {
		if id == excludeSessionID {
			continue
		}
		results = append(results, SimilarSession{
			SessionID:  id,
			Transcript: entry.transcript,
			Distance:   cosineDistance(embedding, entry.embedding),
		})
	}
	sortByDistance(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// RemoveSession implements [SessionIndex.RemoveSession].
func (s *MemStore) RemoveSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.embeddings, sessionID)
	return nil
}

func sortByDistance(results []SimilarSession) {
	slices.SortFunc(results, func(a, b SimilarSession) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
}

// cosineDistance returns 1 - cosine similarity. Mismatched or zero-length
// vectors yield the maximum distance so they sort last.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
