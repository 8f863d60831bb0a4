// Package memory implements vector.Store in process memory.
//
// It backs development mode and tests, and doubles as the reference for
// the storage contract: the same mandatory-tenant rules apply as on the
// Qdrant manager, just without a server.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/bkaradeniz/ragline/internal/vector"
)

type point struct {
	chunk vector.Chunk
	id    string
}

// Store holds one map of points per tenant.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]point
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]point)}
}

func (s *Store) EnsureCollection(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[tenantID]; !ok {
		s.collections[tenantID] = make(map[string]point)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, tenantID string, chunks []vector.Chunk) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[tenantID]
	if !ok {
		coll = make(map[string]point)
		s.collections[tenantID] = coll
	}
	for _, c := range chunks {
		id := vector.ChunkID(tenantID, c.DocumentID, c.Index)
		c.TenantID = tenantID
		coll[id] = point{chunk: c, id: id}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, tenantID string, params vector.SearchParams) ([]vector.RetrievalResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.collections[tenantID]

	results := make([]vector.RetrievalResult, 0, len(coll))
	for _, pt := range coll {
		if params.DocumentID != "" && pt.chunk.DocumentID != params.DocumentID {
			continue
		}
		score := clamp(cosine(params.Query, pt.chunk.Vector))
		if score < params.ScoreThreshold {
			continue
		}
		results = append(results, vector.RetrievalResult{
			ChunkID:    pt.id,
			DocumentID: pt.chunk.DocumentID,
			Score:      score,
			Content:    pt.chunk.Content,
			Metadata: map[string]string{
				"chunk_index": fmt.Sprintf("%d", pt.chunk.Index),
				"page":        fmt.Sprintf("%d", pt.chunk.Page),
				"method":      pt.chunk.Method,
			},
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) DeleteDocument(ctx context.Context, tenantID, documentID string) (bool, error) {
	if tenantID == "" {
		return false, fmt.Errorf("tenant id required")
	}
	if documentID == "" {
		return false, fmt.Errorf("document id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[tenantID]
	found := false
	for id, pt := range coll {
		if pt.chunk.DocumentID == documentID {
			delete(coll, id)
			found = true
		}
	}
	return found, nil
}

func (s *Store) DeleteCollection(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, tenantID)
	return nil
}

func (s *Store) Stats(ctx context.Context, tenantID string) (*vector.CollectionStats, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &vector.CollectionStats{}
	docs := make(map[string]struct{})
	for _, pt := range s.collections[tenantID] {
		stats.ChunkCount++
		docs[pt.chunk.DocumentID] = struct{}{}
	}
	for doc := range docs {
		stats.DocumentIDs = append(stats.DocumentIDs, doc)
	}
	stats.DocCount = len(docs)
	sort.Strings(stats.DocumentIDs)
	return stats, nil
}

func (s *Store) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func clamp(s float32) float32 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

var _ vector.Store = (*Store)(nil)
