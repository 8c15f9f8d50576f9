package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"banking-kb-go/internal/model"
)

// memoryStore 是全内存后端，用于测试与本地开发，不做持久化。
type memoryStore struct {
	mu         sync.RWMutex
	chunks     map[string]model.DocumentChunk // chunk_id -> chunk
	dimensions int
}

// NewMemoryStore 创建内存后端。
func NewMemoryStore(dimensions int) Store {
	return &memoryStore{
		chunks:     make(map[string]model.DocumentChunk),
		dimensions: dimensions,
	}
}

func (s *memoryStore) Backend() string { return BackendMemory }

func (s *memoryStore) Initialize(_ context.Context) error { return nil }

func (s *memoryStore) AddDocuments(_ context.Context, chunks []model.DocumentChunk) error {
	if err := validateChunks(chunks, s.dimensions); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.ChunkID] = c
	}
	return nil
}

func (s *memoryStore) Search(_ context.Context, queryEmbedding []float32, topK int, filters map[string]any) ([]model.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk model.DocumentChunk
		score float64
	}
	candidates := make([]scored, 0, len(s.chunks))
	for _, c := range s.chunks {
		if !matchesFilters(c.Metadata, filters) {
			continue
		}
		candidates = append(candidates, scored{chunk: c, score: cosineSimilarity(queryEmbedding, c.Embedding)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		// 分数相同按 chunk id 保证结果稳定
		return candidates[i].chunk.ChunkID < candidates[j].chunk.ChunkID
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]model.SearchResult, 0, len(candidates))
	for _, cand := range candidates {
		results = append(results, model.SearchResult{
			DocumentID:     cand.chunk.DocumentID,
			DocumentTitle:  chunkTitle(cand.chunk),
			Content:        cand.chunk.Content,
			PageNumber:     cand.chunk.PageNumber,
			RelevanceScore: cand.score,
			Metadata:       cand.chunk.Metadata,
		})
	}
	return results, nil
}

func (s *memoryStore) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *memoryStore) HealthCheck(_ context.Context) bool { return true }

func matchesFilters(metadata map[string]any, filters map[string]any) bool {
	for field, want := range filters {
		got, ok := metadata[field]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
