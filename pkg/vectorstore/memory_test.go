package vectorstore

import (
	"context"
	"testing"

	"banking-kb-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkChunk(docID string, idx int, embedding []float32, metadata map[string]any) model.DocumentChunk {
	return model.DocumentChunk{
		ChunkID:    model.NewChunkID(docID, idx),
		DocumentID: docID,
		Content:    "content of " + model.NewChunkID(docID, idx),
		PageNumber: 1,
		ChunkIndex: idx,
		Embedding:  embedding,
		Metadata:   metadata,
	}
}

func TestMemoryStoreAddThenSearchFindsMembers(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	require.NoError(t, s.AddDocuments(ctx, []model.DocumentChunk{
		mkChunk("doc-a", 0, []float32{1, 0, 0}, map[string]any{"document_title": "Doc A"}),
		mkChunk("doc-a", 1, []float32{0.9, 0.1, 0}, map[string]any{"document_title": "Doc A"}),
		mkChunk("doc-b", 0, []float32{0, 1, 0}, map[string]any{"document_title": "Doc B"}),
	}))

	results, err := s.Search(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	// 最相似的在最前
	assert.Equal(t, "doc-a", results[0].DocumentID)
	assert.Equal(t, "Doc A", results[0].DocumentTitle)
	assert.InDelta(t, 1.0, results[0].RelevanceScore, 1e-9)
	assert.GreaterOrEqual(t, results[0].RelevanceScore, results[1].RelevanceScore)
	assert.GreaterOrEqual(t, results[1].RelevanceScore, results[2].RelevanceScore)
}

func TestMemoryStoreTopKTruncation(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, s.AddDocuments(ctx, []model.DocumentChunk{
			mkChunk("doc", i, []float32{float32(i + 1), 1}, nil),
		}))
	}

	results, err := s.Search(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestMemoryStoreDeleteRemovesOnlyThatDocument(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.AddDocuments(ctx, []model.DocumentChunk{
		mkChunk("doc-a", 0, []float32{1, 0}, nil),
		mkChunk("doc-a", 1, []float32{0.8, 0.2}, nil),
		mkChunk("doc-b", 0, []float32{0, 1}, nil),
	}))

	require.NoError(t, s.DeleteDocument(ctx, "doc-a"))

	results, err := s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-b", results[0].DocumentID)

	// 删除不存在的文档不报错
	require.NoError(t, s.DeleteDocument(ctx, "doc-missing"))
}

func TestMemoryStoreMetadataFilters(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.AddDocuments(ctx, []model.DocumentChunk{
		mkChunk("doc-ar", 0, []float32{1, 0}, map[string]any{"language": "ar", "jurisdiction": "SAMA"}),
		mkChunk("doc-en", 0, []float32{1, 0}, map[string]any{"language": "en", "jurisdiction": "SAMA"}),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 10, map[string]any{"language": "ar"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-ar", results[0].DocumentID)

	// 多条件取交集
	results, err = s.Search(ctx, []float32{1, 0}, 10, map[string]any{"language": "en", "jurisdiction": "SAMA"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-en", results[0].DocumentID)

	// 没有任何匹配
	results, err = s.Search(ctx, []float32{1, 0}, 10, map[string]any{"language": "fr"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreUpsertOverwritesSameChunkID(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	first := mkChunk("doc", 0, []float32{1, 0}, nil)
	require.NoError(t, s.AddDocuments(ctx, []model.DocumentChunk{first}))

	updated := first
	updated.Content = "updated content"
	require.NoError(t, s.AddDocuments(ctx, []model.DocumentChunk{updated}))

	results, err := s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "updated content", results[0].Content)
}

func TestMemoryStoreEmptyStoreReturnsEmpty(t *testing.T) {
	s := NewMemoryStore(2)
	results, err := s.Search(context.Background(), []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreRejectsDimensionMismatch(t *testing.T) {
	s := NewMemoryStore(3)
	err := s.AddDocuments(context.Background(), []model.DocumentChunk{
		mkChunk("doc", 0, []float32{1, 0}, nil),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestFactoryRejectsUnknownBackend(t *testing.T) {
	_, err := New(configWithBackend("faiss"), 3)
	require.Error(t, err)
}

func TestFactoryBuildsMemoryBackend(t *testing.T) {
	s, err := New(configWithBackend(BackendMemory), 3)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, s.Backend())
}
