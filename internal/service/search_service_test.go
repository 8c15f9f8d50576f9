package service

import (
	"context"
	"strings"
	"testing"

	"banking-kb-go/internal/config"
	"banking-kb-go/internal/model"
	"banking-kb-go/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchFixture(t *testing.T) (SearchService, vectorstore.Store) {
	t.Helper()
	store := vectorstore.NewMemoryStore(3)
	svc := NewSearchService(&fakeEmbedder{}, store, config.RetrievalConfig{SearchTopK: 5, ChatTopK: 3})
	return svc, store
}

func seedChunk(t *testing.T, store vectorstore.Store, docID, content string, metadata map[string]any) {
	t.Helper()
	require.NoError(t, store.AddDocuments(context.Background(), []model.DocumentChunk{{
		ChunkID:    model.NewChunkID(docID, 0),
		DocumentID: docID,
		Content:    content,
		PageNumber: 1,
		Embedding:  embedText(content),
		Metadata:   metadata,
	}}))
}

func TestSearchValidation(t *testing.T) {
	svc, _ := newSearchFixture(t)
	ctx := context.Background()

	_, err := svc.Search(ctx, model.SearchRequestDTO{Query: ""})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Search(ctx, model.SearchRequestDTO{Query: strings.Repeat("س", 1001)})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Search(ctx, model.SearchRequestDTO{Query: "متطلبات رأس المال", TopK: 21})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Search(ctx, model.SearchRequestDTO{Query: "متطلبات رأس المال", TopK: -1})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestSearchReturnsRankedResults(t *testing.T) {
	svc, store := newSearchFixture(t)
	seedChunk(t, store, "doc-1", "متطلبات كفاية رأس المال للبنوك", map[string]any{"jurisdiction": "SAMA"})
	seedChunk(t, store, "doc-2", "قواعد مكافحة غسل الأموال", map[string]any{"jurisdiction": "SAMA"})

	resp, err := svc.Search(context.Background(), model.SearchRequestDTO{Query: "متطلبات كفاية رأس المال للبنوك"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.TotalResults)
	assert.Equal(t, "doc-1", resp.Results[0].DocumentID)
	assert.Equal(t, "ar", resp.Language)
}

func TestSearchAppliesMetadataFilters(t *testing.T) {
	svc, store := newSearchFixture(t)
	seedChunk(t, store, "doc-sama", "تعليمات البنك المركزي", map[string]any{"jurisdiction": "SAMA"})
	seedChunk(t, store, "doc-cma", "لوائح هيئة السوق المالية", map[string]any{"jurisdiction": "CMA"})

	resp, err := svc.Search(context.Background(), model.SearchRequestDTO{
		Query:   "اللوائح",
		Filters: map[string]any{"jurisdiction": "CMA"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.TotalResults)
	assert.Equal(t, "doc-cma", resp.Results[0].DocumentID)
}

func TestSearchDegradesToEmptyOnStoreFailure(t *testing.T) {
	store := failingStore{vectorstore.NewMemoryStore(3)}
	svc := NewSearchService(&fakeEmbedder{}, store, config.RetrievalConfig{SearchTopK: 5})

	resp, err := svc.Search(context.Background(), model.SearchRequestDTO{Query: "متطلبات رأس المال"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.TotalResults)
	assert.Empty(t, resp.Results)
}
