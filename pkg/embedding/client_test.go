package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"banking-kb-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer 按输入文本内容返回可预测的向量，用于验证顺序。
func fakeEmbeddingServer(t *testing.T, failOnBatch int) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if failOnBatch > 0 && calls == failOnBatch {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for _, text := range req.Input {
			// 向量首维编码文本序号，便于断言顺序
			var n float32
			fmt.Sscanf(text, "text-%f", &n)
			resp.Data = append(resp.Data, item{Embedding: []float32{n, 1.0}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	return srv, &calls
}

func newTestClient(baseURL string) Client {
	return NewClient(config.EmbeddingConfig{
		BaseURL: baseURL,
		Model:   "test-embedding",
	})
}

func TestCreateEmbeddingBatchPreservesOrder(t *testing.T) {
	srv, calls := fakeEmbeddingServer(t, 0)
	defer srv.Close()
	client := newTestClient(srv.URL)

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	vectors, err := client.CreateEmbeddingBatch(context.Background(), texts, 10)
	require.NoError(t, err)
	require.Len(t, vectors, 25)
	for i, v := range vectors {
		assert.Equal(t, float32(i), v[0], "vectors[%d] 应对应 texts[%d]", i, i)
	}
	// 25 条输入、批大小 10 → 3 个顺序子批次
	assert.Equal(t, 3, *calls)
}

func TestCreateEmbeddingBatchAbortsOnSubBatchFailure(t *testing.T) {
	srv, calls := fakeEmbeddingServer(t, 2)
	defer srv.Close()
	client := newTestClient(srv.URL)

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	vectors, err := client.CreateEmbeddingBatch(context.Background(), texts, 10)
	require.Error(t, err)
	// 不返回部分结果，且第二个子批次失败后不再发起第三个
	assert.Nil(t, vectors)
	assert.Equal(t, 2, *calls)
}

func TestCreateEmbeddingSingle(t *testing.T) {
	srv, _ := fakeEmbeddingServer(t, 0)
	defer srv.Close()
	client := newTestClient(srv.URL)

	v, err := client.CreateEmbedding(context.Background(), "text-7")
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 1.0}, v)
}

func TestCreateEmbeddingBatchEmptyInput(t *testing.T) {
	client := newTestClient("http://unused")
	vectors, err := client.CreateEmbeddingBatch(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
