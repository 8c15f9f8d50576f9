// Package vectorstore 提供可插拔的向量库后端。
// 后端在进程启动时由配置确定一次，运行期间不可切换。
package vectorstore

import (
	"context"
	"fmt"

	"banking-kb-go/internal/config"
	"banking-kb-go/internal/model"
)

// Store 是向量库后端的统一契约。
// AddDocuments 对同一 chunk_id 的写入是幂等覆盖；DeleteDocument 删除不存在的文档不报错。
type Store interface {
	// Initialize 建立连接并确保索引/表结构存在，幂等。
	Initialize(ctx context.Context) error
	// AddDocuments 批量写入分块及其向量。
	AddDocuments(ctx context.Context, chunks []model.DocumentChunk) error
	// Search 以余弦相似度检索 topK 个最近分块，filters 按元数据字段精确匹配。
	Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]any) ([]model.SearchResult, error)
	// DeleteDocument 删除某文档的全部分块。
	DeleteDocument(ctx context.Context, documentID string) error
	// HealthCheck 报告后端当前是否可用。
	HealthCheck(ctx context.Context) bool
	// Backend 返回后端标识，用于日志与健康端点。
	Backend() string
}

// 支持的后端标识
const (
	BackendElasticsearch = "elasticsearch"
	BackendPgvector      = "pgvector"
	BackendMemory        = "memory"
)

// New 根据配置构造对应后端。dimensions 是向量维度，写入时校验。
func New(cfg config.VectorStoreConfig, dimensions int) (Store, error) {
	switch cfg.Backend {
	case BackendElasticsearch:
		return NewElasticsearchStore(cfg.Elasticsearch, dimensions)
	case BackendPgvector:
		return NewPgvectorStore(cfg.Postgres, dimensions), nil
	case BackendMemory:
		return NewMemoryStore(dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %q", cfg.Backend)
	}
}

// validateChunks 校验写入分块的向量维度一致且与配置一致。
func validateChunks(chunks []model.DocumentChunk, dimensions int) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ChunkID)
		}
		if dimensions > 0 && len(c.Embedding) != dimensions {
			return fmt.Errorf("chunk %s embedding dimension %d, expected %d", c.ChunkID, len(c.Embedding), dimensions)
		}
	}
	return nil
}

// chunkTitle 从分块元数据里取文档标题，写入后端供检索结果直接返回。
func chunkTitle(c model.DocumentChunk) string {
	if c.Metadata == nil {
		return ""
	}
	if t, ok := c.Metadata["document_title"].(string); ok {
		return t
	}
	return ""
}
