package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"banking-kb-go/internal/config"
	"banking-kb-go/internal/model"
	"banking-kb-go/pkg/embedding"
	"banking-kb-go/pkg/log"
	"banking-kb-go/pkg/vectorstore"
)

// 查询文本长度上限（按 rune 计）。
const maxQueryRunes = 1000

// SearchService 接口定义了语义搜索操作。
type SearchService interface {
	Search(ctx context.Context, req model.SearchRequestDTO) (*model.SearchResponseDTO, error)
}

type searchService struct {
	embeddingClient embedding.Client
	store           vectorstore.Store
	retrievalCfg    config.RetrievalConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(embeddingClient embedding.Client, store vectorstore.Store, retrievalCfg config.RetrievalConfig) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		store:           store,
		retrievalCfg:    retrievalCfg,
	}
}

// Search 向量化查询并检索 topK 个最相关分块。向量库查询失败时降级为空结果。
func (s *searchService) Search(ctx context.Context, req model.SearchRequestDTO) (*model.SearchResponseDTO, error) {
	queryLen := utf8.RuneCountInString(req.Query)
	if queryLen == 0 || queryLen > maxQueryRunes {
		return nil, fmt.Errorf("%w: query length must be 1-%d characters", model.ErrValidation, maxQueryRunes)
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.retrievalCfg.SearchTopK
	}
	if topK < 1 || topK > 20 {
		return nil, fmt.Errorf("%w: topK must be between 1 and 20", model.ErrValidation)
	}

	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEmbeddingFailed, err)
	}

	results, err := s.store.Search(ctx, queryVector, topK, req.Filters)
	if err != nil {
		// 查询路径上向量库故障不升级为请求失败，降级为空结果
		log.Errorf("[SearchService] 向量检索失败, 降级为空结果: %v", err)
		results = []model.SearchResult{}
	}

	log.Infof("[SearchService] 检索完成, query 长度 %d, 命中 %d 条", queryLen, len(results))
	return &model.SearchResponseDTO{
		Query:        req.Query,
		Results:      results,
		TotalResults: len(results),
		Language:     normalizeLanguage(req.Language),
	}, nil
}

// normalizeLanguage 把语言标签收敛到 ar/en 两值，默认阿拉伯语。
func normalizeLanguage(lang string) string {
	if lang == "en" {
		return "en"
	}
	return "ar"
}
