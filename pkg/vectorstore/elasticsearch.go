package vectorstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"banking-kb-go/internal/config"
	"banking-kb-go/internal/model"
	"banking-kb-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// esBulkSize 是单次 bulk 请求携带的分块数量上限。
const esBulkSize = 100

// esDocument 是索引中一条分块记录的结构。
type esDocument struct {
	ChunkID       string         `json:"chunk_id"`
	DocumentID    string         `json:"document_id"`
	DocumentTitle string         `json:"document_title"`
	Content       string         `json:"content"`
	PageNumber    int            `json:"page_number"`
	ChunkIndex    int            `json:"chunk_index"`
	Embedding     []float32      `json:"embedding"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type elasticsearchStore struct {
	client     *elasticsearch.Client
	indexName  string
	dimensions int
}

// NewElasticsearchStore 创建基于 Elasticsearch 远端索引的后端。
func NewElasticsearchStore(cfg config.ElasticsearchConfig, dimensions int) (Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &elasticsearchStore{
		client:     client,
		indexName:  cfg.IndexName,
		dimensions: dimensions,
	}, nil
}

func (s *elasticsearchStore) Backend() string { return BackendElasticsearch }

// Initialize 检查索引是否存在，如果不存在则按向量维度创建它。
func (s *elasticsearchStore) Initialize(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.indexName}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("[VectorStore] 检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("[VectorStore] 索引 '%s' 已存在", s.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// 余弦相似度的稠密向量，元数据字段用 keyword 支持精确过滤
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"document_id": { "type": "keyword" },
				"document_title": { "type": "keyword" },
				"content": { "type": "text" },
				"page_number": { "type": "integer" },
				"chunk_index": { "type": "integer" },
				"embedding": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"metadata": {
					"properties": {
						"document_type": { "type": "keyword" },
						"jurisdiction": { "type": "keyword" },
						"language": { "type": "keyword" },
						"version": { "type": "keyword" },
						"author": { "type": "keyword" },
						"source": { "type": "keyword" },
						"document_title": { "type": "keyword" }
					}
				}
			}
		}
	}`, s.dimensions)

	res, err = s.client.Indices.Create(
		s.indexName,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("[VectorStore] 创建索引 '%s' 失败: %v", s.indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[VectorStore] 创建索引 '%s' 时 Elasticsearch 返回错误: %s", s.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("[VectorStore] 索引 '%s' 创建成功, 向量维度 %d", s.indexName, s.dimensions)
	return nil
}

// AddDocuments 以 chunk_id 作为文档 ID 分批 bulk 写入，重复 ID 幂等覆盖。
func (s *elasticsearchStore) AddDocuments(ctx context.Context, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks, s.dimensions); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += esBulkSize {
		end := start + esBulkSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.bulkIndex(ctx, chunks[start:end]); err != nil {
			return fmt.Errorf("bulk index batch %d failed: %w", start/esBulkSize+1, err)
		}
	}
	log.Infof("[VectorStore] 已写入 %d 个分块到索引 '%s'", len(chunks), s.indexName)
	return nil
}

func (s *elasticsearchStore) bulkIndex(ctx context.Context, chunks []model.DocumentChunk) error {
	var buf bytes.Buffer
	for _, c := range chunks {
		meta := fmt.Sprintf(`{"index":{"_id":%q}}`, c.ChunkID)
		buf.WriteString(meta)
		buf.WriteByte('\n')

		doc := esDocument{
			ChunkID:       c.ChunkID,
			DocumentID:    c.DocumentID,
			DocumentTitle: chunkTitle(c),
			Content:       c.Content,
			PageNumber:    c.PageNumber,
			ChunkIndex:    c.ChunkIndex,
			Embedding:     c.Embedding,
			Metadata:      c.Metadata,
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Index:   s.indexName,
		Body:    &buf,
		Refresh: "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorStore] bulk 写入出错: %s", string(body))
		return errors.New("failed to bulk index chunks")
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		return errors.New("bulk response reported item errors")
	}
	return nil
}

// Search 执行 kNN 检索并把元数据过滤条件下推到索引。
func (s *elasticsearchStore) Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]any) ([]model.SearchResult, error) {
	knn := map[string]any{
		"field":          "embedding",
		"query_vector":   queryEmbedding,
		"k":              topK,
		"num_candidates": topK * 10,
	}
	if len(filters) > 0 {
		terms := make([]map[string]any, 0, len(filters))
		for field, value := range filters {
			terms = append(terms, map[string]any{
				"term": map[string]any{"metadata." + field: value},
			})
		}
		knn["filter"] = map[string]any{
			"bool": map[string]any{"must": terms},
		}
	}

	esQuery := map[string]any{
		"knn":  knn,
		"size": topK,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorStore] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(body))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source esDocument `json:"_source"`
				Score  float64    `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.SearchResult{
			DocumentID:     hit.Source.DocumentID,
			DocumentTitle:  hit.Source.DocumentTitle,
			Content:        hit.Source.Content,
			PageNumber:     hit.Source.PageNumber,
			RelevanceScore: hit.Score,
			Metadata:       hit.Source.Metadata,
		})
	}
	return results, nil
}

// DeleteDocument 按 document_id 批量删除，文档不存在时静默成功。
func (s *elasticsearchStore) DeleteDocument(ctx context.Context, documentID string) error {
	query := fmt.Sprintf(`{"query":{"term":{"document_id":%q}}}`, documentID)
	res, err := s.client.DeleteByQuery(
		[]string{s.indexName},
		strings.NewReader(query),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("delete_by_query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorStore] 删除文档 '%s' 的分块出错: %s", documentID, string(body))
		return errors.New("failed to delete document chunks")
	}
	return nil
}

func (s *elasticsearchStore) HealthCheck(ctx context.Context) bool {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}
