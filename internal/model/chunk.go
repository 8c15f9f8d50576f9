package model

import "fmt"

// DocumentChunk 是嵌入与检索的基本单位：文档切块及其向量与元数据快照。
// ChunkID 形如 "{document_id}_{chunk_index}"，chunk_index 在文档内从 0 连续递增。
type DocumentChunk struct {
	ChunkID    string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	Content    string         `json:"content"`
	PageNumber int            `json:"page_number"`
	ChunkIndex int            `json:"chunk_index"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewChunkID 生成切块的唯一标识。
func NewChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}

// SearchResult 是单条检索结果，按相关性降序返回，不做持久化。
type SearchResult struct {
	DocumentID     string         `json:"documentId"`
	DocumentTitle  string         `json:"documentTitle"`
	Content        string         `json:"content"`
	PageNumber     int            `json:"pageNumber"`
	RelevanceScore float64        `json:"relevanceScore"`
	Metadata       map[string]any `json:"metadata"`
}

// SourceCitation 是问答回复中附带的来源引用，摘录被截断到固定长度。
type SourceCitation struct {
	DocumentID     string  `json:"documentId"`
	DocumentTitle  string  `json:"documentTitle"`
	PageNumber     int     `json:"pageNumber"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// ExcerptRuneLimit 是引用摘录的最大长度（按 rune 计）。
const ExcerptRuneLimit = 200

// NewCitation 从检索结果构造引用。
func NewCitation(r SearchResult) SourceCitation {
	excerpt := r.Content
	if runes := []rune(excerpt); len(runes) > ExcerptRuneLimit {
		excerpt = string(runes[:ExcerptRuneLimit])
	}
	return SourceCitation{
		DocumentID:     r.DocumentID,
		DocumentTitle:  r.DocumentTitle,
		PageNumber:     r.PageNumber,
		Excerpt:        excerpt,
		RelevanceScore: r.RelevanceScore,
	}
}
