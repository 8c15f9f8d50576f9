package model

import "time"

// SearchRequestDTO 定义了语义搜索的请求体。
type SearchRequestDTO struct {
	Query    string         `json:"query" binding:"required"`
	Language string         `json:"language"`
	TopK     int            `json:"topK"`
	Filters  map[string]any `json:"filters"`
}

// SearchResponseDTO 定义了返回给前端的搜索结果结构。
type SearchResponseDTO struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"totalResults"`
	Language     string         `json:"language"`
}

// ChatRequestDTO 定义了 RAG 问答的请求体。
type ChatRequestDTO struct {
	Message        string `json:"message" binding:"required"`
	Language       string `json:"language"`
	ConversationID string `json:"conversationId"`
	UseRAG         *bool  `json:"useRag"`
	TopK           int    `json:"topK"`
}

// ChatResponseDTO 定义了问答回复及其来源引用。
type ChatResponseDTO struct {
	Message        string           `json:"message"`
	Sources        []SourceCitation `json:"sources"`
	ConversationID string           `json:"conversationId"`
	Language       string           `json:"language"`
}

// UploadResponseDTO 定义了文档上传的响应。
type UploadResponseDTO struct {
	DocumentID string         `json:"documentId"`
	Status     DocumentStatus `json:"status"`
	Message    string         `json:"message"`
}

// DocumentListDTO 定义了分页的文档列表响应。
type DocumentListDTO struct {
	Documents []Document `json:"documents"`
	Total     int64      `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"pageSize"`
}

// ChatMessage 代表写入 Redis 审计日志的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
