package model

import "errors"

// 哨兵错误：handler 层用 errors.Is 将其映射为 HTTP 状态码，
// service 层用 fmt.Errorf("%w: ...") 附加上下文。
var (
	// ErrValidation 表示入参形状或大小非法，操作未被尝试。
	ErrValidation = errors.New("validation error")
	// ErrPermissionDenied 表示角色缺少授权。对未知文档 ID 的非管理员访问同样返回它，避免存在性泄露。
	ErrPermissionDenied = errors.New("access denied")
	// ErrNotFound 表示文档不存在。
	ErrNotFound = errors.New("document not found")
	// ErrExtractionFailed 表示主备两个提取器均失败，摄取转入 failed。
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrEmbeddingFailed 表示某个子批次向量化失败，整个批次作废。
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrStoreFailed 表示向量库写入或删除失败。
	ErrStoreFailed = errors.New("vector store operation failed")
	// ErrGenerationFailed 表示生成模型调用失败，本轮问答整体失败。
	ErrGenerationFailed = errors.New("generation failed")
)
