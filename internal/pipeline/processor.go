// Package pipeline 实现后台重建索引任务的处理器。
package pipeline

import (
	"context"

	"banking-kb-go/internal/service"
	"banking-kb-go/pkg/log"
	"banking-kb-go/pkg/tasks"
)

// Processor 消费 Kafka 中的重建索引任务并交给文档服务执行。
// 任务是幂等的：重复投递只会再次覆盖同一文档的向量。
type Processor struct {
	documents service.DocumentService
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(documents service.DocumentService) *Processor {
	return &Processor{documents: documents}
}

// Process 实现 kafka.TaskProcessor。
func (p *Processor) Process(ctx context.Context, task tasks.ReindexTask) error {
	log.Infof("[Pipeline] 开始重建索引: DocumentID=%s, RequestedBy=%s, Reason=%s",
		task.DocumentID, task.RequestedBy, task.Reason)
	return p.documents.Reindex(ctx, task.DocumentID)
}
