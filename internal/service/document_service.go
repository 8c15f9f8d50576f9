// Package service 提供了文档知识库的业务逻辑。
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"banking-kb-go/internal/chunker"
	"banking-kb-go/internal/config"
	"banking-kb-go/internal/model"
	"banking-kb-go/internal/repository"
	"banking-kb-go/pkg/embedding"
	"banking-kb-go/pkg/extractor"
	"banking-kb-go/pkg/log"
	"banking-kb-go/pkg/storage"
	"banking-kb-go/pkg/tasks"
	"banking-kb-go/pkg/vectorstore"

	"github.com/google/uuid"
)

// UploadRequest 携带一次文档摄取（新建或更新）所需的文件与元数据。
type UploadRequest struct {
	FileName          string
	Data              []byte
	Title             string
	Author            string
	Source            string
	DocumentType      string
	Jurisdiction      string
	Language          string
	Version           string
	EffectiveDate     *time.Time
	UpdatedBy         string
	ChangeDescription string
}

// ReindexEnqueuer 把重建索引任务投递到后台队列。
type ReindexEnqueuer interface {
	ProduceReindexTask(ctx context.Context, task tasks.ReindexTask) error
}

// DocumentService 接口定义了文档生命周期操作。
// 读操作按访问授权过滤；写操作仅限 admin 角色。
type DocumentService interface {
	Upload(ctx context.Context, role model.Role, req UploadRequest) (*model.UploadResponseDTO, error)
	Get(ctx context.Context, role model.Role, documentID string) (*model.Document, error)
	List(ctx context.Context, role model.Role) ([]model.Document, error)
	Update(ctx context.Context, role model.Role, documentID string, req UploadRequest) (*model.UploadResponseDTO, error)
	Delete(ctx context.Context, role model.Role, documentID string) error
	GetVersions(ctx context.Context, role model.Role, documentID string) ([]model.DocumentVersion, error)
	Reprocess(ctx context.Context, role model.Role, documentID, requestedBy, reason string) error
	// Reindex 重跑已存储文档的摄取流水线，由后台消费者调用，不做角色检查。
	Reindex(ctx context.Context, documentID string) error
}

type documentService struct {
	docRepo     repository.DocumentRepository
	versionRepo repository.VersionRepository
	grantRepo   repository.AccessGrantRepository
	store       vectorstore.Store
	blobStore   storage.ObjectStorage
	extractor   extractor.PageExtractor
	embedder    embedding.Client
	enqueuer    ReindexEnqueuer
	docCfg      config.DocumentConfig
	embedCfg    config.EmbeddingConfig
	locks       keyedMutex
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	docRepo repository.DocumentRepository,
	versionRepo repository.VersionRepository,
	grantRepo repository.AccessGrantRepository,
	store vectorstore.Store,
	blobStore storage.ObjectStorage,
	pageExtractor extractor.PageExtractor,
	embedder embedding.Client,
	enqueuer ReindexEnqueuer,
	docCfg config.DocumentConfig,
	embedCfg config.EmbeddingConfig,
) DocumentService {
	return &documentService{
		docRepo:     docRepo,
		versionRepo: versionRepo,
		grantRepo:   grantRepo,
		store:       store,
		blobStore:   blobStore,
		extractor:   pageExtractor,
		embedder:    embedder,
		enqueuer:    enqueuer,
		docCfg:      docCfg,
		embedCfg:    embedCfg,
	}
}

// keyedMutex 按文档 ID 串行化同一文档上的变更操作。
// 条目带引用计数，最后一个持有者释放后即回收，映射不会随文档数增长。
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()
	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

// Upload 同步执行文档摄取流水线：存储原始文件 → 提取 → 切块 → 向量化 → 写入向量库。
func (s *documentService) Upload(ctx context.Context, role model.Role, req UploadRequest) (*model.UploadResponseDTO, error) {
	if role != model.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins may upload documents", model.ErrPermissionDenied)
	}
	if err := s.validateFile(req); err != nil {
		return nil, err
	}

	documentID := uuid.NewString()
	doc := s.buildDocument(documentID, req)
	if err := s.docRepo.Create(doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}
	log.Infof("[DocumentService] 文档 %s 已登记, 状态 %s, 文件 '%s' (%d 字节)", documentID, doc.Status, req.FileName, len(req.Data))

	if err := s.blobStore.SaveDocument(ctx, documentID, req.Data); err != nil {
		// 原始文件都没存上，直接回滚登记记录
		_ = s.docRepo.Delete(documentID)
		return nil, fmt.Errorf("failed to persist document blob: %w", err)
	}

	if err := s.docRepo.UpdateStatus(documentID, model.StatusProcessing); err != nil {
		return nil, fmt.Errorf("failed to mark document processing: %w", err)
	}

	chunkCount, err := s.ingest(ctx, doc, req.Data, req.FileName)
	if err != nil {
		// 摄取失败：记录 failed 供日志追溯后移除元数据登记。
		// 原始文件保留在对象存储中，便于事后取证与人工回收。
		log.Errorf("[DocumentService] 文档 %s 摄取失败: %v", documentID, err)
		_ = s.docRepo.UpdateStatus(documentID, model.StatusFailed)
		_ = s.docRepo.Delete(documentID)
		return nil, err
	}

	if err := s.docRepo.MarkCompleted(documentID, chunkCount, doc.PageCount); err != nil {
		return nil, fmt.Errorf("failed to mark document completed: %w", err)
	}
	if err := s.versionRepo.AppendVersion(&model.DocumentVersion{
		DocumentID:        documentID,
		Version:           doc.Version,
		UpdatedBy:         req.UpdatedBy,
		ChangeDescription: firstNonEmpty(req.ChangeDescription, "initial upload"),
	}); err != nil {
		return nil, fmt.Errorf("failed to record initial version: %w", err)
	}
	if err := s.grantRepo.Upsert(&model.AccessGrant{
		DocumentID: documentID,
		Roles:      model.JoinRoles(model.AllRoles()),
	}); err != nil {
		return nil, fmt.Errorf("failed to record access grant: %w", err)
	}

	log.Infof("[DocumentService] 文档 %s 摄取完成, 共 %d 个分块", documentID, chunkCount)
	return &model.UploadResponseDTO{
		DocumentID: documentID,
		Status:     model.StatusCompleted,
		Message:    fmt.Sprintf("document ingested with %d chunks", chunkCount),
	}, nil
}

// Get 返回单个文档元数据。非管理员对未授权或不存在的文档统一得到拒绝，不暴露存在性。
func (s *documentService) Get(ctx context.Context, role model.Role, documentID string) (*model.Document, error) {
	_ = ctx
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if role != model.RoleAdmin {
			return nil, fmt.Errorf("%w: document %s", model.ErrPermissionDenied, documentID)
		}
		return nil, err
	}
	if role != model.RoleAdmin {
		if !s.roleAllowed(documentID, role) {
			return nil, fmt.Errorf("%w: document %s", model.ErrPermissionDenied, documentID)
		}
	}
	return doc, nil
}

// List 返回当前角色可见的文档集合。
func (s *documentService) List(ctx context.Context, role model.Role) ([]model.Document, error) {
	_ = ctx
	docs, err := s.docRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if role == model.RoleAdmin {
		return docs, nil
	}
	visible := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if s.roleAllowed(d.ID, role) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}

// Update 以同一文档 ID 重跑摄取流水线，版本历史保持连续。
func (s *documentService) Update(ctx context.Context, role model.Role, documentID string, req UploadRequest) (*model.UploadResponseDTO, error) {
	if role != model.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins may update documents", model.ErrPermissionDenied)
	}
	if err := s.validateFile(req); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(documentID)
	defer unlock()

	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		return nil, err
	}

	// 先清掉旧向量，避免新旧内容混在检索结果里
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("%w: failed to delete stale vectors: %v", model.ErrStoreFailed, err)
	}
	if err := s.blobStore.SaveDocument(ctx, documentID, req.Data); err != nil {
		return nil, fmt.Errorf("failed to persist updated blob: %w", err)
	}

	updated := s.buildDocument(documentID, req)
	updated.CreatedAt = doc.CreatedAt
	updated.Status = model.StatusProcessing
	if err := s.docRepo.Update(updated); err != nil {
		return nil, fmt.Errorf("failed to update document record: %w", err)
	}

	chunkCount, err := s.ingest(ctx, updated, req.Data, req.FileName)
	if err != nil {
		log.Errorf("[DocumentService] 文档 %s 更新摄取失败: %v", documentID, err)
		_ = s.docRepo.UpdateStatus(documentID, model.StatusFailed)
		return nil, err
	}

	if err := s.docRepo.MarkCompleted(documentID, chunkCount, updated.PageCount); err != nil {
		return nil, fmt.Errorf("failed to mark document completed: %w", err)
	}
	if err := s.versionRepo.AppendVersion(&model.DocumentVersion{
		DocumentID:        documentID,
		Version:           updated.Version,
		UpdatedBy:         req.UpdatedBy,
		ChangeDescription: firstNonEmpty(req.ChangeDescription, "document updated"),
	}); err != nil {
		return nil, fmt.Errorf("failed to record new version: %w", err)
	}

	log.Infof("[DocumentService] 文档 %s 更新完成, 版本 %s, 共 %d 个分块", documentID, updated.Version, chunkCount)
	return &model.UploadResponseDTO{
		DocumentID: documentID,
		Status:     model.StatusCompleted,
		Message:    fmt.Sprintf("document updated to version %s with %d chunks", updated.Version, chunkCount),
	}, nil
}

// Delete 依次清理向量、原始文件与元数据。任何一步失败都中断并保留剩余资源。
func (s *documentService) Delete(ctx context.Context, role model.Role, documentID string) error {
	if role != model.RoleAdmin {
		return fmt.Errorf("%w: only admins may delete documents", model.ErrPermissionDenied)
	}

	unlock := s.locks.lock(documentID)
	defer unlock()

	if _, err := s.docRepo.FindByID(documentID); err != nil {
		return err
	}

	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("%w: failed to delete vectors for %s: %v", model.ErrStoreFailed, documentID, err)
	}
	if err := s.blobStore.RemoveDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to remove blob for %s: %w", documentID, err)
	}
	if err := s.versionRepo.DeleteByDocumentID(documentID); err != nil {
		return fmt.Errorf("failed to delete version history for %s: %w", documentID, err)
	}
	if err := s.grantRepo.DeleteByDocumentID(documentID); err != nil {
		return fmt.Errorf("failed to delete access grant for %s: %w", documentID, err)
	}
	if err := s.docRepo.Delete(documentID); err != nil {
		return fmt.Errorf("failed to delete document record for %s: %w", documentID, err)
	}

	log.Infof("[DocumentService] 文档 %s 已删除", documentID)
	return nil
}

// GetVersions 返回文档的版本历史，访问控制与 Get 相同。
func (s *documentService) GetVersions(ctx context.Context, role model.Role, documentID string) ([]model.DocumentVersion, error) {
	if _, err := s.Get(ctx, role, documentID); err != nil {
		return nil, err
	}
	versions, err := s.versionRepo.FindByDocumentID(documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load version history: %w", err)
	}
	return versions, nil
}

// Reprocess 把重建索引任务投递到后台队列，用于向量模型变更后的重嵌入。
func (s *documentService) Reprocess(ctx context.Context, role model.Role, documentID, requestedBy, reason string) error {
	if role != model.RoleAdmin {
		return fmt.Errorf("%w: only admins may reprocess documents", model.ErrPermissionDenied)
	}
	if _, err := s.docRepo.FindByID(documentID); err != nil {
		return err
	}
	if err := s.docRepo.UpdateStatus(documentID, model.StatusPending); err != nil {
		return fmt.Errorf("failed to mark document pending: %w", err)
	}
	if err := s.enqueuer.ProduceReindexTask(ctx, tasks.ReindexTask{
		DocumentID:  documentID,
		RequestedBy: requestedBy,
		Reason:      reason,
	}); err != nil {
		return fmt.Errorf("failed to enqueue reindex task: %w", err)
	}
	log.Infof("[DocumentService] 文档 %s 重建索引任务已入队", documentID)
	return nil
}

// Reindex 从对象存储取回原始文件并幂等地重建向量：先删旧向量再写入新向量。
func (s *documentService) Reindex(ctx context.Context, documentID string) error {
	unlock := s.locks.lock(documentID)
	defer unlock()

	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		return err
	}
	data, err := s.blobStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to fetch blob for %s: %w", documentID, err)
	}
	if err := s.docRepo.UpdateStatus(documentID, model.StatusProcessing); err != nil {
		return fmt.Errorf("failed to mark document processing: %w", err)
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		_ = s.docRepo.UpdateStatus(documentID, model.StatusFailed)
		return fmt.Errorf("%w: failed to delete stale vectors: %v", model.ErrStoreFailed, err)
	}

	chunkCount, err := s.ingest(ctx, doc, data, filepath.Base(doc.StoragePath))
	if err != nil {
		log.Errorf("[DocumentService] 文档 %s 重建索引失败: %v", documentID, err)
		_ = s.docRepo.UpdateStatus(documentID, model.StatusFailed)
		return err
	}
	if err := s.docRepo.MarkCompleted(documentID, chunkCount, doc.PageCount); err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}
	log.Infof("[DocumentService] 文档 %s 重建索引完成, 共 %d 个分块", documentID, chunkCount)
	return nil
}

// ingest 执行提取 → 切块 → 向量化 → 写入向量库，返回分块数量。
func (s *documentService) ingest(ctx context.Context, doc *model.Document, data []byte, fileName string) (int, error) {
	extractCtx := ctx
	if s.docCfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, time.Duration(s.docCfg.ExtractTimeout)*time.Second)
		defer cancel()
	}
	pages, err := s.extractor.ExtractPages(extractCtx, data, fileName)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrExtractionFailed, err)
	}
	doc.PageCount = lastPageNumber(pages)

	chunks := s.chunkPages(doc, pages)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no chunks produced", model.ErrExtractionFailed)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := s.embedder.CreateEmbeddingBatch(ctx, texts, s.embedCfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrEmbeddingFailed, err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := s.store.AddDocuments(ctx, chunks); err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrStoreFailed, err)
	}
	return len(chunks), nil
}

// chunkPages 逐页切块并分配全文档连续递增的 chunk_index，超过上限截断并告警。
func (s *documentService) chunkPages(doc *model.Document, pages []extractor.Page) []model.DocumentChunk {
	ck := chunker.New(s.docCfg.ChunkSize, s.docCfg.ChunkOverlap)
	metadata := map[string]any{
		"document_title": doc.Title,
		"document_type":  doc.DocumentType,
		"jurisdiction":   doc.Jurisdiction,
		"language":       doc.Language,
		"version":        doc.Version,
		"author":         doc.Author,
		"source":         doc.Source,
	}

	var chunks []model.DocumentChunk
	index := 0
	for _, page := range pages {
		for _, piece := range ck.Split(page.Text, page.Number) {
			if s.docCfg.MaxChunks > 0 && index >= s.docCfg.MaxChunks {
				log.Warnf("[DocumentService] 文档 %s 分块数达到上限 %d, 其余内容被截断", doc.ID, s.docCfg.MaxChunks)
				return chunks
			}
			chunks = append(chunks, model.DocumentChunk{
				ChunkID:    model.NewChunkID(doc.ID, index),
				DocumentID: doc.ID,
				Content:    piece.Content,
				PageNumber: piece.PageNumber,
				ChunkIndex: index,
				Metadata:   metadata,
			})
			index++
		}
	}
	return chunks
}

func (s *documentService) validateFile(req UploadRequest) error {
	if strings.ToLower(filepath.Ext(req.FileName)) != ".pdf" {
		return fmt.Errorf("%w: only PDF files are accepted, got %q", model.ErrValidation, req.FileName)
	}
	if len(req.Data) == 0 {
		return fmt.Errorf("%w: empty file", model.ErrValidation)
	}
	maxBytes := int64(s.docCfg.MaxFileSizeMB) * 1024 * 1024
	if maxBytes > 0 && int64(len(req.Data)) > maxBytes {
		return fmt.Errorf("%w: file exceeds %d MB limit", model.ErrValidation, s.docCfg.MaxFileSizeMB)
	}
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	return nil
}

func (s *documentService) buildDocument(documentID string, req UploadRequest) *model.Document {
	return &model.Document{
		ID:            documentID,
		Title:         req.Title,
		Author:        req.Author,
		Source:        req.Source,
		DocumentType:  firstNonEmpty(req.DocumentType, "regulation"),
		Jurisdiction:  firstNonEmpty(req.Jurisdiction, "SAMA"),
		EffectiveDate: req.EffectiveDate,
		Version:       firstNonEmpty(req.Version, "1.0"),
		Language:      firstNonEmpty(req.Language, "ar"),
		FileSizeBytes: int64(len(req.Data)),
		Status:        model.StatusPending,
		StoragePath:   storage.ObjectName(documentID),
	}
}

func (s *documentService) roleAllowed(documentID string, role model.Role) bool {
	grant, err := s.grantRepo.FindByDocumentID(documentID)
	if err != nil {
		return false
	}
	return grant.Allows(role)
}

func lastPageNumber(pages []extractor.Page) int {
	if len(pages) == 0 {
		return 0
	}
	return pages[len(pages)-1].Number
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
