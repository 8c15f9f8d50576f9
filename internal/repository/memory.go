package repository

import (
	"context"
	"sort"
	"sync"

	"banking-kb-go/internal/model"
)

// 内存实现供测试与本地开发使用，不做持久化。

type memoryDocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

// NewMemoryDocumentRepository 创建内存版 DocumentRepository。
func NewMemoryDocumentRepository() DocumentRepository {
	return &memoryDocumentRepository{docs: make(map[string]model.Document)}
}

func (r *memoryDocumentRepository) Create(doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memoryDocumentRepository) FindByID(id string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	copied := doc
	return &copied, nil
}

func (r *memoryDocumentRepository) FindAll() ([]model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]model.Document, 0, len(r.docs))
	for _, d := range r.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (r *memoryDocumentRepository) Update(doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return model.ErrNotFound
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memoryDocumentRepository) UpdateStatus(id string, status model.DocumentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return model.ErrNotFound
	}
	doc.Status = status
	r.docs[id] = doc
	return nil
}

func (r *memoryDocumentRepository) MarkCompleted(id string, chunkCount, pageCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return model.ErrNotFound
	}
	doc.Status = model.StatusCompleted
	doc.ChunkCount = chunkCount
	doc.PageCount = pageCount
	r.docs[id] = doc
	return nil
}

func (r *memoryDocumentRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

type memoryVersionRepository struct {
	mu       sync.RWMutex
	nextID   uint
	versions []model.DocumentVersion
}

// NewMemoryVersionRepository 创建内存版 VersionRepository。
func NewMemoryVersionRepository() VersionRepository {
	return &memoryVersionRepository{nextID: 1}
}

func (r *memoryVersionRepository) AppendVersion(version *model.DocumentVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.versions {
		if r.versions[i].DocumentID == version.DocumentID {
			r.versions[i].IsCurrent = false
		}
	}
	version.ID = r.nextID
	r.nextID++
	version.IsCurrent = true
	r.versions = append(r.versions, *version)
	return nil
}

func (r *memoryVersionRepository) FindByDocumentID(documentID string) ([]model.DocumentVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []model.DocumentVersion
	for _, v := range r.versions {
		if v.DocumentID == documentID {
			result = append(result, v)
		}
	}
	// 最新在前
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (r *memoryVersionRepository) DeleteByDocumentID(documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.versions[:0]
	for _, v := range r.versions {
		if v.DocumentID != documentID {
			kept = append(kept, v)
		}
	}
	r.versions = kept
	return nil
}

type memoryAccessGrantRepository struct {
	mu     sync.RWMutex
	grants map[string]model.AccessGrant
}

// NewMemoryAccessGrantRepository 创建内存版 AccessGrantRepository。
func NewMemoryAccessGrantRepository() AccessGrantRepository {
	return &memoryAccessGrantRepository{grants: make(map[string]model.AccessGrant)}
}

func (r *memoryAccessGrantRepository) Upsert(grant *model.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grant.DocumentID] = *grant
	return nil
}

func (r *memoryAccessGrantRepository) FindByDocumentID(documentID string) (*model.AccessGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	grant, ok := r.grants[documentID]
	if !ok {
		return nil, model.ErrNotFound
	}
	copied := grant
	return &copied, nil
}

func (r *memoryAccessGrantRepository) DeleteByDocumentID(documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, documentID)
	return nil
}

type memoryConversationRepository struct {
	mu   sync.RWMutex
	logs map[string][]model.ChatMessage
}

// NewMemoryConversationRepository 创建内存版 ConversationRepository。
func NewMemoryConversationRepository() ConversationRepository {
	return &memoryConversationRepository{logs: make(map[string][]model.ChatMessage)}
}

func (r *memoryConversationRepository) AppendMessages(_ context.Context, conversationID string, messages []model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[conversationID] = append(r.logs[conversationID], messages...)
	return nil
}

func (r *memoryConversationRepository) History(_ context.Context, conversationID string) ([]model.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.ChatMessage(nil), r.logs[conversationID]...), nil
}
