package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"banking-kb-go/internal/config"
	"banking-kb-go/internal/model"
	"banking-kb-go/internal/repository"
	"banking-kb-go/pkg/extractor"
	"banking-kb-go/pkg/llm"
	"banking-kb-go/pkg/tasks"
	"banking-kb-go/pkg/vectorstore"

	"github.com/gorilla/websocket"
)

// 测试用的公共假件。

type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) SaveDocument(_ context.Context, documentID string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[documentID] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlobStore) GetDocument(_ context.Context, documentID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[documentID]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", documentID)
	}
	return data, nil
}

func (f *fakeBlobStore) RemoveDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, documentID)
	return nil
}

func (f *fakeBlobStore) has(documentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[documentID]
	return ok
}

type fakeExtractor struct {
	pages []extractor.Page
	err   error
}

func (f *fakeExtractor) ExtractPages(_ context.Context, _ []byte, _ string) ([]extractor.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// fakeEmbedder 为每段文本生成确定性的三维向量。
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return embedText(text), nil
}

func (f *fakeEmbedder) CreateEmbeddingBatch(_ context.Context, texts []string, _ int) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

func embedText(text string) []float32 {
	var sum float32
	for _, r := range text {
		sum += float32(r % 13)
	}
	return []float32{sum, float32(len(text)), 1}
}

type fakeEnqueuer struct {
	tasks []tasks.ReindexTask
	err   error
}

func (f *fakeEnqueuer) ProduceReindexTask(_ context.Context, task tasks.ReindexTask) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

// fakeLLM 返回固定回答并记录收到的提示词；流式路径把回答按字写出。
type fakeLLM struct {
	answer       string
	err          error
	systemPrompt string
	userMessage  string
}

func (f *fakeLLM) Complete(_ context.Context, systemPrompt, userMessage string) (string, error) {
	f.systemPrompt = systemPrompt
	f.userMessage = userMessage
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) StreamChatMessages(_ context.Context, _ []llm.Message, writer llm.MessageWriter) error {
	if f.err != nil {
		return f.err
	}
	for _, r := range f.answer {
		if err := writer.WriteMessage(websocket.TextMessage, []byte(string(r))); err != nil {
			return err
		}
	}
	return nil
}

// failingStore 让检索路径报错，用于验证降级行为。
type failingStore struct {
	vectorstore.Store
}

func (failingStore) Search(_ context.Context, _ []float32, _ int, _ map[string]any) ([]model.SearchResult, error) {
	return nil, errors.New("store unavailable")
}

// frameRecorder 收集流式写出的消息。
type frameRecorder struct {
	frames []string
}

func (r *frameRecorder) WriteMessage(_ int, data []byte) error {
	r.frames = append(r.frames, string(data))
	return nil
}

type serviceFixture struct {
	docs       DocumentService
	docRepo    repository.DocumentRepository
	verRepo    repository.VersionRepository
	grantRepo  repository.AccessGrantRepository
	store      vectorstore.Store
	blobs      *fakeBlobStore
	extractor  *fakeExtractor
	embedder   *fakeEmbedder
	enqueuer   *fakeEnqueuer
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		docRepo:   repository.NewMemoryDocumentRepository(),
		verRepo:   repository.NewMemoryVersionRepository(),
		grantRepo: repository.NewMemoryAccessGrantRepository(),
		store:     vectorstore.NewMemoryStore(3),
		blobs:     newFakeBlobStore(),
		extractor: &fakeExtractor{pages: []extractor.Page{{Number: 1, Text: "النظام المصرفي في المملكة يخضع لرقابة البنك المركزي"}}},
		embedder:  &fakeEmbedder{},
		enqueuer:  &fakeEnqueuer{},
	}
	f.docs = NewDocumentService(
		f.docRepo, f.verRepo, f.grantRepo,
		f.store, f.blobs, f.extractor, f.embedder, f.enqueuer,
		config.DocumentConfig{ChunkSize: 1000, ChunkOverlap: 200, MaxChunks: 500, MaxFileSizeMB: 50},
		config.EmbeddingConfig{BatchSize: 100, Dimensions: 3},
	)
	return f
}

func pdfUpload(title string) UploadRequest {
	return UploadRequest{
		FileName:  title + ".pdf",
		Data:      []byte("%PDF-1.4 fake"),
		Title:     title,
		UpdatedBy: "admin@bank",
	}
}
