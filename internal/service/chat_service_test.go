package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"banking-kb-go/internal/config"
	"banking-kb-go/internal/model"
	"banking-kb-go/internal/repository"
	"banking-kb-go/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	chat  ChatService
	store vectorstore.Store
	llm   *fakeLLM
	conv  repository.ConversationRepository
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		store: vectorstore.NewMemoryStore(3),
		llm:   &fakeLLM{answer: "وفقاً للمصدر 1، تحدد المتطلبات من قبل البنك المركزي."},
		conv:  repository.NewMemoryConversationRepository(),
	}
	f.chat = NewChatService(&fakeEmbedder{}, f.store, f.llm, f.conv, config.RetrievalConfig{SearchTopK: 5, ChatTopK: 3})
	return f
}

func TestChatValidation(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	_, err := f.chat.Chat(ctx, model.ChatRequestDTO{Message: ""})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = f.chat.Chat(ctx, model.ChatRequestDTO{Message: strings.Repeat("س", 2001)})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = f.chat.Chat(ctx, model.ChatRequestDTO{Message: "سؤال", TopK: 11})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestChatWithoutRAGHasZeroCitations(t *testing.T) {
	f := newChatFixture()
	seedChunk(t, f.store, "doc-1", "متطلبات كفاية رأس المال", nil)

	useRAG := false
	resp, err := f.chat.Chat(context.Background(), model.ChatRequestDTO{
		Message: "ما هي متطلبات رأس المال؟",
		UseRAG:  &useRAG,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.NotEmpty(t, resp.Message)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestChatTopKOneYieldsExactlyOneCitation(t *testing.T) {
	f := newChatFixture()
	seedChunk(t, f.store, "doc-1", "متطلبات كفاية رأس المال للبنوك التجارية", map[string]any{"document_title": "لائحة كفاية رأس المال"})
	seedChunk(t, f.store, "doc-2", "قواعد حماية العملاء", nil)

	resp, err := f.chat.Chat(context.Background(), model.ChatRequestDTO{
		Message: "متطلبات كفاية رأس المال للبنوك التجارية",
		TopK:    1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "doc-1", resp.Sources[0].DocumentID)
	assert.Equal(t, "لائحة كفاية رأس المال", resp.Sources[0].DocumentTitle)
	assert.LessOrEqual(t, len([]rune(resp.Sources[0].Excerpt)), model.ExcerptRuneLimit)
}

func TestChatContextBlockAttachesToSystemPrompt(t *testing.T) {
	f := newChatFixture()
	seedChunk(t, f.store, "doc-1", "متطلبات كفاية رأس المال للبنوك التجارية", map[string]any{"document_title": "اللائحة"})

	question := "ما هي متطلبات رأس المال؟"
	_, err := f.chat.Chat(context.Background(), model.ChatRequestDTO{Message: question, TopK: 1})
	require.NoError(t, err)

	assert.Contains(t, f.llm.systemPrompt, "[مصدر 1]")
	assert.Contains(t, f.llm.systemPrompt, "متطلبات كفاية رأس المال للبنوك التجارية")
	assert.Equal(t, question, f.llm.userMessage)
}

func TestChatDegradesWhenStoreFails(t *testing.T) {
	f := newChatFixture()
	f.chat = NewChatService(&fakeEmbedder{}, failingStore{f.store}, f.llm, f.conv, config.RetrievalConfig{ChatTopK: 3})

	resp, err := f.chat.Chat(context.Background(), model.ChatRequestDTO{Message: "سؤال عن الأنظمة"})
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.NotEmpty(t, resp.Message)
}

func TestChatGenerationFailureSurfaces(t *testing.T) {
	f := newChatFixture()
	f.llm.err = errors.New("model overloaded")

	_, err := f.chat.Chat(context.Background(), model.ChatRequestDTO{Message: "سؤال"})
	require.ErrorIs(t, err, model.ErrGenerationFailed)
}

func TestChatAppendsAuditLog(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	resp, err := f.chat.Chat(ctx, model.ChatRequestDTO{Message: "سؤال أول", ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", resp.ConversationID)

	_, err = f.chat.Chat(ctx, model.ChatRequestDTO{Message: "سؤال ثانٍ", ConversationID: "conv-1"})
	require.NoError(t, err)

	history, err := f.conv.History(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "سؤال أول", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "user", history[2].Role)
}

func TestChatGeneratesConversationIDWhenAbsent(t *testing.T) {
	f := newChatFixture()

	first, err := f.chat.Chat(context.Background(), model.ChatRequestDTO{Message: "سؤال"})
	require.NoError(t, err)
	second, err := f.chat.Chat(context.Background(), model.ChatRequestDTO{Message: "سؤال"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ConversationID)
	assert.NotEqual(t, first.ConversationID, second.ConversationID)
}

func TestStreamChatStreamsAnswerAndReturnsCitations(t *testing.T) {
	f := newChatFixture()
	seedChunk(t, f.store, "doc-1", "متطلبات كفاية رأس المال", map[string]any{"document_title": "اللائحة"})

	recorder := &frameRecorder{}
	resp, err := f.chat.StreamChat(context.Background(), model.ChatRequestDTO{
		Message: "متطلبات كفاية رأس المال",
		TopK:    1,
	}, recorder)
	require.NoError(t, err)

	assert.Equal(t, f.llm.answer, strings.Join(recorder.frames, ""))
	assert.Equal(t, f.llm.answer, resp.Message)
	require.Len(t, resp.Sources, 1)
}
