package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"banking-kb-go/internal/config"
	"banking-kb-go/internal/model"
	"banking-kb-go/internal/repository"
	"banking-kb-go/pkg/embedding"
	"banking-kb-go/pkg/llm"
	"banking-kb-go/pkg/log"
	"banking-kb-go/pkg/vectorstore"

	"github.com/google/uuid"
)

// 问答消息长度上限（按 rune 计）。
const maxChatMessageRunes = 2000

// 系统提示词按回复语言二选一。上下文块中的来源编号与引用列表一一对应。
const (
	systemPromptAr = `أنت مساعد معرفي متخصص في الأنظمة واللوائح المصرفية في المملكة العربية السعودية.
أجب عن سؤال المستخدم اعتماداً على المصادر المرفقة فقط، واذكر رقم المصدر عند الاستشهاد به.
إذا لم تكن المصادر كافية للإجابة فقل ذلك صراحةً ولا تخترع معلومات.`

	systemPromptEn = `You are a knowledge assistant specialized in Saudi Arabian banking laws and regulations.
Answer the user's question based only on the attached sources, and cite the source number when referencing one.
If the sources are insufficient, say so explicitly and do not fabricate information.`
)

// ChatService 接口定义了基于检索增强的问答操作。
type ChatService interface {
	Chat(ctx context.Context, req model.ChatRequestDTO) (*model.ChatResponseDTO, error)
	// StreamChat 把回答流式写入 writer，返回值携带引用列表与完整回答供审计与收尾帧使用。
	StreamChat(ctx context.Context, req model.ChatRequestDTO, writer llm.MessageWriter) (*model.ChatResponseDTO, error)
}

type chatService struct {
	embeddingClient embedding.Client
	store           vectorstore.Store
	llmClient       llm.Client
	convRepo        repository.ConversationRepository
	retrievalCfg    config.RetrievalConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	embeddingClient embedding.Client,
	store vectorstore.Store,
	llmClient llm.Client,
	convRepo repository.ConversationRepository,
	retrievalCfg config.RetrievalConfig,
) ChatService {
	return &chatService{
		embeddingClient: embeddingClient,
		store:           store,
		llmClient:       llmClient,
		convRepo:        convRepo,
		retrievalCfg:    retrievalCfg,
	}
}

// Chat 执行一轮检索增强问答并返回完整回答与来源引用。
func (s *chatService) Chat(ctx context.Context, req model.ChatRequestDTO) (*model.ChatResponseDTO, error) {
	turn, err := s.prepareTurn(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.llmClient.Complete(ctx, turn.systemPrompt, turn.userMessage)
	if err != nil {
		// 生成失败整轮失败，不返回编造的兜底回答
		return nil, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}

	s.audit(ctx, turn.conversationID, req.Message, answer)
	return &model.ChatResponseDTO{
		Message:        answer,
		Sources:        turn.citations,
		ConversationID: turn.conversationID,
		Language:       turn.language,
	}, nil
}

// StreamChat 与 Chat 语义一致，但回答分块写入 writer。
func (s *chatService) StreamChat(ctx context.Context, req model.ChatRequestDTO, writer llm.MessageWriter) (*model.ChatResponseDTO, error) {
	turn, err := s.prepareTurn(ctx, req)
	if err != nil {
		return nil, err
	}

	collector := &collectingWriter{inner: writer}
	messages := []llm.Message{
		{Role: "system", Content: turn.systemPrompt},
		{Role: "user", Content: turn.userMessage},
	}
	if err := s.llmClient.StreamChatMessages(ctx, messages, collector); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}

	answer := collector.sb.String()
	s.audit(ctx, turn.conversationID, req.Message, answer)
	return &model.ChatResponseDTO{
		Message:        answer,
		Sources:        turn.citations,
		ConversationID: turn.conversationID,
		Language:       turn.language,
	}, nil
}

// chatTurn 是一轮问答在调用生成模型前准备好的全部材料。
type chatTurn struct {
	conversationID string
	language       string
	systemPrompt   string
	userMessage    string
	citations      []model.SourceCitation
}

func (s *chatService) prepareTurn(ctx context.Context, req model.ChatRequestDTO) (*chatTurn, error) {
	msgLen := utf8.RuneCountInString(req.Message)
	if msgLen == 0 || msgLen > maxChatMessageRunes {
		return nil, fmt.Errorf("%w: message length must be 1-%d characters", model.ErrValidation, maxChatMessageRunes)
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.retrievalCfg.ChatTopK
	}
	if topK < 1 || topK > 10 {
		return nil, fmt.Errorf("%w: topK must be between 1 and 10", model.ErrValidation)
	}

	language := normalizeLanguage(req.Language)
	useRAG := req.UseRAG == nil || *req.UseRAG

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	var citations []model.SourceCitation
	var contextBlock string
	if useRAG {
		citations, contextBlock = s.retrieve(ctx, req.Message, topK, language)
	}

	// 检索上下文附着在系统提示词后，用户消息保持原样
	systemPrompt := systemPromptAr
	if language == "en" {
		systemPrompt = systemPromptEn
	}
	if contextBlock != "" {
		systemPrompt = systemPrompt + "\n\n" + contextBlock
	}
	userMessage := req.Message

	return &chatTurn{
		conversationID: conversationID,
		language:       language,
		systemPrompt:   systemPrompt,
		userMessage:    userMessage,
		citations:      citations,
	}, nil
}

// retrieve 检索相关分块并构造编号上下文块。检索路径失败时降级为无依据回答。
func (s *chatService) retrieve(ctx context.Context, message string, topK int, language string) ([]model.SourceCitation, string) {
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, message)
	if err != nil {
		log.Errorf("[ChatService] 查询向量化失败, 降级为无依据回答: %v", err)
		return nil, ""
	}
	results, err := s.store.Search(ctx, queryVector, topK, nil)
	if err != nil {
		log.Errorf("[ChatService] 向量检索失败, 降级为无依据回答: %v", err)
		return nil, ""
	}
	if len(results) == 0 {
		return nil, ""
	}

	sourceTag := "[مصدر %d]"
	pageWord := "صفحة"
	if language == "en" {
		sourceTag = "[Source %d]"
		pageWord = "page"
	}

	citations := make([]model.SourceCitation, 0, len(results))
	var sb strings.Builder
	for i, r := range results {
		citations = append(citations, model.NewCitation(r))
		sb.WriteString(fmt.Sprintf(sourceTag, i+1))
		sb.WriteString(fmt.Sprintf(" %s (%s %d):\n", r.DocumentTitle, pageWord, r.PageNumber))
		sb.WriteString(r.Content)
		sb.WriteString("\n\n")
	}
	log.Infof("[ChatService] 检索到 %d 条相关分块", len(results))
	return citations, strings.TrimRight(sb.String(), "\n")
}

// audit 把本轮问答追加到对话审计日志。日志仅供审计，写入失败不影响本轮结果。
func (s *chatService) audit(ctx context.Context, conversationID, question, answer string) {
	now := time.Now()
	err := s.convRepo.AppendMessages(ctx, conversationID, []model.ChatMessage{
		{Role: "user", Content: question, Timestamp: now},
		{Role: "assistant", Content: answer, Timestamp: now},
	})
	if err != nil {
		log.Errorf("[ChatService] 写入对话审计日志失败: %v", err)
	}
}

// collectingWriter 把流式分块转发给内层 writer 的同时收集完整回答。
type collectingWriter struct {
	inner llm.MessageWriter
	sb    strings.Builder
}

func (w *collectingWriter) WriteMessage(messageType int, data []byte) error {
	w.sb.Write(data)
	return w.inner.WriteMessage(messageType, data)
}
