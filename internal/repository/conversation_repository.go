package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"banking-kb-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// conversationTTL 是审计日志的保留时长。
const conversationTTL = 30 * 24 * time.Hour

// ConversationRepository 定义了对话审计日志的操作接口。
// 日志仅追加，用于审计查询，不会被回注到后续生成的提示词中。
type ConversationRepository interface {
	AppendMessages(ctx context.Context, conversationID string, messages []model.ChatMessage) error
	History(ctx context.Context, conversationID string) ([]model.ChatMessage, error)
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s", conversationID)
}

// AppendMessages 把消息追加到对话日志尾部并刷新过期时间。
func (r *redisConversationRepository) AppendMessages(ctx context.Context, conversationID string, messages []model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	key := conversationKey(conversationID)
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal chat message: %w", err)
		}
		values = append(values, data)
	}
	if err := r.redisClient.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("failed to append conversation log: %w", err)
	}
	if err := r.redisClient.Expire(ctx, key, conversationTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh conversation ttl: %w", err)
	}
	return nil
}

// History 返回对话日志的全部消息，对话不存在时返回空。
func (r *redisConversationRepository) History(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	entries, err := r.redisClient.LRange(ctx, conversationKey(conversationID), 0, -1).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation log: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(entries))
	for _, e := range entries {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(e), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}
