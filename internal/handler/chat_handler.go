package handler

import (
	"encoding/json"
	"net/http"

	"banking-kb-go/internal/model"
	"banking-kb-go/internal/service"
	"banking-kb-go/pkg/log"
	"banking-kb-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理问答请求，包含普通 HTTP 与 WebSocket 流式两种形态。
type ChatHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
	}
}

// Chat 处理一轮完整的检索增强问答。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), req)
	if err != nil {
		log.Errorf("[ChatHandler] 问答失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": resp})
}

// wsFinalFrame 是流式回答结束后发送的收尾帧。
type wsFinalFrame struct {
	Type           string                 `json:"type"`
	ConversationID string                 `json:"conversationId"`
	Sources        []model.SourceCitation `json:"sources"`
}

// HandleWS 处理 WebSocket 连接：每条消息是一轮问答，回答流式写回，随后发送引用收尾帧。
// WebSocket 握手无法携带 Authorization 头，token 放在 query 参数中。
func (h *ChatHandler) HandleWS(c *gin.Context) {
	tokenString := c.Query("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil || !model.ValidRole(claims.Role) {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立, 角色: %s", claims.Role)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var req model.ChatRequestDTO
		if err := json.Unmarshal(message, &req); err != nil {
			_ = conn.WriteJSON(gin.H{"type": "error", "message": "无效的请求体"})
			continue
		}

		resp, err := h.chatService.StreamChat(c.Request.Context(), req, conn)
		if err != nil {
			log.Errorf("[ChatHandler] 流式问答失败: %v", err)
			_ = conn.WriteJSON(gin.H{"type": "error", "message": err.Error()})
			continue
		}

		if err := conn.WriteJSON(wsFinalFrame{
			Type:           "sources",
			ConversationID: resp.ConversationID,
			Sources:        resp.Sources,
		}); err != nil {
			log.Warnf("发送收尾帧失败: %v", err)
			break
		}
	}
}
