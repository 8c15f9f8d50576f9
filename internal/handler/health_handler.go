package handler

import (
	"net/http"

	"banking-kb-go/pkg/vectorstore"

	"github.com/gin-gonic/gin"
)

// HealthHandler 报告服务与向量库后端的可用性。
type HealthHandler struct {
	store vectorstore.Store
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。
func NewHealthHandler(store vectorstore.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health 返回整体健康状态，向量库不可用时报 503。
func (h *HealthHandler) Health(c *gin.Context) {
	storeHealthy := h.store.HealthCheck(c.Request.Context())
	status := http.StatusOK
	overall := "ok"
	if !storeHealthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":             overall,
		"vectorStoreBackend": h.store.Backend(),
		"vectorStoreHealthy": storeHealthy,
	})
}
