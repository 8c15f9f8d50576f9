package handler

import (
	"net/http"

	"banking-kb-go/internal/model"
	"banking-kb-go/internal/service"
	"banking-kb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 是处理语义搜索请求的 Gin 处理函数。
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[SearchHandler] 搜索请求体无效: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}

	resp, err := h.searchService.Search(c.Request.Context(), req)
	if err != nil {
		log.Errorf("[SearchHandler] 搜索服务返回错误: %v", err)
		respondError(c, err)
		return
	}

	log.Infof("[SearchHandler] 搜索成功, 返回 %d 条结果", resp.TotalResults)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": resp})
}
