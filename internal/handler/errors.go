// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"banking-kb-go/internal/model"

	"github.com/gin-gonic/gin"
)

// respondError 将 service 层的哨兵错误映射为 HTTP 状态码。
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrExtractionFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrEmbeddingFailed),
		errors.Is(err, model.ErrStoreFailed),
		errors.Is(err, model.ErrGenerationFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
