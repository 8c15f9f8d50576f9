package handler

import (
	"io"
	"net/http"
	"time"

	"banking-kb-go/internal/middleware"
	"banking-kb-go/internal/model"
	"banking-kb-go/internal/service"
	"banking-kb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// Upload 处理文档上传请求（multipart，仅管理员）。
func (h *DocumentHandler) Upload(c *gin.Context) {
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取角色信息"})
		return
	}

	req, err := h.parseUploadForm(c)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.docService.Upload(c.Request.Context(), role, *req)
	if err != nil {
		log.Errorf("[DocumentHandler] 文档上传失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "文档摄取成功",
		"data":    resp,
	})
}

// List 处理获取可见文档列表的请求。
func (h *DocumentHandler) List(c *gin.Context) {
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取角色信息"})
		return
	}

	docs, err := h.docService.List(c.Request.Context(), role)
	if err != nil {
		log.Error("List documents failed", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取文档列表成功",
		"data": model.DocumentListDTO{
			Documents: docs,
			Total:     int64(len(docs)),
			Page:      1,
			PageSize:  len(docs),
		},
	})
}

// Get 处理获取单个文档元数据的请求。
func (h *DocumentHandler) Get(c *gin.Context) {
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取角色信息"})
		return
	}

	doc, err := h.docService.Get(c.Request.Context(), role, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": doc})
}

// GetVersions 处理获取文档版本历史的请求。
func (h *DocumentHandler) GetVersions(c *gin.Context) {
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取角色信息"})
		return
	}

	versions, err := h.docService.GetVersions(c.Request.Context(), role, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": versions})
}

// Update 处理文档更新请求（multipart，仅管理员），文档 ID 保持不变。
func (h *DocumentHandler) Update(c *gin.Context) {
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取角色信息"})
		return
	}

	req, err := h.parseUploadForm(c)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.docService.Update(c.Request.Context(), role, c.Param("id"), *req)
	if err != nil {
		log.Errorf("[DocumentHandler] 文档更新失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "文档更新成功", "data": resp})
}

// Delete 处理文档删除请求（仅管理员）。
func (h *DocumentHandler) Delete(c *gin.Context) {
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取角色信息"})
		return
	}

	if err := h.docService.Delete(c.Request.Context(), role, c.Param("id")); err != nil {
		log.Errorf("[DocumentHandler] 文档删除失败: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "文档已删除"})
}

// Reprocess 处理重建索引请求（仅管理员）。
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取角色信息"})
		return
	}

	var body struct {
		RequestedBy string `json:"requestedBy"`
		Reason      string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	if err := h.docService.Reprocess(c.Request.Context(), role, c.Param("id"), body.RequestedBy, body.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "重建索引任务已入队"})
}

// parseUploadForm 从 multipart 表单解析文件与元数据。
func (h *DocumentHandler) parseUploadForm(c *gin.Context) (*service.UploadRequest, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, model.ErrValidation
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, model.ErrValidation
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, model.ErrValidation
	}

	req := &service.UploadRequest{
		FileName:          fileHeader.Filename,
		Data:              data,
		Title:             c.PostForm("title"),
		Author:            c.PostForm("author"),
		Source:            c.PostForm("source"),
		DocumentType:      c.PostForm("documentType"),
		Jurisdiction:      c.PostForm("jurisdiction"),
		Language:          c.PostForm("language"),
		Version:           c.PostForm("version"),
		UpdatedBy:         c.PostForm("updatedBy"),
		ChangeDescription: c.PostForm("changeDescription"),
	}
	if raw := c.PostForm("effectiveDate"); raw != "" {
		if parsed, perr := time.Parse("2006-01-02", raw); perr == nil {
			req.EffectiveDate = &parsed
		}
	}
	return req, nil
}
