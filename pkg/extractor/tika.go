package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"banking-kb-go/internal/config"
)

// tikaExtractor 把 PDF 交给 Apache Tika 服务器，按 XHTML 分页标记切页。
// 对阿拉伯语等复杂排版文档的识别效果优于内嵌解析器，作为备用方案。
type tikaExtractor struct {
	serverURL string
	client    *http.Client
}

// NewTikaExtractor 创建一个基于 Tika 服务器的提取器。
func NewTikaExtractor(cfg config.TikaConfig) PageExtractor {
	return &tikaExtractor{
		serverURL: cfg.ServerURL,
		client:    http.DefaultClient,
	}
}

// Tika 的 XHTML 输出把每页包在 <div class="page"> 中。
var (
	pageDivRe = regexp.MustCompile(`<div[^>]*class="page"[^>]*>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
)

func (e *tikaExtractor) ExtractPages(ctx context.Context, data []byte, fileName string) ([]Page, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", e.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Accept", "text/html")
	req.Header.Set("Content-Type", detectMimeType(fileName))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 Tika 响应失败: %w", err)
	}

	pages := splitTikaPages(string(body))
	if len(pages) == 0 {
		return nil, ErrNoText
	}
	return pages, nil
}

// splitTikaPages 按分页 div 切分 XHTML 并剥掉标签，空白页被跳过但页码保留。
func splitTikaPages(xhtml string) []Page {
	segments := pageDivRe.Split(xhtml, -1)
	if len(segments) < 2 {
		return nil
	}

	var pages []Page
	for i, seg := range segments[1:] {
		if end := strings.LastIndex(seg, "</div>"); end >= 0 {
			seg = seg[:end]
		}
		text := strings.TrimSpace(tagRe.ReplaceAllString(seg, " "))
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return pages
}

// detectMimeType 根据文件扩展名判断 Content-Type
func detectMimeType(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return "application/octet-stream"
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		// fallback 默认
		return "application/octet-stream"
	}
	return mimeType
}
