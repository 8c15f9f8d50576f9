// Package extractor 提供 PDF 文本的按页提取能力。
package extractor

import (
	"context"
	"errors"
)

// Page 是一页提取出的纯文本。Number 从 1 开始。
type Page struct {
	Number int
	Text   string
}

// PageExtractor 从原始 PDF 字节中提取按页文本。
type PageExtractor interface {
	ExtractPages(ctx context.Context, data []byte, fileName string) ([]Page, error)
}

// ErrNoText 表示文档打开成功但没有任何可提取的文本内容。
var ErrNoText = errors.New("extractor: document contains no extractable text")

// chain 依次尝试多个提取器，前一个失败才换下一个。
type chain struct {
	extractors []PageExtractor
}

// NewChain 组合主提取器与备用提取器。
func NewChain(extractors ...PageExtractor) PageExtractor {
	return &chain{extractors: extractors}
}

func (c *chain) ExtractPages(ctx context.Context, data []byte, fileName string) ([]Page, error) {
	var lastErr error
	for _, e := range c.extractors {
		pages, err := e.ExtractPages(ctx, data, fileName)
		if err == nil {
			return pages, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = ErrNoText
	}
	return nil, lastErr
}
