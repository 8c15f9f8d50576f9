package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	pages []Page
	err   error
	calls int
}

func (s *stubExtractor) ExtractPages(_ context.Context, _ []byte, _ string) ([]Page, error) {
	s.calls++
	return s.pages, s.err
}

func TestChainUsesPrimaryWhenItSucceeds(t *testing.T) {
	primary := &stubExtractor{pages: []Page{{Number: 1, Text: "نص الصفحة"}}}
	fallback := &stubExtractor{pages: []Page{{Number: 1, Text: "other"}}}

	pages, err := NewChain(primary, fallback).ExtractPages(context.Background(), []byte("pdf"), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "نص الصفحة", pages[0].Text)
	assert.Equal(t, 0, fallback.calls)
}

func TestChainFallsBackOnPrimaryFailure(t *testing.T) {
	primary := &stubExtractor{err: errors.New("parse error")}
	fallback := &stubExtractor{pages: []Page{{Number: 1, Text: "recovered"}}}

	pages, err := NewChain(primary, fallback).ExtractPages(context.Background(), []byte("pdf"), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "recovered", pages[0].Text)
	assert.Equal(t, 1, primary.calls)
}

func TestChainReturnsLastErrorWhenAllFail(t *testing.T) {
	primary := &stubExtractor{err: errors.New("parse error")}
	fallback := &stubExtractor{err: ErrNoText}

	_, err := NewChain(primary, fallback).ExtractPages(context.Background(), []byte("pdf"), "a.pdf")
	require.ErrorIs(t, err, ErrNoText)
}

func TestSplitTikaPages(t *testing.T) {
	xhtml := `<html><body>
<div class="page"><p>First page text.</p></div>
<div class="page"><p></p></div>
<div class="page"><p>Third <b>page</b> text.</p></div>
</body></html>`

	pages := splitTikaPages(xhtml)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "First page text.")
	// 空白页被跳过，但页码保持原始位置
	assert.Equal(t, 3, pages[1].Number)
	assert.Contains(t, pages[1].Text, "Third")
	assert.NotContains(t, pages[1].Text, "<b>")
}

func TestSplitTikaPagesNoPageDivs(t *testing.T) {
	assert.Nil(t, splitTikaPages("<html><body><p>plain</p></body></html>"))
}
