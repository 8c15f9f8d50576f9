package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repeatWords 生成 n 个定长词组成的文本。
func repeatWords(word string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = word
	}
	return strings.Join(words, " ")
}

func TestSplitEmptyPage(t *testing.T) {
	c := New(1000, 200)
	assert.Nil(t, c.Split("", 1))
	assert.Nil(t, c.Split("   \n\t  ", 1))
}

func TestSplitSingleShortPage(t *testing.T) {
	c := New(1000, 200)
	pieces := c.Split("short page of text", 3)
	require.Len(t, pieces, 1)
	assert.Equal(t, "short page of text", pieces[0].Content)
	assert.Equal(t, 3, pieces[0].PageNumber)
}

func TestSplitRespectsChunkSize(t *testing.T) {
	c := New(100, 20)
	text := repeatWords("lorem", 200)
	pieces := c.Split(text, 1)
	require.NotEmpty(t, pieces)
	for _, p := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Content), 100)
	}
}

func TestSplitOverlapCarriesTrailingWords(t *testing.T) {
	c := New(100, 20)
	pieces := c.Split(repeatWords("word", 60), 1)
	require.Greater(t, len(pieces), 1)

	for i := 1; i < len(pieces); i++ {
		prev := strings.Fields(pieces[i-1].Content)
		cur := strings.Fields(pieces[i].Content)
		// 重叠预算 20：四字词加空格每个占 5，应继承 4 个词
		require.GreaterOrEqual(t, len(cur), 4)
		assert.Equal(t, prev[len(prev)-4:], cur[:4])
	}
}

func TestSplitReconstructsWordSequence(t *testing.T) {
	c := New(100, 20)
	original := strings.Fields(repeatWords("data", 123))
	pieces := c.Split(strings.Join(original, " "), 1)
	require.NotEmpty(t, pieces)

	// 去掉每个后续切块的重叠前缀后，拼接应还原原始词序
	rebuilt := strings.Fields(pieces[0].Content)
	for i := 1; i < len(pieces); i++ {
		words := strings.Fields(pieces[i].Content)
		rebuilt = append(rebuilt, words[4:]...)
	}
	assert.Equal(t, original, rebuilt)
}

func TestSplitOversizedWordEmittedWhole(t *testing.T) {
	c := New(10, 0)
	long := strings.Repeat("x", 50)
	pieces := c.Split("a "+long+" b", 1)
	require.Len(t, pieces, 3)
	assert.Equal(t, long, pieces[1].Content)
}

func TestSplitNoOverlapWhenZero(t *testing.T) {
	c := New(50, 0)
	original := strings.Fields(repeatWords("go", 100))
	pieces := c.Split(repeatWords("go", 100), 1)
	require.Greater(t, len(pieces), 1)

	var rebuilt []string
	for _, p := range pieces {
		rebuilt = append(rebuilt, strings.Fields(p.Content)...)
	}
	assert.Equal(t, original, rebuilt)
}

// TestSplitTwoPageScenario 覆盖典型摄取场景：1500 字符与 800 字符的两页，
// 切块大小 1000、重叠 200，预期第一页给出 2 个切块、第二页 1 个。
func TestSplitTwoPageScenario(t *testing.T) {
	c := New(1000, 200)

	page1 := repeatWords("lorem", 250) // ≈1500 字符
	page2 := repeatWords("ipsum", 133) // ≈800 字符

	pieces1 := c.Split(page1, 1)
	require.Len(t, pieces1, 2)
	pieces2 := c.Split(page2, 2)
	require.Len(t, pieces2, 1)

	// 第一页的切分点接近 1000 字符，重叠接近 200 字符
	first := utf8.RuneCountInString(pieces1[0].Content)
	assert.InDelta(t, 1000, first, 10)

	// 六字词（含空格）预算 200 → 继承 33 个词，约 198 字符
	w1 := strings.Fields(pieces1[0].Content)
	w2 := strings.Fields(pieces1[1].Content)
	require.Greater(t, len(w2), 33)
	assert.Equal(t, w1[len(w1)-33:], w2[:33])
	overlapLen := 0
	for _, w := range w2[:33] {
		overlapLen += utf8.RuneCountInString(w) + 1
	}
	assert.InDelta(t, 200, overlapLen, 10)

	// 全局 chunk_index 由调用方分配：0,1 属于第一页，2 属于第二页
	assert.Equal(t, 3, len(pieces1)+len(pieces2))
}
