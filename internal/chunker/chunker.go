// Package chunker 实现了文本切块：按词边界产生带重叠的有界切块。
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Piece 是单页文本切分出的一个切块。全局的 chunk_index 由调用方统一分配。
type Piece struct {
	Content    string
	PageNumber int
}

// Chunker 按配置的最大长度与重叠长度切分页面文本。
// 切分只发生在空白分隔的词边界上，绝不在词内部断开；
// 重叠部分取上一切块末尾累计长度不超过 overlap 的完整词序列。
type Chunker struct {
	chunkSize int // 单个切块的最大长度（按 rune 计）
	overlap   int // 新切块从上一切块末尾继承的最大长度（按 rune 计）
}

// New 创建一个 Chunker。chunkSize 必须为正；overlap 为负按 0 处理，
// overlap 不小于 chunkSize 时按 0 处理，否则切块无法推进。
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split 将一页文本切分为带重叠的切块序列，输出顺序严格保持输入词序。
// 空页或纯空白页返回空切片。单个超长词不会被截断，而是独立成块。
func (c *Chunker) Split(text string, pageNumber int) []Piece {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var pieces []Piece
	var current []string
	currentLen := 0

	for _, word := range words {
		wordLen := utf8.RuneCountInString(word) + 1 // +1 预留词间空格

		if currentLen+wordLen > c.chunkSize && len(current) > 0 {
			// 关闭当前切块
			pieces = append(pieces, Piece{
				Content:    strings.Join(current, " "),
				PageNumber: pageNumber,
			})

			// 新切块以上一切块末尾的重叠词起始
			overlap := c.overlapWords(current)
			current = append(overlap, word)
			currentLen = 0
			for _, w := range current {
				currentLen += utf8.RuneCountInString(w) + 1
			}
			continue
		}

		current = append(current, word)
		currentLen += wordLen
	}

	// 末尾的不完整切块总是被输出
	if len(current) > 0 {
		pieces = append(pieces, Piece{
			Content:    strings.Join(current, " "),
			PageNumber: pageNumber,
		})
	}

	return pieces
}

// overlapWords 取 chunk 末尾累计长度不超过 c.overlap 的最长完整词序列。
// 返回新分配的切片，避免与上一切块共享底层数组。
func (c *Chunker) overlapWords(chunk []string) []string {
	if c.overlap <= 0 {
		return nil
	}
	total := 0
	start := len(chunk)
	for i := len(chunk) - 1; i >= 0; i-- {
		wordLen := utf8.RuneCountInString(chunk[i]) + 1
		if total+wordLen > c.overlap {
			break
		}
		total += wordLen
		start = i
	}
	if start == len(chunk) {
		return nil
	}
	return append([]string(nil), chunk[start:]...)
}
