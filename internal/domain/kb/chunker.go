package kb

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Chunker 文档分块器。给定相同输入必须产出相同的分块内容序列，
// 成本估算和索引重建都依赖这一点。
type Chunker struct {
	chunkSize int // 每块最大字符数
	overlap   int // 相邻块重叠字符数（overlap << chunkSize）
}

// NewChunker 创建分块器
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// Split 将单个文档的纯文本切分为 Chunk 序列。
// seqBase 是该文档第一个分块在 KB 内的插入序号。
func (c *Chunker) Split(kbID, source, content string, page int, seqBase int) []Chunk {
	paragraphs := splitParagraphs(content)
	pieces := c.mergeParagraphs(paragraphs)
	if len(pieces) == 0 {
		return nil
	}

	docID := uuid.New().String()
	now := time.Now()

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, Chunk{
			DocID:     docID,
			ChunkID:   fmt.Sprintf("%s_chunk_%d", docID, i),
			KBID:      kbID,
			Source:    source,
			Seq:       seqBase + i,
			Content:   piece,
			Words:     len(strings.Fields(piece)),
			Page:      page,
			CreatedAt: now,
		})
	}
	return chunks
}

// splitParagraphs 按换行分段并去除空白段
func splitParagraphs(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	rawParts := strings.Split(text, "\n")
	var parts []string
	for _, p := range rawParts {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// mergeParagraphs 将段落合并为不超过 chunkSize 的块，带 overlap。
// 优先在段落边界断开，段落本身超限时才硬切分。
// chunkSize 是硬上限：overlap 尾部加上新段落装不下时，该处省略 overlap。
func (c *Chunker) mergeParagraphs(paragraphs []string) []string {
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	for _, para := range paragraphs {
		paraLen := utf8.RuneCountInString(para)

		// 段落本身就超过 chunkSize，需要硬切分
		if paraLen > c.chunkSize {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			runes := []rune(para)
			for i := 0; i < len(runes); i += c.chunkSize - c.overlap {
				end := i + c.chunkSize
				if end > len(runes) {
					end = len(runes)
				}
				chunks = append(chunks, string(runes[i:end]))
				if end >= len(runes) {
					break
				}
			}
			continue
		}

		currentLen := utf8.RuneCountInString(current.String())
		if currentLen+paraLen+1 > c.chunkSize {
			// 当前块已满，保存并以尾部 overlap 开启新块
			chunks = append(chunks, current.String())
			prev := current.String()
			current.Reset()
			if c.overlap > 0 {
				prevRunes := []rune(prev)
				// 带上 overlap 后仍要守住 chunkSize 上限，
				// 放不下时放弃这一处 overlap
				if len(prevRunes) > c.overlap && c.overlap+1+paraLen+1 <= c.chunkSize {
					current.WriteString(string(prevRunes[len(prevRunes)-c.overlap:]))
					current.WriteString("\n")
				}
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(para)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
