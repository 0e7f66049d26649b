package kb

import "time"

// Chunk 文档分块后的数据结构。分块是摄取时派生的只读视图，
// 每次摄取重新计算，不单独落盘。
type Chunk struct {
	DocID     string    `json:"doc_id"`
	ChunkID   string    `json:"chunk_id"`
	KBID      string    `json:"kb_id"`
	Source    string    `json:"source"` // 来源文件名（KB 目录内）
	Seq       int       `json:"seq"`    // KB 内插入顺序，检索平分时用于排序
	Content   string    `json:"content"`
	Words     int       `json:"words"` // 空白分词计数，用于成本估算
	Page      int       `json:"page,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RetrievedChunk 单条检索结果
type RetrievedChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"` // 余弦相似度，越大越相关
}

// ModelSelector 聊天模型选择器（闭集）
type ModelSelector string

const (
	ModelClaude ModelSelector = "claude"
	ModelLlama  ModelSelector = "llama"
)

// ChatResult 问答结果
type ChatResult struct {
	Answer    string           `json:"answer"`
	Sources   []RetrievedChunk `json:"sources,omitempty"`
	Model     string           `json:"model"`
	ElapsedMs int64            `json:"elapsed_ms"`
}

// BuildResult 索引构建结果
type BuildResult struct {
	KBID         string  `json:"kb_id"`
	ChunkCount   int     `json:"chunk_count"`
	CostEstimate float64 `json:"cost_estimate"`
	ElapsedMs    int64   `json:"elapsed_ms"`
}
