package kb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKnowledgeBaseID kb_id 格式非法（路径穿越等）
	ErrInvalidKnowledgeBaseID = errors.New("invalid knowledge base id")

	// ErrKnowledgeBaseNotFound 知识库从未摄取过文档
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")

	// ErrIndexNotFound 知识库从未构建过索引（区别于"已构建但为空"）
	ErrIndexNotFound = errors.New("vector index not found for knowledge base")

	// ErrUnsupportedModel 模型选择器不在闭集内
	ErrUnsupportedModel = errors.New("unsupported model selector")

	// ErrEmbeddingService Embedding 服务重试耗尽后仍失败
	ErrEmbeddingService = errors.New("embedding service unavailable")

	// ErrLLMService LLM 服务重试耗尽后仍失败
	ErrLLMService = errors.New("llm service unavailable")
)

// IngestionError 单个文档解析/读取失败，标明出错文件
type IngestionError struct {
	File string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.File, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
