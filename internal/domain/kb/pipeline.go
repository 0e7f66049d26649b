package kb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	applog "pdfbot/internal/platform/log"
	"pdfbot/internal/provider"
)

// RetrievalCache 检索结果缓存（可选，Redis 实现见 internal/db/redis）
type RetrievalCache interface {
	Get(ctx context.Context, kbID, query string, topK int) ([]RetrievedChunk, bool)
	Set(ctx context.Context, kbID, query string, topK int, results []RetrievedChunk)
	InvalidateKB(ctx context.Context, kbID string)
}

// ModelBinding 模型选择器到供应商/模型的绑定
type ModelBinding struct {
	Provider string // provider registry 中的名称
	Model    string // 供应商侧模型 id
}

// answerPrompt 固定问答模板：只允许基于给定上下文作答，
// 目标篇幅约 250 词，上下文不足时明确说不知道
const answerPrompt = `Use the following pieces of context to provide a concise answer to the question at the end, and summarize with at least 250 words with detailed explanations. If you don't know the answer, just say that you don't know, don't try to make up an answer.

<context>
%s
</context>

Question: %s`

// Pipeline 检索增强问答管线。每次调用相互独立，不保留会话状态。
type Pipeline struct {
	registry *Registry
	ingestor *Ingestor
	index    *IndexManager
	locks    *KBLocks
	config   *Config

	cache  RetrievalCache // 可选
	models map[ModelSelector]ModelBinding
}

// NewPipeline 创建问答管线
func NewPipeline(registry *Registry, ingestor *Ingestor, index *IndexManager, cfg *Config) *Pipeline {
	return &Pipeline{
		registry: registry,
		ingestor: ingestor,
		index:    index,
		locks:    NewKBLocks(),
		config:   cfg,
		models:   make(map[ModelSelector]ModelBinding),
	}
}

// SetCache 设置检索缓存
func (p *Pipeline) SetCache(c RetrievalCache) {
	p.cache = c
}

// BindModel 绑定模型选择器
func (p *Pipeline) BindModel(selector ModelSelector, binding ModelBinding) {
	p.models[selector] = binding
}

// EstimateCost 只做摄取+分块，返回 embedding 成本预估。
// 与 CreateEmbeddings 使用同一套分块，预估口径和实际构建一致。
func (p *Pipeline) EstimateCost(ctx context.Context, kbID string) (float64, error) {
	chunks, err := p.ingestor.Ingest(ctx, kbID)
	if err != nil {
		return 0, err
	}
	return EstimateEmbeddingCost(chunks, p.config.CostPerToken), nil
}

// CreateEmbeddings 摄取、向量化并原子替换 kb_id 的索引。
// 同一 kb_id 的构建串行（写锁），重复执行幂等（全量重建，非增量合并）。
func (p *Pipeline) CreateEmbeddings(ctx context.Context, kbID string) (*BuildResult, error) {
	if err := p.registry.ValidateID(kbID); err != nil {
		return nil, err
	}

	lock := p.locks.Get(kbID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	chunks, err := p.ingestor.Ingest(ctx, kbID)
	if err != nil {
		return nil, err
	}

	idx, err := p.index.Build(ctx, kbID, chunks)
	if err != nil {
		return nil, err
	}
	if err := p.index.Persist(idx); err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.InvalidateKB(ctx, kbID)
	}

	result := &BuildResult{
		KBID:         kbID,
		ChunkCount:   len(chunks),
		CostEstimate: EstimateEmbeddingCost(chunks, p.config.CostPerToken),
		ElapsedMs:    time.Since(start).Milliseconds(),
	}

	applog.Info("[KB] Embeddings created",
		"kb_id", kbID,
		"chunks", result.ChunkCount,
		"elapsed_ms", result.ElapsedMs,
	)
	return result, nil
}

// Chat 执行一次检索增强问答：
// 解析知识库 → 加载索引 → top-k 检索 → 模板组装 → LLM 生成。
func (p *Pipeline) Chat(ctx context.Context, kbID, query string, selector ModelSelector) (*ChatResult, error) {
	if err := p.registry.ValidateID(kbID); err != nil {
		return nil, err
	}

	binding, ok := p.models[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, selector)
	}

	start := time.Now()

	sources, err := p.retrieve(ctx, kbID, query)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(answerPrompt, formatContext(sources), query)

	answer, err := p.generate(ctx, binding, prompt)
	if err != nil {
		return nil, err
	}

	applog.Info("[KB] Chat answered",
		"kb_id", kbID,
		"model", selector,
		"sources", len(sources),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &ChatResult{
		Answer:    answer,
		Sources:   sources,
		Model:     string(selector),
		ElapsedMs: time.Since(start).Milliseconds(),
	}, nil
}

// retrieve 在读锁内加载索引并检索，保证不与同 KB 的构建并发
func (p *Pipeline) retrieve(ctx context.Context, kbID, query string) ([]RetrievedChunk, error) {
	lock := p.locks.Get(kbID)
	lock.RLock()
	defer lock.RUnlock()

	if !p.registry.Exists(kbID) {
		return nil, fmt.Errorf("%w: %s", ErrKnowledgeBaseNotFound, kbID)
	}

	topK := p.config.DefaultTopK

	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, kbID, query, topK); ok {
			return cached, nil
		}
	}

	idx, err := p.index.Load(kbID)
	if err != nil {
		return nil, err
	}

	results, err := p.index.Query(ctx, idx, query, topK)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Set(ctx, kbID, query, topK, results)
	}
	return results, nil
}

// generate 调用绑定的 LLM 供应商，瞬时失败指数退避重试，
// 耗尽后以 ErrLLMService 上抛；模型间不做静默降级。
// 每次尝试带独立 deadline，供应商挂住不回包时按瞬时失败处理，
// 不会无限占用调用方（以及同 KB 的读锁）。
func (p *Pipeline) generate(ctx context.Context, binding ModelBinding, prompt string) (string, error) {
	prov, err := provider.GetProvider(binding.Provider)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMService, err)
	}

	req := &provider.CompletionRequest{
		Model:       binding.Model,
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		MaxTokens:   512,
		Temperature: 0.5,
	}

	maxAttempts := p.config.RetryMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	timeout := time.Duration(p.config.LLMTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxAttempts-1)),
		ctx,
	)

	var answer string
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := prov.Complete(callCtx, req)
		cancel()
		if err != nil {
			applog.Warn("[KB] LLM attempt failed",
				"provider", binding.Provider, "model", binding.Model,
				"attempt", attempt, "error", err)
			return err
		}
		answer = resp.Content
		return nil
	}, policy)

	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMService, err)
	}
	return answer, nil
}

// formatContext 将检索结果格式化为 LLM 上下文文本
func formatContext(sources []RetrievedChunk) string {
	if len(sources) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, src := range sources {
		sb.WriteString(fmt.Sprintf("[%d] ", i+1))
		sb.WriteString(src.Chunk.Content)
		if src.Chunk.Source != "" {
			sb.WriteString(fmt.Sprintf("\n(source: %s)", src.Chunk.Source))
		}
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}
