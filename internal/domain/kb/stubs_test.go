package kb

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync/atomic"

	"pdfbot/internal/provider"
)

// stubEmbedder 词袋哈希向量：确定性，词重叠越多余弦相似度越高，
// 足以在测试里驱动真实的 top-k 排序
type stubEmbedder struct {
	dims int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{dims: 16}
}

func (s *stubEmbedder) Dims() int { return s.dims }

func (s *stubEmbedder) Model() string { return "stub-bow" }

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, s.dims)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			w = strings.Trim(w, ".,!?;:\"'")
			if w == "" {
				continue
			}
			h := fnv.New32a()
			h.Write([]byte(w))
			v[int(h.Sum32())%s.dims]++
		}
		out[i] = v
	}
	return out, nil
}

// constEmbedder 所有文本映射到同一向量，用于平分时的排序测试
type constEmbedder struct{}

func (constEmbedder) Dims() int { return 3 }

func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// failEmbedder 始终失败
type failEmbedder struct{}

func (failEmbedder) Dims() int { return 3 }

func (failEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding backend down")
}

// hangingLLM 模拟不回包的供应商：挂起直到请求 ctx 结束
type hangingLLM struct {
	name string
}

func (h *hangingLLM) Name() string { return h.name }

func (h *hangingLLM) Complete(ctx context.Context, _ *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// stubLLM 注册到 provider registry 的固定回答供应商
type stubLLM struct {
	name     string
	answer   string
	failures int32 // 前 N 次调用失败
	calls    int32
}

func (s *stubLLM) Name() string { return s.name }

func (s *stubLLM) Complete(_ context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if n <= atomic.LoadInt32(&s.failures) {
		return nil, errors.New("llm backend down")
	}
	return &provider.CompletionResponse{
		Content: s.answer,
		Model:   req.Model,
	}, nil
}
