package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	applog "pdfbot/internal/platform/log"
)

// IndexEntry 索引中的一条（chunk + 向量）
type IndexEntry struct {
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"vector"`
}

// Index 单个知识库的向量索引快照。
// 相似度固定为余弦相似度，构建和查询两侧保持一致。
type Index struct {
	KBID    string       `json:"kb_id"`
	Model   string       `json:"model"`
	Dims    int          `json:"dims"`
	BuiltAt time.Time    `json:"built_at"`
	Entries []IndexEntry `json:"entries"`
}

// IndexManager 负责索引的构建、持久化、加载与检索
type IndexManager struct {
	registry *Registry
	embedder Embedder
	topK     int
}

// NewIndexManager 创建索引管理器
func NewIndexManager(registry *Registry, embedder Embedder, defaultTopK int) *IndexManager {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &IndexManager{
		registry: registry,
		embedder: embedder,
		topK:     defaultTopK,
	}
}

// Build 为全部分块生成向量并构建索引。任一向量生成失败则整体失败，
// 不会留下半套索引。零分块是合法输入，产出空索引。
func (m *IndexManager) Build(ctx context.Context, kbID string, chunks []Chunk) (*Index, error) {
	if err := m.registry.ValidateID(kbID); err != nil {
		return nil, err
	}
	if m.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingService)
	}

	idx := &Index{
		KBID:    kbID,
		Dims:    m.embedder.Dims(),
		BuiltAt: time.Now(),
		Entries: make([]IndexEntry, 0, len(chunks)),
	}
	if named, ok := m.embedder.(interface{ Model() string }); ok {
		idx.Model = named.Model()
	}

	if len(chunks) == 0 {
		return idx, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingService, len(vectors), len(chunks))
	}

	for i, c := range chunks {
		idx.Entries = append(idx.Entries, IndexEntry{Chunk: c, Vector: vectors[i]})
	}
	return idx, nil
}

// Persist 以临时文件 + rename 原子替换快照。
// 并发读方只会看到旧的或新的完整索引，不会看到半成品。
func (m *IndexManager) Persist(idx *Index) error {
	path, err := m.registry.IndexPath(idx.KBID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+idx.KBID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp index: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("swap index: %w", err)
	}

	applog.Info("[KB/Index] Persisted",
		"kb_id", idx.KBID,
		"entries", len(idx.Entries),
		"dims", idx.Dims,
	)
	return nil
}

// Load 加载 kb_id 的索引快照。从未构建过返回 ErrIndexNotFound，
// 已构建但为空的索引正常加载。
func (m *IndexManager) Load(kbID string) (*Index, error) {
	path, err := m.registry.IndexPath(kbID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, kbID)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse index %s: %w", kbID, err)
	}
	return &idx, nil
}

// Query 对查询文本做向量化后返回 top-k 最近邻，按相似度降序，
// 分数相同时按原始插入顺序。
func (m *IndexManager) Query(ctx context.Context, idx *Index, query string, topK int) ([]RetrievedChunk, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingService)
	}
	if topK <= 0 {
		topK = m.topK
	}
	if len(idx.Entries) == 0 {
		return nil, nil
	}

	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryVector := vectors[0]

	results := make([]RetrievedChunk, 0, len(idx.Entries))
	for _, entry := range idx.Entries {
		results = append(results, RetrievedChunk{
			Chunk: entry.Chunk,
			Score: cosineSimilarity(queryVector, entry.Vector),
		})
	}

	// Entries 本身按插入顺序排列，stable sort 保证平分时的确定性
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// cosineSimilarity 余弦相似度，零向量相似度为 0
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
