package kb

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	applog "pdfbot/internal/platform/log"
)

// Ingestor 把知识库目录下的文档转为 Chunk 序列。
// 文件按名字排序处理，保证相同输入产出相同的分块序列。
type Ingestor struct {
	registry *Registry
	parsers  *ParserRegistry
	chunker  *Chunker
}

// NewIngestor 创建摄取器
func NewIngestor(registry *Registry, parsers *ParserRegistry, chunker *Chunker) *Ingestor {
	return &Ingestor{
		registry: registry,
		parsers:  parsers,
		chunker:  chunker,
	}
}

// Ingest 读取 kb_id 文档目录下所有可解析文件并分块。
// 单个文件失败不中断批次，只要还有文件成功就继续；
// 全部失败时返回第一个 IngestionError。空目录返回空序列。
func (ing *Ingestor) Ingest(ctx context.Context, kbID string) ([]Chunk, error) {
	dir, err := ing.registry.DocumentDir(kbID)
	if err != nil {
		return nil, err
	}
	if !ing.registry.Exists(kbID) {
		return nil, ErrKnowledgeBaseNotFound
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &IngestionError{File: dir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !ing.parsers.Supports(e.Name()) {
			applog.Debug("[KB/Ingest] Skipping unsupported file", "kb_id", kbID, "file", e.Name())
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var (
		chunks   []Chunk
		failures []*IngestionError
	)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docChunks, err := ing.ingestFile(kbID, dir, name, len(chunks))
		if err != nil {
			ierr := &IngestionError{File: name, Err: err}
			failures = append(failures, ierr)
			applog.Warn("[KB/Ingest] Document failed, continuing batch",
				"kb_id", kbID, "file", name, "error", err)
			continue
		}
		chunks = append(chunks, docChunks...)
	}

	if len(failures) > 0 && len(failures) == len(names) {
		return nil, failures[0]
	}

	applog.Info("[KB/Ingest] Ingested",
		"kb_id", kbID,
		"files", len(names)-len(failures),
		"failed", len(failures),
		"chunks", len(chunks),
	)
	return chunks, nil
}

func (ing *Ingestor) ingestFile(kbID, dir, name string, seqBase int) ([]Chunk, error) {
	parser, err := ing.parsers.Get(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result, err := parser.Parse(f, name)
	if err != nil {
		return nil, err
	}

	return ing.chunker.Split(kbID, name, result.Content, result.Pages, seqBase), nil
}
