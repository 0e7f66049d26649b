package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentRecord 上传文档的元数据记录
type DocumentRecord struct {
	ID         string    `json:"id"`
	KBID       string    `json:"kb_id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// BuildRecord 一次索引构建的审计记录
type BuildRecord struct {
	ID           string    `json:"id"`
	KBID         string    `json:"kb_id"`
	ChunkCount   int       `json:"chunk_count"`
	CostEstimate float64   `json:"cost_estimate"`
	ElapsedMs    int64     `json:"elapsed_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// KBStore 知识库元数据/审计存储（可选，DATABASE_URL 配置时启用）
type KBStore struct {
	db *sql.DB
}

// NewKBStore 创建存储
func NewKBStore(db *sql.DB) *KBStore {
	return &KBStore{db: db}
}

// EnsureTables 建表（幂等）
func (s *KBStore) EnsureTables(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS kb_documents (
		id          UUID PRIMARY KEY,
		kb_id       VARCHAR(64) NOT NULL,
		filename    VARCHAR(255) NOT NULL,
		size_bytes  BIGINT NOT NULL DEFAULT 0,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (kb_id, filename)
	);
	CREATE INDEX IF NOT EXISTS idx_kb_documents_kb ON kb_documents(kb_id);

	CREATE TABLE IF NOT EXISTS kb_builds (
		id            UUID PRIMARY KEY,
		kb_id         VARCHAR(64) NOT NULL,
		chunk_count   INTEGER NOT NULL DEFAULT 0,
		cost_estimate NUMERIC(12, 4) NOT NULL DEFAULT 0,
		elapsed_ms    BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_kb_builds_kb ON kb_builds(kb_id);
	`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// RecordDocument 记录一次上传，同名文件覆盖时更新记录
func (s *KBStore) RecordDocument(ctx context.Context, kbID, filename string, sizeBytes int64) error {
	query := `
	INSERT INTO kb_documents (id, kb_id, filename, size_bytes, uploaded_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (kb_id, filename)
	DO UPDATE SET size_bytes = EXCLUDED.size_bytes, uploaded_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.New().String(), kbID, filename, sizeBytes); err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	return nil
}

// RecordBuild 记录一次索引构建
func (s *KBStore) RecordBuild(ctx context.Context, kbID string, chunkCount int, costEstimate float64, elapsedMs int64) error {
	query := `
	INSERT INTO kb_builds (id, kb_id, chunk_count, cost_estimate, elapsed_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.New().String(), kbID, chunkCount, costEstimate, elapsedMs); err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	return nil
}

// ListDocuments 列出某知识库的上传记录
func (s *KBStore) ListDocuments(ctx context.Context, kbID string) ([]DocumentRecord, error) {
	query := `
	SELECT id, kb_id, filename, size_bytes, uploaded_at
	FROM kb_documents
	WHERE kb_id = $1
	ORDER BY filename
	`
	rows, err := s.db.QueryContext(ctx, query, kbID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentRecord
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.KBID, &d.Filename, &d.SizeBytes, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
