package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"pdfbot/internal/db/postgres"
	"pdfbot/internal/domain/kb"
	applog "pdfbot/internal/platform/log"
)

// BotHandler PDF 知识库问答 API
type BotHandler struct {
	registry  *kb.Registry
	pipeline  *kb.Pipeline
	store     *postgres.KBStore // 可选
	maxFileMB int
}

// NewBotHandler 创建处理器
func NewBotHandler(registry *kb.Registry, pipeline *kb.Pipeline, maxFileMB int) *BotHandler {
	if maxFileMB <= 0 {
		maxFileMB = 50
	}
	return &BotHandler{
		registry:  registry,
		pipeline:  pipeline,
		maxFileMB: maxFileMB,
	}
}

// SetStore 设置元数据存储（可选，DATABASE_URL 配置时启用）
func (h *BotHandler) SetStore(store *postgres.KBStore) {
	h.store = store
}

// RegisterRoutes 注册 bot 路由
func (h *BotHandler) RegisterRoutes(r chi.Router) {
	r.Route("/bot", func(r chi.Router) {
		r.Post("/upload", h.Upload)
		r.Get("/embedding-cost/{kbID}", h.EmbeddingCost)
		r.Post("/create-embeddings/{kbID}", h.CreateEmbeddings)
		r.Post("/chat/{kbID}", h.Chat)

		if h.store != nil {
			r.Get("/knowledge-bases/{kbID}/documents", h.ListDocuments)
		}
	})
}

// --- 文件上传 ---

// Upload 上传 PDF 到指定知识库，首次上传隐式创建知识库
func (h *BotHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// MaxBytesReader 真正限制请求体大小；ParseMultipartForm 的参数
	// 只是内存/磁盘落盘阈值
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxFileMB)<<20)

	if err := r.ParseMultipartForm(4 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds %dMB limit", h.maxFileMB))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	kbID := r.FormValue("kb_id")
	if kbID == "" {
		writeError(w, http.StatusBadRequest, "kb_id is required")
		return
	}
	if err := h.registry.ValidateID(kbID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// 去掉客户端传来的路径部分，只留文件名
	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed.")
		return
	}

	dir, err := h.registry.EnsureDocumentDir(kbID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dst, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	applog.Info("[Bot] File uploaded", "kb_id", kbID, "file", filename, "size_bytes", size)

	if h.store != nil {
		if err := h.store.RecordDocument(r.Context(), kbID, filename, size); err != nil {
			applog.Warn("[Bot] Failed to record document metadata", "kb_id", kbID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("File '%s' uploaded under knowledge base ID '%s'.", filename, kbID),
	})
}

// --- 成本预估 ---

// EmbeddingCost 只做分块并返回 embedding 成本预估（不调用 embedding 服务）
func (h *BotHandler) EmbeddingCost(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")

	cost, err := h.pipeline.EstimateCost(r.Context(), kbID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kb_id":                   kbID,
		"embedding_cost_estimate": cost,
	})
}

// --- 索引构建 ---

// CreateEmbeddings 摄取 + 向量化 + 持久化索引（全量重建）
func (h *BotHandler) CreateEmbeddings(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")

	result, err := h.pipeline.CreateEmbeddings(r.Context(), kbID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if h.store != nil {
		if err := h.store.RecordBuild(r.Context(), kbID, result.ChunkCount, result.CostEstimate, result.ElapsedMs); err != nil {
			applog.Warn("[Bot] Failed to record build metadata", "kb_id", kbID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     fmt.Sprintf("Embeddings created and stored for knowledge base '%s'", kbID),
		"chunk_count": result.ChunkCount,
	})
}

// --- 问答 ---

type chatRequest struct {
	Query string `json:"query"`
	Model string `json:"model"` // claude | llama
}

// Chat 基于指定知识库与模型回答问题
func (h *BotHandler) Chat(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	result, err := h.pipeline.Chat(r.Context(), kbID, req.Query, kb.ModelSelector(req.Model))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response": result.Answer,
		"sources":  result.Sources,
	})
}

// --- 元数据查询 ---

// ListDocuments 列出知识库的上传记录（仅在配置了 DATABASE_URL 时可用）
func (h *BotHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")
	if err := h.registry.ValidateID(kbID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := h.store.ListDocuments(r.Context(), kbID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
