package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdfbot/internal/domain/kb"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeDomainError 按错误种类映射 HTTP 状态码。
// 校验类 400，未找到类 404，摄取失败 422，远端服务失败 502。
func writeDomainError(w http.ResponseWriter, err error) {
	var ingestErr *kb.IngestionError

	switch {
	case errors.Is(err, kb.ErrInvalidKnowledgeBaseID),
		errors.Is(err, kb.ErrUnsupportedModel):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, kb.ErrKnowledgeBaseNotFound),
		errors.Is(err, kb.ErrIndexNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ingestErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, kb.ErrEmbeddingService),
		errors.Is(err, kb.ErrLLMService):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
