package kb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func embeddingHandler(dims int, failFirst *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if failFirst != nil && atomic.AddInt32(failFirst, -1) >= 0 {
			http.Error(w, `{"error": "overloaded"}`, http.StatusInternalServerError)
			return
		}

		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]datum, len(req.Input))
		for i := range req.Input {
			v := make([]float32, dims)
			v[i%dims] = 1
			data[i] = datum{Index: i, Embedding: v}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}
}

func TestOpenAIEmbedderEmbed(t *testing.T) {
	srv := httptest.NewServer(embeddingHandler(4, nil))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{
		BaseURL:     srv.URL,
		Model:       "test-model",
		Dims:        4,
		MaxAttempts: 1,
	})

	vectors, err := e.Embed(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for i, v := range vectors {
		if len(v) != 4 {
			t.Errorf("vector %d has %d dims, want 4", i, len(v))
		}
	}
	// 顺序按输入对齐
	if vectors[1][1] != 1 {
		t.Error("vectors not aligned to input order")
	}
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{BaseURL: "http://unused"})

	vectors, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed(nil): %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil vectors for empty input, got %v", vectors)
	}
}

// TestOpenAIEmbedderRetriesTransientFailure 瞬时 5xx 重试后成功
func TestOpenAIEmbedderRetriesTransientFailure(t *testing.T) {
	failures := int32(2)
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		embeddingHandler(4, &failures)(w, r)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{
		BaseURL:     srv.URL,
		Dims:        4,
		MaxAttempts: 3,
	})

	vectors, err := e.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("Embed should succeed after retries: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("expected 3 requests (2 failures + 1 success), got %d", got)
	}
}

// TestOpenAIEmbedderExhaustsRetries 重试耗尽后以 ErrEmbeddingService 上抛
func TestOpenAIEmbedderExhaustsRetries(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{
		BaseURL:     srv.URL,
		Dims:        4,
		MaxAttempts: 2,
	})

	_, err := e.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("err = %v, want ErrEmbeddingService", err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

// TestOpenAIEmbedderNoRetryOn4xx 4xx（非 429）不重试
func TestOpenAIEmbedderNoRetryOn4xx(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{
		BaseURL:     srv.URL,
		Dims:        4,
		MaxAttempts: 3,
	})

	_, err := e.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("err = %v, want ErrEmbeddingService", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("expected exactly 1 request for permanent failure, got %d", got)
	}
}

// TestOpenAIEmbedderBatching 超过 batch size 的输入拆为多个请求
func TestOpenAIEmbedderBatching(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		embeddingHandler(4, nil)(w, r)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{
		BaseURL:     srv.URL,
		Dims:        4,
		BatchSize:   2,
		MaxAttempts: 1,
	})

	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(vectors))
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("expected 3 batch requests for 5 texts at batch size 2, got %d", got)
	}
}
