package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pdfbot/internal/provider"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}

		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "be helpful" {
			t.Errorf("system = %q, want from system message", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.MaxTokens != 256 {
			t.Errorf("max_tokens = %d, want 256", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(apiResponse{
			Model: req.Model,
			Content: []apiContentBlock{
				{Type: "text", Text: "Hello "},
				{Type: "text", Text: "world"},
			},
			StopReason: "end_turn",
			Usage:      apiUsage{InputTokens: 10, OutputTokens: 5},
		})
	}))
	defer srv.Close()

	p := New(Config{APIKey: "test-key", BaseURL: srv.URL})

	resp, err := p.Complete(context.Background(), &provider.CompletionRequest{
		Model: "claude-3-haiku-20240307",
		Messages: []provider.Message{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "hi"},
		},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// 多个 text block 拼接
	if resp.Content != "Hello world" {
		t.Errorf("content = %q, want \"Hello world\"", resp.Content)
	}
	if resp.FinishReason != "end_turn" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"type": "overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), &provider.CompletionRequest{
		Model:    "claude-3-haiku-20240307",
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestMaxTokensDefault(t *testing.T) {
	p := New(Config{})
	req := p.buildAPIRequest(&provider.CompletionRequest{
		Model:    "claude-3-haiku-20240307",
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
	})
	if req.MaxTokens != 512 {
		t.Errorf("default max_tokens = %d, want 512", req.MaxTokens)
	}
}
