package openai

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
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing bearer token")
		}

		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3:70b" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Stream {
			t.Error("stream must be false for Complete")
		}
		if req.Temperature == nil || *req.Temperature != 0.5 {
			t.Errorf("temperature = %v, want 0.5", req.Temperature)
		}

		json.NewEncoder(w).Encode(apiResponse{
			Model: req.Model,
			Choices: []apiChoice{
				{Message: apiMessage{Role: "assistant", Content: "an answer"}, FinishReason: "stop"},
			},
			Usage: apiUsage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30},
		})
	}))
	defer srv.Close()

	p := New(Config{APIKey: "test-key", BaseURL: srv.URL})

	resp, err := p.Complete(context.Background(), &provider.CompletionRequest{
		Model:       "llama3:70b",
		Messages:    []provider.Message{{Role: "user", Content: "question"}},
		Temperature: 0.5,
		MaxTokens:   512,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "an answer" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 30 {
		t.Errorf("total tokens = %d, want 30", resp.Usage.TotalTokens)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Model: "m"})
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), &provider.CompletionRequest{
		Model:    "m",
		Messages: []provider.Message{{Role: "user", Content: "q"}},
	})
	if err == nil {
		t.Fatal("expected error when response has no choices")
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), &provider.CompletionRequest{
		Model:    "m",
		Messages: []provider.Message{{Role: "user", Content: "q"}},
	})
	if err == nil {
		t.Fatal("expected error on 429")
	}
}
