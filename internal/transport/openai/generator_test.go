package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
}

func TestGenerator_Generate(t *testing.T) {
	server := chatServer(t, "  Both profiles are backend engineers.  ", http.StatusOK)
	defer server.Close()

	g := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: server.URL, Model: "gpt-test"})
	text, err := g.Generate(context.Background(), "compare a and b")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Both profiles are backend engineers." {
		t.Errorf("text = %q", text)
	}
}

func TestGenerator_Errors(t *testing.T) {
	server := chatServer(t, "", http.StatusInternalServerError)
	defer server.Close()
	g := NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: server.URL, Model: "gpt-test"})
	if _, err := g.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 500")
	}

	blank := chatServer(t, "   ", http.StatusOK)
	defer blank.Close()
	g = NewGenerator(&GeneratorConfig{APIKey: "k", BaseURL: blank.URL, Model: "gpt-test"})
	_, err := g.Generate(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "blank") {
		t.Fatalf("expected blank completion error, got %v", err)
	}
}
