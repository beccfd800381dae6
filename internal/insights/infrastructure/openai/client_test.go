package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
)

func TestCompleteSendsAnalystPrompt(t *testing.T) {
	var got goopenai.ChatCompletionRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Run the kettle off-peak."}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/v1", "sk-test")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	reply, err := client.Complete(context.Background(), "analyse this")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "Run the kettle off-peak." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if path != "/v1/chat/completions" {
		t.Fatalf("unexpected path %q", path)
	}
	if got.Model != DefaultModel || got.MaxTokens != DefaultMaxTokens {
		t.Fatalf("unexpected request: model=%q max_tokens=%d", got.Model, got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Content != SystemPrompt || got.Messages[1].Content != "analyse this" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if got.Messages[0].Role != goopenai.ChatMessageRoleSystem || got.Messages[1].Role != goopenai.ChatMessageRoleUser {
		t.Fatalf("unexpected roles: %+v", got.Messages)
	}
}

func TestCompleteErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/empty/") {
			_, _ = w.Write([]byte(`{"choices":[]}`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "sk-test")
	_, err := client.Complete(context.Background(), "x")
	var apiErr *goopenai.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode != http.StatusTooManyRequests || apiErr.Message != "rate limited" {
		t.Fatalf("expected rate limit api error, got %v", err)
	}
	client, _ = NewClient(server.URL+"/empty", "sk-test", WithModel("gpt-4o-mini"))
	if _, err := client.Complete(context.Background(), "x"); err != errEmptyChoices {
		t.Fatalf("expected errEmptyChoices, got %v", err)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"": DefaultURL,
		"https://api.openai.com/v1/chat/completions": "https://api.openai.com/v1",
		"https://llm.internal/v1/":                   "https://llm.internal/v1",
	}
	for in, want := range cases {
		if got := normalizeBaseURL(in); got != want {
			t.Fatalf("normalizeBaseURL(%q) = %q want %q", in, got, want)
		}
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("", ""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
