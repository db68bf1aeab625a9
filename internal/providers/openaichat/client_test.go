package openaichat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
)

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func TestGenerateTextSendsSchema(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{"concepts":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	text, err := client.GenerateText(context.Background(), generation.TextRequest{
		System: "json only",
		Prompt: "write concepts",
		Schema: &generation.Schema{
			Type:       generation.TypeObject,
			Properties: []generation.Property{{Name: "concepts", Schema: &generation.Schema{Type: generation.TypeArray, Items: &generation.Schema{Type: generation.TypeString}}}},
		},
	})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != `{"concepts":[]}` {
		t.Fatalf("text = %q", text)
	}

	if captured["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %v", captured["model"])
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %v", captured["messages"])
	}
	format, _ := captured["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("response_format = %v", captured["response_format"])
	}
	schema, _ := format["json_schema"].(map[string]any)
	if schema["name"] != schemaName || schema["strict"] != true {
		t.Fatalf("json_schema = %v", schema)
	}
}

func TestGenerateTextMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.GenerateText(context.Background(), generation.TextRequest{Prompt: "hi"})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
}

func TestGenerateTextEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("   "))
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.GenerateText(context.Background(), generation.TextRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, domain.ErrConfigurationMissing) {
		t.Fatalf("error = %v, want ErrConfigurationMissing", err)
	}
}

func TestNormalizeModel(t *testing.T) {
	cases := []struct {
		input  string
		model  string
		reason string
	}{
		{input: "", model: "gpt-4o-mini"},
		{input: "gpt-4o-mini", model: "gpt-4o-mini"},
		{input: "GPT4o Mini", model: "gpt-4o-mini", reason: "alias"},
		{input: "gpt_4.1", model: "gpt-4.1"},
		{input: "o3-mini", model: "o3-mini"},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			model, reason := normalizeModel(tc.input)
			if model != tc.model || reason != tc.reason {
				t.Fatalf("normalizeModel(%q) = %q, %q; want %q, %q", tc.input, model, reason, tc.model, tc.reason)
			}
		})
	}
}
