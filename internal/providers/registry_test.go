package providers

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/eternisai/session-titler/internal/config"
	"github.com/eternisai/session-titler/internal/logger"
)

var (
	log *logger.Logger
)

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Verbose() {
		log = logger.New(logger.Config{Level: slog.LevelDebug})
	} else {
		log = logger.New(logger.Config{Level: slog.LevelError})
	}

	exitCode := m.Run()

	os.Exit(exitCode)
}

// newProviderServer emulates a provider HTTP API. It records the JSON body of the
// last request sent to a path ending with suffix.
func newProviderServer(t *testing.T, suffix string, response string) (*httptest.Server, *map[string]any) {
	t.Helper()

	body := make(map[string]any)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, suffix) {
			t.Errorf("unexpected request path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	return server, &body
}

func newTestRegistry(t *testing.T, providers ...config.ProviderConfig) *Registry {
	t.Helper()

	registry, err := NewRegistry(&config.TitleGenerationConfig{Providers: providers}, log)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	return registry
}

func TestListAuthenticated(t *testing.T) {
	registry := newTestRegistry(t,
		config.ProviderConfig{ID: "openai", Type: config.ProviderTypeOpenAI, APIKey: "key", Description: "OpenAI"},
		config.ProviderConfig{ID: "anthropic", Type: config.ProviderTypeAnthropic},
		config.ProviderConfig{ID: "ollama", Type: config.ProviderTypeOllama, BaseURL: "http://127.0.0.1:11434"},
	)

	authenticated, err := registry.ListAuthenticated(context.Background())
	if err != nil {
		t.Fatalf("ListAuthenticated failed: %v", err)
	}

	if len(authenticated) != 2 {
		t.Fatalf("expected 2 authenticated providers, got %v", authenticated)
	}
	if authenticated["openai"].Description != "OpenAI" {
		t.Errorf("unexpected openai info %+v", authenticated["openai"])
	}
	if _, ok := authenticated["anthropic"]; ok {
		t.Error("anthropic has no key and must not be authenticated")
	}
	if _, ok := authenticated["ollama"]; !ok {
		t.Error("ollama with an endpoint must be authenticated")
	}
}

func TestResolveErrors(t *testing.T) {
	registry := newTestRegistry(t,
		config.ProviderConfig{ID: "nvidia", Type: config.ProviderTypeOpenAI, APIKey: "key", Models: []string{"meta/llama-3.3-70b-instruct"}},
		config.ProviderConfig{ID: "anthropic", Type: config.ProviderTypeAnthropic},
	)

	tests := []struct {
		name       string
		providerID string
		modelID    string
		expected   error
	}{
		{"unknown provider", "groq", "llama", ErrUnknownProvider},
		{"not authenticated", "anthropic", "claude-haiku-4-5", ErrNotAuthenticated},
		{"empty model", "nvidia", "", ErrModelNotAvailable},
		{"model not in allow-list", "nvidia", "meta/llama-2", ErrModelNotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Resolve(context.Background(), tt.providerID, tt.modelID)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}

	model, err := registry.Resolve(context.Background(), "nvidia", "meta/llama-3.3-70b-instruct")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if model.Ref().String() != "nvidia/meta/llama-3.3-70b-instruct" {
		t.Errorf("unexpected reference %v", model.Ref())
	}
}

func TestOpenAIGenerate(t *testing.T) {
	server, body := newProviderServer(t, "/chat/completions", `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-5-mini",
		"choices": [{
			"index": 0,
			"finish_reason": "stop",
			"message": {"role": "assistant", "content": "Fixing login bug"}
		}]
	}`)

	registry := newTestRegistry(t, config.ProviderConfig{
		ID:      "openai",
		Type:    config.ProviderTypeOpenAI,
		BaseURL: server.URL + "/v1/",
		APIKey:  "test-key",
	})

	model, err := registry.Resolve(context.Background(), "openai", "gpt-5-mini")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	text, err := model.Generate(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if text != "Fixing login bug" {
		t.Errorf("unexpected text %q", text)
	}
	if (*body)["model"] != "gpt-5-mini" {
		t.Errorf("unexpected model in request: %v", (*body)["model"])
	}
}

func TestAnthropicGenerate(t *testing.T) {
	server, body := newProviderServer(t, "/v1/messages", `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-haiku-4-5",
		"content": [
			{"type": "text", "text": "<think>hmm</think>"},
			{"type": "text", "text": "Refactoring parser"}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)

	registry := newTestRegistry(t, config.ProviderConfig{
		ID:      "anthropic",
		Type:    config.ProviderTypeAnthropic,
		BaseURL: server.URL + "/",
		APIKey:  "test-key",
	})

	model, err := registry.Resolve(context.Background(), "anthropic", "claude-haiku-4-5")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	text, err := model.Generate(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if text != "<think>hmm</think>Refactoring parser" {
		t.Errorf("unexpected text %q", text)
	}
	if (*body)["max_tokens"] != float64(maxOutputTokens) {
		t.Errorf("unexpected max_tokens in request: %v", (*body)["max_tokens"])
	}
}

func TestOllamaGenerate(t *testing.T) {
	server, body := newProviderServer(t, "/api/chat", `{
		"model": "qwen3:4b",
		"created_at": "2026-01-01T00:00:00Z",
		"message": {"role": "assistant", "content": "Local title"},
		"done": true
	}`)

	registry := newTestRegistry(t, config.ProviderConfig{
		ID:      "ollama",
		Type:    config.ProviderTypeOllama,
		BaseURL: server.URL,
	})

	model, err := registry.Resolve(context.Background(), "ollama", "qwen3:4b")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	text, err := model.Generate(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if text != "Local title" {
		t.Errorf("unexpected text %q", text)
	}
	if (*body)["stream"] != false {
		t.Errorf("expected non-streaming request, got stream=%v", (*body)["stream"])
	}
}

func TestGenerateProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	registry := newTestRegistry(t, config.ProviderConfig{
		ID:      "groq",
		Type:    config.ProviderTypeOpenAI,
		BaseURL: server.URL + "/",
		APIKey:  "bad-key",
	})

	model, err := registry.Resolve(context.Background(), "groq", "llama-3.1-8b-instant")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if _, err := model.Generate(context.Background(), "summarize"); err == nil {
		t.Fatal("expected error from provider")
	} else if !strings.Contains(err.Error(), "groq/llama-3.1-8b-instant") {
		t.Errorf("error %q does not name the model", err.Error())
	}
}
