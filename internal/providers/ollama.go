package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const ollamaTimeout = 5 * time.Minute

type ollamaClient struct {
	client *api.Client
}

func newOllamaClient(baseURL string) (*ollamaClient, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama URL: %w", err)
	}

	httpClient := &http.Client{
		Timeout: ollamaTimeout,
	}

	return &ollamaClient{
		client: api.NewClient(parsedURL, httpClient),
	}, nil
}

func (c *ollamaClient) complete(ctx context.Context, modelID, prompt string) (string, error) {
	stream := false

	req := &api.ChatRequest{
		Model: modelID,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
	}

	var text strings.Builder

	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}

	return text.String(), nil
}
