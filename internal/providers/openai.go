package providers

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openAIClient serves OpenAI and every OpenAI-compatible endpoint.
type openAIClient struct {
	client openai.Client
}

func newOpenAIClient(baseURL, apiKey string) *openAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}

	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &openAIClient{
		client: openai.NewClient(opts...),
	}
}

func (c *openAIClient) complete(ctx context.Context, modelID, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(modelID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(maxOutputTokens),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}

	return resp.Choices[0].Message.Content, nil
}
