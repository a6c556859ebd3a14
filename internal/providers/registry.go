// Package providers turns the configured provider table into a routing.Registry backed
// by the vendor SDKs.
package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/eternisai/session-titler/internal/config"
	"github.com/eternisai/session-titler/internal/logger"
	"github.com/eternisai/session-titler/internal/routing"
)

// maxOutputTokens bounds title generation output. Reasoning models spend part of it
// on thinking blocks that are stripped afterwards.
const maxOutputTokens = 1024

var (
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrNotAuthenticated  = errors.New("provider not authenticated")
	ErrModelNotAvailable = errors.New("model not available")
)

// client is implemented by every provider type.
type client interface {
	complete(ctx context.Context, modelID, prompt string) (string, error)
}

type provider struct {
	config *config.ProviderConfig
	client client
}

// Registry resolves models of the configured providers.
type Registry struct {
	providers map[string]*provider
	logger    *logger.Logger
}

// NewRegistry creates clients for every authenticated provider of the table.
// Providers without credentials stay known but unresolvable.
func NewRegistry(cfg *config.TitleGenerationConfig, logger *logger.Logger) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]*provider, len(cfg.Providers)),
		logger:    logger.WithComponent("providers"),
	}

	for i := range cfg.Providers {
		providerConfig := &cfg.Providers[i]
		p := &provider{config: providerConfig}

		if providerConfig.Authenticated() {
			c, err := newClient(providerConfig)
			if err != nil {
				return nil, fmt.Errorf("failed to create client for provider %s: %w", providerConfig.ID, err)
			}
			p.client = c
		}

		r.providers[providerConfig.ID] = p

		r.logger.Debug("provider registered",
			slog.String("provider", providerConfig.ID),
			slog.String("type", string(providerConfig.Type)),
			slog.Bool("authenticated", p.client != nil))
	}

	return r, nil
}

func newClient(cfg *config.ProviderConfig) (client, error) {
	switch cfg.Type {
	case config.ProviderTypeOpenAI:
		return newOpenAIClient(cfg.BaseURL, cfg.APIKey), nil
	case config.ProviderTypeAnthropic:
		return newAnthropicClient(cfg.BaseURL, cfg.APIKey), nil
	case config.ProviderTypeOllama:
		return newOllamaClient(cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}

// ListAuthenticated returns the providers that have credentials (or, for Ollama, an
// endpoint) configured.
func (r *Registry) ListAuthenticated(ctx context.Context) (map[string]routing.ProviderInfo, error) {
	result := make(map[string]routing.ProviderInfo)

	for id, p := range r.providers {
		if p.client == nil {
			continue
		}

		result[id] = routing.ProviderInfo{
			ID:          id,
			Description: p.config.Description,
		}
	}

	return result, nil
}

// Resolve returns a handle for the model. No request is sent to the provider: an
// unreachable endpoint surfaces on Generate.
func (r *Registry) Resolve(ctx context.Context, providerID, modelID string) (routing.Model, error) {
	p, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}

	if p.client == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthenticated, providerID)
	}

	if modelID == "" {
		return nil, fmt.Errorf("%w: empty model id for provider %s", ErrModelNotAvailable, providerID)
	}

	if len(p.config.Models) > 0 && !slices.Contains(p.config.Models, modelID) {
		return nil, fmt.Errorf("%w: %s is not offered by provider %s", ErrModelNotAvailable, modelID, providerID)
	}

	return &model{
		ref:    routing.ModelReference{ProviderID: providerID, ModelID: modelID},
		client: p.client,
	}, nil
}

type model struct {
	ref    routing.ModelReference
	client client
}

func (m *model) Ref() routing.ModelReference {
	return m.ref
}

func (m *model) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := m.client.complete(ctx, m.ref.ModelID, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", m.ref, err)
	}
	return text, nil
}
