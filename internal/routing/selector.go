package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eternisai/session-titler/internal/config"
	"github.com/eternisai/session-titler/internal/logger"
	"github.com/eternisai/session-titler/internal/metrics"
)

const (
	stageConfig   = "config"
	stageFallback = "fallback"
)

// Selector resolves the model used for title generation.
//
// Selection strategy:
//  1. Configured model: if a "provider/model" string is configured, resolve it once.
//     A malformed string is logged and treated as absent.
//  2. Fallback chain: walk the priority list in order, skipping providers that are not
//     authenticated or have no default model, and resolve each remaining candidate
//     once. The first success wins.
//  3. Otherwise selection fails with ErrNoUsableModel.
//
// Attempts are strictly sequential and candidates after the first success are never
// resolved.
//
// Example Usage:
//
//	selector := NewSelector(registry, FallbackFromConfig(cfg.TitleGeneration), logger)
//	result, err := selector.Select(ctx, "nvidia/meta/llama-3.3-70b-instruct")
//	// result.Ref = {nvidia, meta/llama-3.3-70b-instruct}, result.Source = "config"
type Selector struct {
	registry Registry
	fallback []FallbackCandidate
	logger   *logger.Logger
}

// NewSelector creates a selector over the registry with the given fallback chain.
func NewSelector(registry Registry, fallback []FallbackCandidate, logger *logger.Logger) *Selector {
	chain := make([]FallbackCandidate, len(fallback))
	copy(chain, fallback)

	return &Selector{
		registry: registry,
		fallback: chain,
		logger:   logger.WithComponent("model-selector"),
	}
}

// FallbackFromConfig converts the configured fallback chain.
func FallbackFromConfig(cfg *config.TitleGenerationConfig) []FallbackCandidate {
	if cfg == nil {
		return nil
	}

	chain := make([]FallbackCandidate, 0, len(cfg.Fallback))
	for _, candidate := range cfg.Fallback {
		chain = append(chain, FallbackCandidate{
			ProviderID: candidate.Provider,
			ModelID:    candidate.Model,
		})
	}

	return chain
}

// FallbackChain returns a copy of the fallback chain in priority order.
func (s *Selector) FallbackChain() []FallbackCandidate {
	chain := make([]FallbackCandidate, len(s.fallback))
	copy(chain, s.fallback)
	return chain
}

// Select returns a usable model, preferring the configured one.
//
// Parameters:
//   - configured: the configured "provider/model" string, empty if none
//
// Returns:
//   - *SelectionResult: the resolved model and how it was chosen
//   - error: ErrNoUsableModel (wrapped) if nothing could be resolved
func (s *Selector) Select(ctx context.Context, configured string) (*SelectionResult, error) {
	log := s.logger.WithContext(ctx)

	var (
		failedModel *ModelReference
		lastErr     error
	)

	if configured != "" {
		ref, err := ParseModelReference(configured)
		if err != nil {
			log.Warn("ignoring malformed configured model",
				slog.String("model", configured),
				slog.String("error", err.Error()))
		} else {
			model, err := s.registry.Resolve(ctx, ref.ProviderID, ref.ModelID)
			if err == nil {
				metrics.ModelResolutions.WithLabelValues(ref.ProviderID, stageConfig, metrics.OutcomeSuccess).Inc()
				metrics.Selections.WithLabelValues(string(SourceConfig)).Inc()

				log.Debug("using configured model", slog.String("model", ref.String()))

				return &SelectionResult{
					Model:  model,
					Ref:    ref,
					Source: SourceConfig,
					Reason: "configured model",
				}, nil
			}

			metrics.ModelResolutions.WithLabelValues(ref.ProviderID, stageConfig, metrics.OutcomeFailure).Inc()

			log.Warn("configured model unavailable, trying fallback chain",
				slog.String("model", ref.String()),
				slog.String("error", err.Error()))

			failedModel = &ref
			lastErr = err
		}
	}

	authenticated, err := s.registry.ListAuthenticated(ctx)
	if err != nil {
		log.Warn("failed to list authenticated providers", slog.String("error", err.Error()))
		authenticated = nil
	}

	for _, candidate := range s.fallback {
		if _, ok := authenticated[candidate.ProviderID]; !ok {
			metrics.ModelResolutions.WithLabelValues(candidate.ProviderID, stageFallback, metrics.OutcomeSkipped).Inc()
			log.Debug("skipping unauthenticated fallback provider",
				slog.String("provider", candidate.ProviderID))
			continue
		}

		if candidate.ModelID == "" {
			metrics.ModelResolutions.WithLabelValues(candidate.ProviderID, stageFallback, metrics.OutcomeSkipped).Inc()
			log.Debug("skipping fallback provider without a default model",
				slog.String("provider", candidate.ProviderID))
			continue
		}

		ref := ModelReference{ProviderID: candidate.ProviderID, ModelID: candidate.ModelID}

		model, err := s.registry.Resolve(ctx, ref.ProviderID, ref.ModelID)
		if err != nil {
			metrics.ModelResolutions.WithLabelValues(ref.ProviderID, stageFallback, metrics.OutcomeFailure).Inc()
			log.Warn("fallback model unavailable",
				slog.String("model", ref.String()),
				slog.String("error", err.Error()))
			lastErr = err
			continue
		}

		metrics.ModelResolutions.WithLabelValues(ref.ProviderID, stageFallback, metrics.OutcomeSuccess).Inc()
		metrics.Selections.WithLabelValues(string(SourceFallback)).Inc()

		reason := "no model configured; using fallback " + ref.String()
		if failedModel != nil {
			reason = fmt.Sprintf("configured model %s unavailable; using fallback %s", failedModel, ref)
		}

		log.Info("model selected from fallback chain",
			slog.String("model", ref.String()),
			slog.String("reason", reason))

		return &SelectionResult{
			Model:       model,
			Ref:         ref,
			Source:      SourceFallback,
			Reason:      reason,
			FailedModel: failedModel,
		}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %d authenticated providers, last error: %w", ErrNoUsableModel, len(authenticated), lastErr)
	}

	return nil, fmt.Errorf("%w: %d authenticated providers", ErrNoUsableModel, len(authenticated))
}

// IsNoUsableModel reports whether err is the terminal selection failure.
func IsNoUsableModel(err error) bool {
	return errors.Is(err, ErrNoUsableModel)
}
