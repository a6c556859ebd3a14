package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ModelSeparator separates the provider ID from the model ID in a model string.
const ModelSeparator = "/"

var (
	// ErrMalformedModel is returned for model strings that are not "provider/model".
	ErrMalformedModel = errors.New("malformed model reference")

	// ErrNoUsableModel is returned when neither the configured model nor any fallback
	// candidate could be resolved.
	ErrNoUsableModel = errors.New("no usable model")
)

// ModelReference names a model of a provider.
type ModelReference struct {
	ProviderID string
	ModelID    string
}

// String returns the reference in "provider/model" form.
func (r ModelReference) String() string {
	return r.ProviderID + ModelSeparator + r.ModelID
}

// ParseModelReference splits a configured model string on the first separator.
// Everything after it is the model ID, so namespaced IDs survive:
//
//	"nvidia/meta/llama-3.3-70b-instruct" → {nvidia, meta/llama-3.3-70b-instruct}
//
// Strings with fewer than two segments, or with an empty provider or model, are
// malformed.
func ParseModelReference(s string) (ModelReference, error) {
	parts := strings.Split(strings.TrimSpace(s), ModelSeparator)
	if len(parts) < 2 {
		return ModelReference{}, fmt.Errorf("%w: %q: expected provider%smodel", ErrMalformedModel, s, ModelSeparator)
	}

	ref := ModelReference{
		ProviderID: parts[0],
		ModelID:    strings.Join(parts[1:], ModelSeparator),
	}

	if ref.ProviderID == "" || ref.ModelID == "" {
		return ModelReference{}, fmt.Errorf("%w: %q: empty provider or model", ErrMalformedModel, s)
	}

	return ref, nil
}

// Model is an invocable model handle.
type Model interface {
	// Ref returns the provider and model this handle was resolved for.
	Ref() ModelReference

	// Generate sends a single user-role prompt and returns the generated text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// ProviderInfo describes an authenticated provider.
type ProviderInfo struct {
	ID          string
	Description string
}

// Registry is the capability interface of the provider layer.
type Registry interface {
	// ListAuthenticated returns the providers that currently have authentication
	// available, keyed by provider ID.
	ListAuthenticated(ctx context.Context) (map[string]ProviderInfo, error)

	// Resolve returns an invocable handle for the model or an error.
	Resolve(ctx context.Context, providerID, modelID string) (Model, error)
}

// Source tells where a selected model came from.
type Source string

const (
	SourceConfig   Source = "config"
	SourceFallback Source = "fallback"
)

// SelectionResult is the outcome of a successful selection.
type SelectionResult struct {
	Model  Model
	Ref    ModelReference
	Source Source

	// Reason is a human readable explanation of the choice.
	Reason string

	// FailedModel is set when a configured model was tried and failed before the
	// fallback chain produced Model.
	FailedModel *ModelReference
}

// FallbackCandidate is one entry of the priority-ordered fallback chain.
type FallbackCandidate struct {
	ProviderID string

	// ModelID is the provider's default model for fallback use. Candidates without
	// one are skipped.
	ModelID string
}
