package title_generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eternisai/session-titler/internal/logger"
	"github.com/eternisai/session-titler/internal/routing"
)

const promptTemplate = `Generate a short title for the conversation below.

Rules:
- at most 50 characters, single line
- describe the user's goal or task, not the assistant's answer
- use the language of the user's messages
- no quotes, no trailing punctuation, no explanations
- output only the title

Conversation:

%s`

// BuildPrompt wraps the formatted conversation in the title instruction.
func BuildPrompt(formatted string) string {
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(formatted))
}

// Generation is a sanitized title together with the selection that produced it.
type Generation struct {
	Title     string
	Raw       string
	Selection *routing.SelectionResult
}

// Generator selects a model and turns formatted context into a title.
type Generator struct {
	selector *routing.Selector
	model    string
	logger   *logger.Logger
}

// NewGenerator creates a generator preferring the configured "provider/model" string.
func NewGenerator(selector *routing.Selector, model string, logger *logger.Logger) *Generator {
	return &Generator{
		selector: selector,
		model:    strings.TrimSpace(model),
		logger:   logger.WithComponent("title-generator"),
	}
}

// Generate runs selection and a single generation call. The selection error is
// returned unwrapped so callers can match routing.ErrNoUsableModel.
func (g *Generator) Generate(ctx context.Context, formatted string) (*Generation, error) {
	selection, err := g.selector.Select(ctx, g.model)
	if err != nil {
		return nil, err
	}

	log := g.logger.WithContext(ctx)

	log.Debug("generating title",
		slog.String("model", selection.Ref.String()),
		slog.String("source", string(selection.Source)))

	raw, err := selection.Model.Generate(ctx, BuildPrompt(formatted))
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	return &Generation{
		Title:     Sanitize(raw),
		Raw:       raw,
		Selection: selection,
	}, nil
}
