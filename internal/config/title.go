package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	DefaultMaxTurns           = 10
	DefaultMaxCharsPerMessage = 300
	DefaultUpdateThreshold    = 1
	DefaultNoticeDuration     = 5 * time.Second
)

// ProviderType identifies which client implementation talks to a provider.
type ProviderType string

const (
	// ProviderTypeOpenAI covers OpenAI itself and every OpenAI-compatible endpoint
	// (OpenRouter, Groq, NVIDIA NIM, Gemini's OpenAI endpoint, ...).
	ProviderTypeOpenAI ProviderType = "openai"

	// ProviderTypeAnthropic uses the Anthropic Messages API.
	ProviderTypeAnthropic ProviderType = "anthropic"

	// ProviderTypeOllama talks to a local or remote Ollama server. No API key is needed.
	ProviderTypeOllama ProviderType = "ollama"
)

// Validate performs basic validation of a ProviderType value:
// - Checks whether the value is a known ProviderType
// - Replaces an empty value with the default one (ProviderTypeOpenAI)
func (t *ProviderType) Validate() error {
	switch *t {
	case "":
		*t = ProviderTypeOpenAI
		return nil
	case ProviderTypeOpenAI, ProviderTypeAnthropic, ProviderTypeOllama:
		return nil
	default:
		return fmt.Errorf(
			"bad ProviderType value: must be empty or one of %q, %q, %q",
			string(ProviderTypeOpenAI),
			string(ProviderTypeAnthropic),
			string(ProviderTypeOllama),
		)
	}
}

// unmarshalProviderTypeYAML implements a custom YAML unmarshaler for ProviderType.
// Validates the value after unmarshaling.
func unmarshalProviderTypeYAML(value *ProviderType, data []byte) error {
	var providerType string

	if err := yaml.Unmarshal(data, &providerType); err != nil {
		return err
	}

	*value = ProviderType(providerType)

	return value.Validate()
}

// TitleGenerationConfig contains settings of the session title pipeline.
type TitleGenerationConfig struct {
	// Model is the preferred model in "provider/model" form. The model part may contain
	// further slashes ("nvidia/meta/llama-3.3-70b-instruct"). Empty means "use the
	// fallback chain". A malformed value is not rejected here: selection logs it and
	// falls back.
	Model string `yaml:"model,omitempty"`

	// MaxTurns is the number of most recent turns rendered into the prompt.
	MaxTurns int `yaml:"max_turns,omitempty"`

	// MaxCharsPerMessage bounds every rendered message.
	MaxCharsPerMessage int `yaml:"max_chars_per_message,omitempty"`

	// UpdateThreshold is the number of idle events per title update. 1 updates on every
	// idle event.
	UpdateThreshold int `yaml:"update_threshold,omitempty"`

	// NoticeDuration is how long the "configured model failed" notice stays visible.
	NoticeDuration time.Duration `yaml:"notice_duration,omitempty"`

	// Providers contain configuration of text generation providers.
	Providers []ProviderConfig `yaml:"providers"`

	// Fallback is the priority-ordered list of provider default models tried when the
	// configured model is absent or fails.
	Fallback []FallbackCandidateConfig `yaml:"fallback"`
}

// Validate performs validation of a TitleGenerationConfig value:
// - Fills unset limits with defaults and rejects negative ones
// - Fills an empty provider table (and then an empty fallback chain) with the built-in defaults
// - Checks for duplicate providers and fallback entries referencing unknown providers
func (cfg *TitleGenerationConfig) Validate() error {
	if err := positiveOrDefault("max_turns", &cfg.MaxTurns, DefaultMaxTurns); err != nil {
		return err
	}

	if err := positiveOrDefault("max_chars_per_message", &cfg.MaxCharsPerMessage, DefaultMaxCharsPerMessage); err != nil {
		return err
	}

	if err := positiveOrDefault("update_threshold", &cfg.UpdateThreshold, DefaultUpdateThreshold); err != nil {
		return err
	}

	if cfg.NoticeDuration < 0 {
		return fmt.Errorf("notice_duration must not be negative, got %v", cfg.NoticeDuration)
	}

	if cfg.NoticeDuration == 0 {
		cfg.NoticeDuration = DefaultNoticeDuration
	}

	// A custom provider table comes with its own fallback chain (possibly none).
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
		if len(cfg.Fallback) == 0 {
			cfg.Fallback = DefaultFallback()
		}
	}

	providers := make(map[string]struct{}, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		if _, exists := providers[provider.ID]; exists {
			return fmt.Errorf("duplicate configuration entry for provider %v", provider.ID)
		}

		providers[provider.ID] = struct{}{}
	}

	for _, candidate := range cfg.Fallback {
		if _, exists := providers[candidate.Provider]; !exists {
			return fmt.Errorf("unknown provider %v specified in fallback chain", candidate.Provider)
		}
	}

	return nil
}

// unmarshalTitleGenerationConfig implements a custom YAML unmarshaler for
// TitleGenerationConfig. Validates the value after unmarshaling.
func unmarshalTitleGenerationConfig(value *TitleGenerationConfig, data []byte) error {
	type Aux TitleGenerationConfig
	var aux Aux

	if err := yaml.Unmarshal(data, &aux); err != nil {
		return err
	}

	*value = TitleGenerationConfig(aux)

	return value.Validate()
}

// ProviderConfig contains basic configuration of a text generation provider.
type ProviderConfig struct {
	// ID is the provider identifier used in "provider/model" strings.
	ID string `yaml:"id"`

	// Type selects the client implementation.
	Type ProviderType `yaml:"type,omitempty"`

	// BaseURL overrides the default API endpoint of the provider type.
	// Must be a valid URL if present. Required for Ollama.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyEnvVar is the name of the environment variable that contains the API key.
	APIKeyEnvVar string `yaml:"api_key_env_var,omitempty"`

	// APIKey is the actual API key used for authentication, extracted from the environment
	// using the APIKeyEnvVar value. Explicit config values are ignored.
	APIKey string `yaml:"-"`

	// Description is free-form metadata reported with the authenticated provider set.
	Description string `yaml:"description,omitempty"`

	// Models optionally restricts the model IDs the provider resolves. Empty means any.
	Models []string `yaml:"models,omitempty"`
}

// Validate performs validation of a ProviderConfig value:
// - Checks that the ID is not empty
// - Verifies BaseURL is a valid URL
// - Fetches APIKey value from the environment using APIKeyEnvVar
func (cfg *ProviderConfig) Validate() error {
	if cfg.ID == "" {
		return errors.New("provider id must be specified in provider configuration")
	}

	if err := cfg.Type.Validate(); err != nil {
		return err
	}

	if err := validateURLString(cfg.BaseURL); err != nil {
		return err
	}

	if cfg.APIKeyEnvVar != "" {
		cfg.APIKey = os.Getenv(cfg.APIKeyEnvVar)
	}

	return nil
}

// Authenticated reports whether the provider can be used: API providers need a key,
// Ollama needs an endpoint.
func (cfg *ProviderConfig) Authenticated() bool {
	if cfg.Type == ProviderTypeOllama {
		return cfg.BaseURL != ""
	}
	return cfg.APIKey != ""
}

// unmarshalProviderConfig implements a custom YAML unmarshaler for ProviderConfig.
// Validates the value after unmarshaling.
func unmarshalProviderConfig(value *ProviderConfig, data []byte) error {
	type Aux ProviderConfig
	var aux Aux

	if err := yaml.Unmarshal(data, &aux); err != nil {
		return err
	}

	*value = ProviderConfig(aux)

	return value.Validate()
}

// FallbackCandidateConfig is one entry of the fallback chain.
type FallbackCandidateConfig struct {
	// Provider is the ID of a provider declared in Providers.
	Provider string `yaml:"provider"`

	// Model is the default model of the provider for title generation. Entries without
	// a model are skipped during selection.
	Model string `yaml:"model,omitempty"`
}

// DefaultTitleGenerationConfig returns the settings used when the config file has no
// title_generation section. The result still needs Validate to resolve API keys.
func DefaultTitleGenerationConfig() *TitleGenerationConfig {
	return &TitleGenerationConfig{
		MaxTurns:           DefaultMaxTurns,
		MaxCharsPerMessage: DefaultMaxCharsPerMessage,
		UpdateThreshold:    DefaultUpdateThreshold,
		NoticeDuration:     DefaultNoticeDuration,
		Providers:          DefaultProviders(),
		Fallback:           DefaultFallback(),
	}
}

// DefaultProviders is the built-in provider table.
func DefaultProviders() []ProviderConfig {
	providers := []ProviderConfig{
		{ID: "openai", Type: ProviderTypeOpenAI, APIKeyEnvVar: "OPENAI_API_KEY", Description: "OpenAI"},
		{ID: "anthropic", Type: ProviderTypeAnthropic, APIKeyEnvVar: "ANTHROPIC_API_KEY", Description: "Anthropic"},
		{ID: "google", Type: ProviderTypeOpenAI, BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/", APIKeyEnvVar: "GEMINI_API_KEY", Description: "Google Gemini"},
		{ID: "openrouter", Type: ProviderTypeOpenAI, BaseURL: "https://openrouter.ai/api/v1", APIKeyEnvVar: "OPENROUTER_API_KEY", Description: "OpenRouter"},
		{ID: "groq", Type: ProviderTypeOpenAI, BaseURL: "https://api.groq.com/openai/v1", APIKeyEnvVar: "GROQ_API_KEY", Description: "Groq"},
		{ID: "nvidia", Type: ProviderTypeOpenAI, BaseURL: "https://integrate.api.nvidia.com/v1", APIKeyEnvVar: "NVIDIA_API_KEY", Description: "NVIDIA NIM"},
	}

	for i := range providers {
		providers[i].APIKey = os.Getenv(providers[i].APIKeyEnvVar)
	}

	return providers
}

// DefaultFallback is the built-in priority order of provider default models.
func DefaultFallback() []FallbackCandidateConfig {
	return []FallbackCandidateConfig{
		{Provider: "openai", Model: "gpt-5-mini"},
		{Provider: "anthropic", Model: "claude-haiku-4-5"},
		{Provider: "google", Model: "gemini-2.5-flash"},
		{Provider: "openrouter", Model: "openai/gpt-5-mini"},
		{Provider: "groq", Model: "llama-3.1-8b-instant"},
		{Provider: "nvidia", Model: "meta/llama-3.3-70b-instruct"},
	}
}

func init() {
	// Register unmarshalers of custom types with the YAML library
	yaml.RegisterCustomUnmarshaler[ProviderType](unmarshalProviderTypeYAML)
	yaml.RegisterCustomUnmarshaler[TitleGenerationConfig](unmarshalTitleGenerationConfig)
	yaml.RegisterCustomUnmarshaler[ProviderConfig](unmarshalProviderConfig)
}

func positiveOrDefault(name string, value *int, defaultValue int) error {
	if *value < 0 {
		return fmt.Errorf("%s must be a positive integer, got %d", name, *value)
	}
	if *value == 0 {
		*value = defaultValue
	}
	return nil
}

// validateURLString performs basic sanity checks of a string that should contain a valid URL.
// Empty strings are ignored.
func validateURLString(str string) error {
	if str == "" {
		return nil
	}

	u, err := url.Parse(str)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL does not contain a hostname")
	}

	return nil
}
