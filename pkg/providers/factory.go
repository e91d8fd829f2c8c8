package providers

import (
	"fmt"
	"strings"

	anthropicprovider "github.com/clawlab/tinyclaw/pkg/providers/anthropic"
	openaiprovider "github.com/clawlab/tinyclaw/pkg/providers/openai"
)

// Settings is what the factory needs from config, kept as a plain struct so
// this package does not import pkg/config.
type Settings struct {
	Provider         string
	Model            string
	AnthropicAPIKey  string
	AnthropicAPIBase string
	OpenAIAPIKey     string
	OpenAIAPIBase    string
}

// CreateProvider builds the configured LLM provider and resolves the model
// to use (explicit config model, or the provider default).
func CreateProvider(s Settings) (LLMProvider, string, error) {
	name := strings.ToLower(strings.TrimSpace(s.Provider))
	if name == "" {
		name = "anthropic"
	}

	var provider LLMProvider
	switch name {
	case "anthropic":
		if s.AnthropicAPIKey == "" {
			return nil, "", fmt.Errorf("no API key configured for provider %q", name)
		}
		provider = anthropicprovider.NewProviderWithBaseURL(s.AnthropicAPIKey, s.AnthropicAPIBase)
	case "openai":
		if s.OpenAIAPIKey == "" {
			return nil, "", fmt.Errorf("no API key configured for provider %q", name)
		}
		provider = openaiprovider.NewProviderWithBaseURL(s.OpenAIAPIKey, s.OpenAIAPIBase)
	default:
		return nil, "", fmt.Errorf("unknown provider %q", s.Provider)
	}

	model := strings.TrimSpace(s.Model)
	if model == "" {
		model = provider.GetDefaultModel()
	}
	return provider, model, nil
}
