package llm

import (
	"context"
	"fmt"
	"strings"

	"availability-dashboard/internal/config"
)

const (
	ProviderOpenAI = string(config.ProviderOpenAI)
	ProviderYandex = string(config.ProviderYandex)
	ProviderGemini = string(config.ProviderGemini)
)

// Factory creates LLM clients with consistent logic
type Factory struct {
	OpenaiAPIKey       string
	OpenaiBaseURL      string
	OpenRouterReferrer string
	OpenRouterTitle    string
	YandexOAuthToken   string
	YandexFolderID     string
	GeminiAPIKey       string
	Temperature        float32
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
		GeminiAPIKey:       cfg.GeminiAPIKey,
		Temperature:        cfg.LLMTemperature,
	}
}

func (f *Factory) CreateClient(ctx context.Context, provider, model string) (Client, error) {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		if f.OpenaiAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for provider %s", provider)
		}
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, model, f.Temperature, f.OpenRouterReferrer, f.OpenRouterTitle), nil
	case ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	case ProviderGemini:
		if f.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for provider %s", provider)
		}
		return NewGemini(ctx, f.GeminiAPIKey, model, f.Temperature)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
