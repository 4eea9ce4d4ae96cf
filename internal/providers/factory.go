// Package providers adapts third-party inference SDKs to the engine.LLMClient
// interface and normalizes their error metadata for retry classification.
package providers

import (
	"fmt"
	"os"

	"github.com/buildmedic/buildmedic/internal/config"
	"github.com/buildmedic/buildmedic/internal/engine"
)

// NewLLMClient creates an engine.LLMClient from the saved configuration and
// the environment. Environment variables win over the config file. The
// returned string is the model name the loop should pass to Chat.
func NewLLMClient(cfg *config.Config) (engine.LLMClient, string, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}

	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = cfg.LLMProvider
	}
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		apiKey := firstNonEmpty(os.Getenv("OPENAI_API_KEY"), cfg.APIKey)
		if apiKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		modelName := firstNonEmpty(os.Getenv("OPENAI_MODEL"), cfg.Model, "gpt-4o-mini")
		baseURL := firstNonEmpty(os.Getenv("OPENAI_BASE_URL"), cfg.BaseURL)

		client, err := NewOpenAIClient(apiKey, modelName, baseURL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return client, modelName, nil

	case "anthropic":
		apiKey := firstNonEmpty(os.Getenv("ANTHROPIC_API_KEY"), cfg.APIKey)
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		modelName := firstNonEmpty(os.Getenv("ANTHROPIC_MODEL"), cfg.Model, "claude-3-5-sonnet-20241022")

		client, err := NewAnthropicClient(apiKey, modelName)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		return client, modelName, nil

	case "kimi":
		// OpenAI-compatible API via BytePlus ModelArk.
		apiKey := firstNonEmpty(os.Getenv("KIMI_API_KEY"), cfg.APIKey)
		if apiKey == "" {
			return nil, "", fmt.Errorf("KIMI_API_KEY not set")
		}
		modelName := firstNonEmpty(os.Getenv("KIMI_MODEL"), cfg.Model, "kimi-k2-250711")
		baseURL := firstNonEmpty(os.Getenv("KIMI_BASE_URL"), cfg.BaseURL,
			"https://ark.ap-southeast.bytepluses.com/api/v3")

		client, err := NewOpenAIClient(apiKey, modelName, baseURL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create Kimi client: %w", err)
		}
		return client, modelName, nil

	case "deepseek":
		apiKey := firstNonEmpty(os.Getenv("DEEPSEEK_API_KEY"), cfg.APIKey)
		if apiKey == "" {
			return nil, "", fmt.Errorf("DEEPSEEK_API_KEY not set")
		}
		modelName := firstNonEmpty(os.Getenv("DEEPSEEK_MODEL"), cfg.Model, "deepseek-chat")

		client, err := NewOpenAIClient(apiKey, modelName, "https://api.deepseek.com/v1")
		if err != nil {
			return nil, "", fmt.Errorf("failed to create DeepSeek client: %w", err)
		}
		return client, modelName, nil

	case "ollama":
		// Local server, OpenAI-compatible; the API key is a placeholder.
		baseURL := firstNonEmpty(os.Getenv("OLLAMA_BASE_URL"), cfg.BaseURL, "http://localhost:11434/v1")
		modelName := firstNonEmpty(os.Getenv("OLLAMA_MODEL"), cfg.Model, "llama3.1")
		apiKey := firstNonEmpty(os.Getenv("OLLAMA_API_KEY"), "ollama")

		client, err := NewOpenAIClient(apiKey, modelName, baseURL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return client, modelName, nil

	default:
		return nil, "", fmt.Errorf("unknown LLM_PROVIDER: %s (supported: openai, anthropic, kimi, deepseek, ollama)", provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
