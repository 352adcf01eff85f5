package gateway

import (
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// ProviderType selects a concrete provider adapter.
type ProviderType string

const (
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeDeepSeek   ProviderType = "deepseek"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeLocal      ProviderType = "local"
)

const (
	deepSeekDefaultEndpoint = "https://api.deepseek.com/v1"
	deepSeekDefaultModel    = "deepseek-chat"
)

// NewProvider builds a provider adapter from its type and configuration.
// All supported providers speak the OpenAI-compatible protocol; the type
// only selects defaults and extra headers.
func NewProvider(providerType ProviderType, config ProviderConfig, log *logger.Logger) (Provider, error) {
	switch providerType {
	case ProviderTypeDeepSeek:
		if config.Endpoint == "" {
			config.Endpoint = deepSeekDefaultEndpoint
		}

		if config.Model == "" {
			config.Model = deepSeekDefaultModel
		}

		return NewOpenAIClient(config, log)
	case ProviderTypeOpenRouter:
		if config.Headers == nil {
			config.Headers = map[string]string{}
		}

		// OpenRouter ranks traffic by referer; identify ourselves.
		if _, ok := config.Headers["HTTP-Referer"]; !ok {
			config.Headers["HTTP-Referer"] = "https://github.com/finsight-lab/finsight"
			config.Headers["X-Title"] = "finsight"
		}

		return NewOpenAIClient(config, log)
	case ProviderTypeOpenAI, ProviderTypeLocal:
		return NewOpenAIClient(config, log)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider type: %s", providerType)
	}
}
