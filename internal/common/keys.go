package common

import (
	"context"
	"fmt"
	"os"
)

// KeyValueGetter is the slice of the KV store needed for key resolution.
type KeyValueGetter interface {
	Get(ctx context.Context, key string) (string, error)
}

// Well-known key names in the KV store.
const (
	KeyLLMAPIKey    = "llm_api_key"
	KeyTavilyAPIKey = "tavily_api_key"
	KeyGitHubToken  = "github_token"
)

// ResolveAPIKey resolves an API key by name with environment variable
// priority. Resolution order: environment variables -> KV store -> config
// fallback. Returns empty string with no error when the key is optional and
// absent everywhere.
func ResolveAPIKey(ctx context.Context, kv KeyValueGetter, name string, configFallback string) string {
	keyToEnvMapping := map[string][]string{
		KeyLLMAPIKey:    {"APTUS_LLM_API_KEY"},
		KeyTavilyAPIKey: {"APTUS_ENRICHMENT_TAVILY_API_KEY", "TAVILY_API_KEY"},
		KeyGitHubToken:  {"APTUS_ENRICHMENT_GITHUB_TOKEN", "GITHUB_TOKEN"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue
			}
		}
	}

	if kv != nil {
		if value, err := kv.Get(ctx, name); err == nil && value != "" {
			return value
		}
	}

	return configFallback
}

// RequireAPIKey resolves a key and errors when it is absent everywhere.
func RequireAPIKey(ctx context.Context, kv KeyValueGetter, name string, configFallback string) (string, error) {
	if value := ResolveAPIKey(ctx, kv, name, configFallback); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("API key %q not found in environment, KV store, or config", name)
}
