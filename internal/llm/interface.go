// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
	"sort"
)

var ErrUnknownProvider = errors.New("unknown AI provider")

// CompletionRequest normalizes the request parameters across providers
type CompletionRequest struct {
	Prompt       string                 `json:"prompt"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	MaxTokens    int                    `json:"max_tokens,omitempty"`
	Temperature  float32                `json:"temperature,omitempty"`
	TopP         float32                `json:"top_p,omitempty"`
	Model        string                 `json:"model,omitempty"`
	StopWords    []string               `json:"stop_words,omitempty"`
	Stream       bool                   `json:"stream,omitempty"`
	ExtraParams  map[string]interface{} `json:"extra_params,omitempty"`
}

// CompletionResponse normalizes the response structure across providers
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// StreamResponse is one chunk of a streamed completion
type StreamResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	Done         bool   `json:"done"`
}

// Provider is the interface every LLM provider must implement
type Provider interface {
	// Initialize the provider with its configuration
	Initialize(config map[string]string) error

	// GetName returns the provider name
	GetName() string

	// GetSupportedModels returns the supported model list
	GetSupportedModels() []string

	// CompleteText generates a text completion
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion generates a streamed completion
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan StreamResponse, error)

	// FetchAvailableModels refreshes the model list from the provider API
	// (not every provider supports this)
	FetchAvailableModels(ctx context.Context) error

	// SetCustomModels overrides the model list
	SetCustomModels(models []string)
}

// ProviderFactory builds a fresh, uninitialized provider instance
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register registers a provider factory under its name
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider creates and initializes the named provider
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	err := provider.Initialize(config)
	return provider, err
}

// ListProviders returns all registered provider names
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSupportedModelsForProvider returns the model list of a registered
// provider, or an empty list for an unknown name
func GetSupportedModelsForProvider(name string) []string {
	factory, exists := providers[name]
	if !exists {
		return []string{}
	}

	provider := factory()
	return provider.GetSupportedModels()
}
