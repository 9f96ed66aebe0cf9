// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/aulanotes/AulaNotes/internal/config"
	"github.com/aulanotes/AulaNotes/internal/llm"
	"github.com/aulanotes/AulaNotes/internal/utils"

	// register the built-in providers
	_ "github.com/aulanotes/AulaNotes/internal/llm/providers/anthropic"
	_ "github.com/aulanotes/AulaNotes/internal/llm/providers/openai"
	_ "github.com/aulanotes/AulaNotes/internal/llm/providers/openrouter"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrLLMNotReady = errors.New("llm service not ready")

var providerDefaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-sonnet-latest",
	"mock":      "mock-small",
}

// LLMService provides the unified large-language-model calling interface
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	cache              *LLMCache
	isReady            bool
	readyState         string
	activeDefaultModel string
}

type LLMCache struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	expiration time.Duration
}

type CacheEntry struct {
	Response  interface{}
	CreatedAt time.Time
}

// NewLLMService creates an LLM service from the current configuration
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil // degraded service, not a hard error
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.activeDefaultModel = extractDefaultModel(cfg.LLMConfig)
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewEmptyLLMService creates an unconfigured instance as a fallback
func NewEmptyLLMService() *LLMService {
	service := createBaseLLMService()
	service.providerName = "empty"
	service.readyState = "Standby mode, configure an API key in settings"
	return service
}

// NewLLMServiceWithProvider wraps an already initialized provider. Used by
// the demo binary and by tests.
func NewLLMServiceWithProvider(providerName string, provider llm.Provider) *LLMService {
	service := createBaseLLMService()
	service.provider = provider
	service.providerName = providerName
	service.isReady = true
	service.readyState = "Ready"
	return service
}

func createBaseLLMService() *LLMService {
	return &LLMService{
		provider:           nil,
		providerName:       "",
		isReady:            false,
		readyState:         "Uninitialized",
		activeDefaultModel: "",
		cache: &LLMCache{
			cache:      make(map[string]*CacheEntry),
			mutex:      sync.RWMutex{},
			expiration: 30 * time.Minute,
		},
	}
}

// IsReady reports whether the service can issue completions
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	if s.provider != nil && s.isReady {
		return true
	}

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return false
	}

	if cfg.LLMProvider == "" {
		return false
	}

	if cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		return false
	}

	return true
}

// GetReadyState returns a human-readable readiness description
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	if s.provider != nil && s.isReady {
		return "Ready"
	}

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return "Cannot get configuration"
	}

	if cfg.LLMProvider == "" {
		return "LLM provider not configured"
	}

	if cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		return "API key not configured"
	}

	return "Waiting for initialization"
}

// GetProviderStatus returns readiness plus its description
func (s *LLMService) GetProviderStatus() (bool, string) {
	if s == nil {
		return false, "LLM service instance not initialized"
	}
	if s.IsReady() {
		return true, "Ready"
	}
	return false, s.GetReadyState()
}

// UpdateProvider swaps the active provider
func (s *LLMService) UpdateProvider(providerName string, config map[string]string) error {
	provider, err := llm.GetProvider(providerName, config)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = extractDefaultModel(config)
	s.isReady = true
	s.readyState = "Ready"

	// drop the cache, cached answers belong to the old provider
	s.cache = &LLMCache{
		cache:      make(map[string]*CacheEntry),
		mutex:      sync.RWMutex{},
		expiration: 30 * time.Minute,
	}

	return nil
}

// GetProvider returns the active provider
func (s *LLMService) GetProvider() llm.Provider {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider
}

// GetProviderName returns the active provider name
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

func (s *LLMService) generateCacheKey(prompt, systemPrompt, model string) string {
	s.providerMutex.RLock()
	providerName := s.providerName
	s.providerMutex.RUnlock()

	hashInput := fmt.Sprintf("%s:::%s:::%s:::%s",
		prompt, systemPrompt, model, providerName)
	h := md5.New()
	h.Write([]byte(hashInput))
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *LLMCache) getFromCache(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[key]
	if !exists {
		return nil, false
	}

	if time.Since(entry.CreatedAt) > c.expiration {
		return nil, false
	}

	return entry.Response, true
}

func (c *LLMCache) saveToCache(key string, response interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[key] = &CacheEntry{
		Response:  response,
		CreatedAt: time.Now(),
	}

	if len(c.cache) > 1000 {
		c.cleanupOldest(100)
	}
}

func (c *LLMCache) cleanupOldest(count int) {
	type keyAge struct {
		key string
		age time.Time
	}

	entries := make([]keyAge, 0, len(c.cache))
	for k, v := range c.cache {
		entries = append(entries, keyAge{k, v.CreatedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].age.Before(entries[j].age)
	})

	maxToDelete := min(count, len(entries))
	for i := 0; i < maxToDelete; i++ {
		delete(c.cache, entries[i].key)
	}
}

// jsonModeProviders lists providers whose chat API accepts the OpenAI-style
// response_format parameter. Anthropic rejects unknown body fields, so it is
// deliberately absent.
var jsonModeProviders = map[string]bool{
	"openai":     true,
	"openrouter": true,
	"mock":       true,
}

// CompleteRaw issues a plain completion and returns the raw answer text.
// Structuring is done by the caller, which owns the extraction policy.
func (s *LLMService) CompleteRaw(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return s.complete(ctx, prompt, systemPrompt, false)
}

// CompleteJSON issues a completion with the provider's JSON-only answer mode
// switched on where the provider supports one. The answer is still treated
// as untrusted text by callers.
func (s *LLMService) CompleteJSON(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return s.complete(ctx, prompt, systemPrompt, true)
}

func (s *LLMService) complete(ctx context.Context, prompt, systemPrompt string, jsonMode bool) (string, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		state := s.readyState
		s.providerMutex.RUnlock()
		return "", fmt.Errorf("%w: %s", ErrLLMNotReady, state)
	}
	provider := s.provider
	providerName := s.providerName
	s.providerMutex.RUnlock()

	model := s.resolveModel("")
	cacheKey := s.generateCacheKey(prompt, systemPrompt, model)

	if s.cache != nil {
		if cached, found := s.cache.getFromCache(cacheKey); found {
			if text, ok := cached.(string); ok {
				utils.GetLogger().Info("LLM cache hit", map[string]interface{}{"cache_key_prefix": cacheKey[:8]})
				return text, nil
			}
		}
	}

	req := llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  0.3,
		Model:        model,
	}
	if jsonMode && jsonModeProviders[providerName] {
		req.ExtraParams = map[string]interface{}{
			"response_format": map[string]string{"type": "json_object"},
		}
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		return "", err
	}
	utils.NewAPIMetrics().RecordLLMRequest(provider.GetName(), resp.ModelName, resp.TokensUsed, time.Since(start))

	if s.cache != nil {
		s.cache.saveToCache(cacheKey, resp.Text)
	}

	return resp.Text, nil
}

// jsonNoiseReplacer strips common noise, fullwidth symbols and Markdown marks
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\uFEFF", "",
	" ", " ",
	" ", "\n",
	" ", "\n",
)

var structuralPunctuationMap = map[rune]rune{
	'：': ':',
	'﹕': ':',
	'，': ',',
	'﹐': ',',
	'；': ';',
	'﹔': ';',
	'【': '[',
	'】': ']',
	'［': '[',
	'］': ']',
	'｛': '{',
	'｝': '}',
	'（': '(',
	'）': ')',
}

var quotePairs = map[rune]rune{
	'"': '"',
	'“': '”',
	'”': '”',
	'„': '”',
	'‟': '”',
	'「': '」',
	'」': '」',
	'『': '』',
	'﹁': '﹂',
	'﹂': '﹂',
}

func normalizeJSONStructure(s string) string {
	if s == "" {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	inString := false
	escaped := false
	currentClosing := '"'

	for _, r := range s {
		if inString {
			if !escaped && r == '\\' {
				escaped = true
				builder.WriteRune(r)
				continue
			}

			if escaped {
				escaped = false
				builder.WriteRune(r)
				continue
			}

			if r == currentClosing || r == '"' {
				inString = false
				currentClosing = '"'
				builder.WriteRune('"')
				continue
			}

			builder.WriteRune(r)
			continue
		}

		if replacement, ok := structuralPunctuationMap[r]; ok {
			r = replacement
		} else if closing, ok := quotePairs[r]; ok {
			inString = true
			currentClosing = closing
			builder.WriteRune('"')
			continue
		} else if r == '"' {
			inString = true
			currentClosing = '"'
			builder.WriteRune(r)
			continue
		} else if r > unicode.MaxASCII && !unicode.IsSpace(r) {
			// drop stray Unicode characters appearing outside strings
			continue
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// remove zero-width characters and control characters except newline/tab
	s = strings.Map(func(r rune) rune {
		switch r {
		case '​', '‌', '‍', '⁠', '\uFEFF':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// find the first { or [ and drop everything before it
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}

	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	s = normalizeJSONStructure(s)

	isArray := len(s) > 0 && s[0] == '['

	// simple bracket balance matching
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	// no matching closer found, fall back to the last one
	end := -1
	if isArray {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}

	if end != -1 {
		return strings.TrimSpace(s[:end+1])
	}

	return strings.TrimSpace(s)
}

// CleanLLMJSONResponse repairs common JSON noise in a model answer: stray
// fences, zero-width characters, fullwidth punctuation outside strings, and
// trailing prose after the closing brace. The extraction policy in the
// structuring adapter uses it as a second parse attempt per candidate.
func CleanLLMJSONResponse(raw string) string {
	return cleanJSONString(raw)
}

// GetDefaultModel returns the model the service would use by default
func (s *LLMService) GetDefaultModel() string {
	return s.resolveModel("")
}

// resolveModel decides which model a request should use
func (s *LLMService) resolveModel(requestedModel string) string {
	if trimmed := strings.TrimSpace(requestedModel); trimmed != "" {
		return trimmed
	}

	s.providerMutex.RLock()
	provider := s.provider
	providerName := s.providerName
	activeDefault := s.activeDefaultModel
	s.providerMutex.RUnlock()

	if activeDefault != "" {
		return activeDefault
	}

	if provider != nil {
		if models := provider.GetSupportedModels(); len(models) > 0 {
			if model := strings.TrimSpace(models[0]); model != "" {
				return model
			}
		}
	}

	if cfg := config.GetCurrentConfig(); cfg != nil && cfg.LLMProvider == providerName {
		if cfg.LLMConfig != nil {
			if model := strings.TrimSpace(cfg.LLMConfig["default_model"]); model != "" {
				return model
			}
			if model := strings.TrimSpace(cfg.LLMConfig["model"]); model != "" {
				return model
			}
		}
	}

	if model, exists := providerDefaultModels[providerName]; exists {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			return trimmed
		}
	}

	return "gpt-4o-mini"
}

func extractDefaultModel(cfg map[string]string) string {
	if cfg == nil {
		return ""
	}
	if model := strings.TrimSpace(cfg["default_model"]); model != "" {
		return model
	}
	if model := strings.TrimSpace(cfg["model"]); model != "" {
		return model
	}
	return ""
}

