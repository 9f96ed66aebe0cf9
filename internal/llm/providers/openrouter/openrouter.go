// internal/llm/providers/openrouter/openrouter.go
package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aulanotes/AulaNotes/internal/llm"
)

func init() {
	llm.Register("openrouter", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"openai/gpt-4o-mini",
				"anthropic/claude-3.5-sonnet",
				"google/gemma-3-27b-it:free",
				"qwen/qwen3-235b-a22b:free",
				"mistralai/mistral-small-3.1-24b-instruct:free",
			},
			baseURL: "https://openrouter.ai/api/v1",
			appName: "AulaNotes",
		}
	})
}

// Provider talks to OpenRouter's OpenAI-compatible chat completions API.
// OpenRouter fronts many upstream models, which makes it the cheap way to
// experiment with which model structures lecture transcripts best.
type Provider struct {
	apiKey            string
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
	availableModels   []string
	httpReferer       string
	appName           string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("OpenRouter API key not provided")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "google/gemma-3-27b-it:free"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	// OpenRouter attributes traffic by referer and app title
	if httpReferer, exists := config["http_referer"]; exists && httpReferer != "" {
		p.httpReferer = httpReferer
	} else {
		p.httpReferer = "https://aulanotes.example.com"
	}
	if appName, exists := config["app_name"]; exists && appName != "" {
		p.appName = appName
	}

	if customModels, exists := config["custom_models"]; exists && customModels != "" {
		var models []string
		if err := json.Unmarshal([]byte(customModels), &models); err == nil && len(models) > 0 {
			p.availableModels = models
		}
	}

	return nil
}

func (p *Provider) GetName() string {
	return "OpenRouter"
}

func (p *Provider) GetSupportedModels() []string {
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.recommendedModels
}

// FetchAvailableModels queries the models endpoint
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("API key not set, cannot fetch model list")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/models", nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("HTTP-Referer", p.httpReferer)
	req.Header.Set("X-Title", p.appName)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("fetching model list failed (%d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return err
	}

	models := make([]string, 0, len(response.Data))
	for _, model := range response.Data {
		models = append(models, model.ID)
	}
	if len(models) > 0 {
		p.availableModels = models
	}

	return nil
}

// SetCustomModels overrides the model list
func (p *Provider) SetCustomModels(models []string) {
	if len(models) > 0 {
		p.availableModels = models
	}
}

func (p *Provider) buildRequestBody(req llm.CompletionRequest, stream bool) map[string]interface{} {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := []map[string]string{
		{"role": "user", "content": req.Prompt},
	}
	if req.SystemPrompt != "" {
		messages = append([]map[string]string{
			{"role": "system", "content": req.SystemPrompt},
		}, messages...)
	}

	requestBody := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if stream {
		requestBody["stream"] = true
	}
	if req.MaxTokens > 0 {
		requestBody["max_tokens"] = req.MaxTokens
	}
	if req.TopP > 0 {
		requestBody["top_p"] = req.TopP
	}
	if len(req.StopWords) > 0 {
		requestBody["stop"] = req.StopWords
	}
	for k, v := range req.ExtraParams {
		requestBody[k] = v
	}
	return requestBody
}

func (p *Provider) setHeaders(httpReq *http.Request) {
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("HTTP-Referer", p.httpReferer)
	httpReq.Header.Set("X-Title", p.appName)
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	jsonData, err := json.Marshal(p.buildRequestBody(req, false))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.baseURL+"/chat/completions",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("OpenRouter API error (%d): %s", httpResp.StatusCode, string(body))
	}

	var response struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, errors.New("OpenRouter returned no choices")
	}

	return &llm.CompletionResponse{
		Text:         response.Choices[0].Message.Content,
		FinishReason: response.Choices[0].FinishReason,
		TokensUsed:   response.Usage.TotalTokens,
		PromptTokens: response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
		ModelName:    response.Model,
		ProviderName: p.GetName(),
	}, nil
}

// StreamCompletion implements server-sent-event streaming
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	jsonData, err := json.Marshal(p.buildRequestBody(req, true))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.baseURL+"/chat/completions",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, err
	}
	p.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, fmt.Errorf("OpenRouter API error (%d): %s", httpResp.StatusCode, string(body))
	}

	respChan := make(chan llm.StreamResponse)

	go func() {
		defer httpResp.Body.Close()
		defer close(respChan)

		reader := bufio.NewReader(httpResp.Body)
		var modelName string
		var completionSent bool

		for {
			select {
			case <-ctx.Done():
				return
			default:
				line, err := reader.ReadString('\n')
				if err != nil {
					if err != io.EOF {
						respChan <- llm.StreamResponse{
							Done:         true,
							FinishReason: "error",
						}
					}
					return
				}

				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, ":") {
					continue
				}

				line = strings.TrimPrefix(line, "data: ")

				if line == "[DONE]" {
					if !completionSent {
						respChan <- llm.StreamResponse{
							FinishReason: "stop",
							ModelName:    modelName,
							Done:         true,
						}
					}
					return
				}

				var streamResp struct {
					Model   string `json:"model"`
					Choices []struct {
						Delta struct {
							Content string `json:"content"`
						} `json:"delta"`
						FinishReason *string `json:"finish_reason"`
					} `json:"choices"`
				}

				if err := json.Unmarshal([]byte(line), &streamResp); err != nil {
					continue
				}

				if streamResp.Model != "" && modelName == "" {
					modelName = streamResp.Model
				}

				if len(streamResp.Choices) > 0 {
					content := streamResp.Choices[0].Delta.Content
					if content != "" {
						respChan <- llm.StreamResponse{
							Text:      content,
							ModelName: modelName,
							Done:      false,
						}
					}

					if streamResp.Choices[0].FinishReason != nil {
						respChan <- llm.StreamResponse{
							FinishReason: *streamResp.Choices[0].FinishReason,
							ModelName:    modelName,
							Done:         true,
						}
						completionSent = true
					}
				}
			}
		}
	}()

	return respChan, nil
}
