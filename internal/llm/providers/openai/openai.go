// internal/llm/providers/openai/openai.go
package openai

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
	llm.Register("openai", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"gpt-4o",
				"gpt-4o-mini",
				"gpt-4.1",
				"gpt-4.1-mini",
				"o4-mini",
			},
			baseURL: "https://api.openai.com/v1",
		}
	})
}

type Provider struct {
	apiKey            string
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
	availableModels   []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("OpenAI API key not provided")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "gpt-4o-mini"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	// custom model list from config
	if customModels, exists := config["custom_models"]; exists && customModels != "" {
		var models []string
		if err := json.Unmarshal([]byte(customModels), &models); err == nil && len(models) > 0 {
			p.availableModels = models
		}
	}

	return nil
}

func (p *Provider) GetName() string {
	return "OpenAI"
}

func (p *Provider) GetSupportedModels() []string {
	// prefer the list fetched from the API when we have one
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.recommendedModels
}

// FetchAvailableModels queries the models endpoint and keeps the chat models
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("API key not set, cannot fetch model list")
	}

	url := fmt.Sprintf("%s/models", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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
		if strings.HasPrefix(model.ID, "gpt-") || strings.HasPrefix(model.ID, "o") {
			models = append(models, model.ID)
		}
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

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("OpenAI API error (%d): %s", httpResp.StatusCode, string(body))
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
		return nil, errors.New("OpenAI returned no choices")
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

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, fmt.Errorf("OpenAI API error (%d): %s", httpResp.StatusCode, string(body))
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
