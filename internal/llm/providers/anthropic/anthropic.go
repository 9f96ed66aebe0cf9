// internal/llm/providers/anthropic/anthropic.go
package anthropic

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
	llm.Register("anthropic", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"claude-3-5-sonnet-latest",
				"claude-3-7-sonnet-latest",
				"claude-3-5-haiku-latest",
			},
			baseURL:    "https://api.anthropic.com",
			apiVersion: "2023-06-01",
		}
	})
}

type Provider struct {
	apiKey            string
	baseURL           string
	apiVersion        string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
	availableModels   []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("anthropic api key not provided")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "claude-3-5-sonnet-latest"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	if apiVersion, exists := config["api_version"]; exists && apiVersion != "" {
		p.apiVersion = apiVersion
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
	return "Anthropic Claude"
}

func (p *Provider) GetSupportedModels() []string {
	// prefer the list fetched from the API or set by the user
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.recommendedModels
}

// FetchAvailableModels queries the models available to the account
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("API key not set, cannot fetch model list")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}

	req.Header.Set("X-Api-Key", p.apiKey)
	req.Header.Set("Anthropic-Version", p.apiVersion)

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

	p.availableModels = make([]string, 0, len(response.Data))
	for _, model := range response.Data {
		p.availableModels = append(p.availableModels, model.ID)
	}

	return nil
}

// SetCustomModels overrides the model list
func (p *Provider) SetCustomModels(models []string) {
	if len(models) > 0 {
		p.availableModels = models
	}
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := []map[string]interface{}{
		{"role": "user", "content": req.Prompt},
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	requestBody := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}

	if req.SystemPrompt != "" {
		requestBody["system"] = req.SystemPrompt
	}

	if req.TopP > 0 {
		requestBody["top_p"] = req.TopP
	}

	for k, v := range req.ExtraParams {
		requestBody[k] = v
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.baseURL+"/v1/messages",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", p.apiKey)
	httpReq.Header.Set("Anthropic-Version", p.apiVersion)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("anthropic api error (%d): %s", httpResp.StatusCode, string(body))
	}

	var response struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Model      string `json:"model"`
		StopReason string `json:"stop_reason"`
		Content    []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	var textContent string
	for _, content := range response.Content {
		if content.Type == "text" {
			textContent = content.Text
			break
		}
	}

	if textContent == "" {
		return nil, errors.New("Anthropic returned no text content")
	}

	return &llm.CompletionResponse{
		Text:         textContent,
		FinishReason: response.StopReason,
		TokensUsed:   response.Usage.InputTokens + response.Usage.OutputTokens,
		PromptTokens: response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

// StreamCompletion implements server-sent-event streaming
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := []map[string]interface{}{
		{"role": "user", "content": req.Prompt},
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	requestBody := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
		"stream":      true,
	}

	if req.SystemPrompt != "" {
		requestBody["system"] = req.SystemPrompt
	}

	if req.TopP > 0 {
		requestBody["top_p"] = req.TopP
	}

	for k, v := range req.ExtraParams {
		requestBody[k] = v
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.baseURL+"/v1/messages",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", p.apiKey)
	httpReq.Header.Set("Anthropic-Version", p.apiVersion)
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, fmt.Errorf("anthropic api error (%d): %s", httpResp.StatusCode, string(body))
	}

	respChan := make(chan llm.StreamResponse)

	go func() {
		defer httpResp.Body.Close()
		defer close(respChan)

		reader := bufio.NewReader(httpResp.Body)
		var contentBuffer strings.Builder

		for {
			select {
			case <-ctx.Done():
				return
			default:
				line, err := reader.ReadString('\n')
				if err != nil {
					if err != io.EOF {
						respChan <- llm.StreamResponse{
							Text:         contentBuffer.String(),
							FinishReason: "stop",
							ModelName:    model,
							Done:         true,
						}
					}
					return
				}

				line = strings.TrimSpace(line)
				if line == "" || !strings.HasPrefix(line, "data: ") {
					continue
				}

				line = line[6:]

				var streamResp struct {
					Type       string `json:"type"`
					StopReason string `json:"stop_reason"`
					Delta      struct {
						Type string `json:"type"`
						Text string `json:"text"`
					} `json:"delta"`
				}

				if err := json.Unmarshal([]byte(line), &streamResp); err != nil {
					continue
				}

				if streamResp.Type == "content_block_delta" && streamResp.Delta.Type == "text_delta" {
					content := streamResp.Delta.Text
					if content != "" {
						contentBuffer.WriteString(content)
						respChan <- llm.StreamResponse{
							Text:      content,
							ModelName: model,
							Done:      false,
						}
					}
				}

				if streamResp.Type == "message_stop" {
					respChan <- llm.StreamResponse{
						FinishReason: "stop",
						ModelName:    model,
						Done:         true,
					}
					return
				}
			}
		}
	}()

	return respChan, nil
}
