// internal/llm/providers/mock/mock.go
package mock

import (
	"context"
	"sync"

	"github.com/aulanotes/AulaNotes/internal/llm"
)

func init() {
	llm.Register("mock", func() llm.Provider {
		return &Provider{}
	})
}

// Provider is an offline provider for demos and tests. It replays a queue of
// canned answers, or echoes a fixed response when the queue is empty.
type Provider struct {
	mu        sync.Mutex
	responses []string
	fixed     string
	calls     int
	lastReq   llm.CompletionRequest
}

func (p *Provider) Initialize(config map[string]string) error {
	if fixed, exists := config["response"]; exists {
		p.fixed = fixed
	}
	return nil
}

func (p *Provider) GetName() string {
	return "Mock"
}

func (p *Provider) GetSupportedModels() []string {
	return []string{"mock-small", "mock-large"}
}

func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	return nil
}

func (p *Provider) SetCustomModels(models []string) {}

// QueueResponse appends an answer to the replay queue.
func (p *Provider) QueueResponse(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, text)
}

// Calls reports how many completions were requested.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastRequest returns the most recent request, for prompt assertions.
func (p *Provider) LastRequest() llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReq
}

func (p *Provider) nextText(req llm.CompletionRequest) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastReq = req
	if len(p.responses) > 0 {
		text := p.responses[0]
		p.responses = p.responses[1:]
		return text
	}
	if p.fixed != "" {
		return p.fixed
	}
	return req.Prompt
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := p.nextText(req)
	return &llm.CompletionResponse{
		Text:         text,
		FinishReason: "stop",
		TokensUsed:   len(req.Prompt)/4 + len(text)/4,
		PromptTokens: len(req.Prompt) / 4,
		OutputTokens: len(text) / 4,
		ModelName:    "mock-small",
		ProviderName: p.GetName(),
	}, nil
}

func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamResponse, error) {
	text := p.nextText(req)
	respChan := make(chan llm.StreamResponse)

	go func() {
		defer close(respChan)
		select {
		case <-ctx.Done():
			return
		case respChan <- llm.StreamResponse{Text: text, ModelName: "mock-small"}:
		}
		respChan <- llm.StreamResponse{
			FinishReason: "stop",
			ModelName:    "mock-small",
			Done:         true,
		}
	}()

	return respChan, nil
}
