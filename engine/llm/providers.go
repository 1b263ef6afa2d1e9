package llm

import (
	"context"
	"fmt"

	"github.com/appforge/appforge/engine/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// createModel creates a langchaingo model for the provider configuration.
func createModel(ctx context.Context, provider *core.ProviderConfig) (llms.Model, error) {
	switch provider.Provider {
	case core.ProviderOpenAI:
		return createOpenAIModel(provider)
	case core.ProviderAnthropic:
		return createAnthropicModel(provider)
	case core.ProviderGroq:
		return createGroqModel(provider)
	case core.ProviderOllama:
		return createOllamaModel(provider)
	case core.ProviderGoogle:
		return createGoogleModel(ctx, provider)
	case core.ProviderMock:
		return NewMockModel(provider.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider.Provider)
	}
}

func createOpenAIModel(p *core.ProviderConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, openai.WithToken(p.APIKey))
	}
	if p.APIURL != "" {
		opts = append(opts, openai.WithBaseURL(p.APIURL))
	}
	return openai.New(opts...)
}

func createAnthropicModel(p *core.ProviderConfig) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, anthropic.WithToken(p.APIKey))
	}
	if p.APIURL != "" {
		opts = append(opts, anthropic.WithBaseURL(p.APIURL))
	}
	return anthropic.New(opts...)
}

// Groq exposes an OpenAI-compatible API, so it reuses the OpenAI client
// with a different base URL.
func createGroqModel(p *core.ProviderConfig) (llms.Model, error) {
	baseURL := "https://api.groq.com/openai/v1"
	if p.APIURL != "" {
		baseURL = p.APIURL
	}
	opts := []openai.Option{
		openai.WithModel(p.Model),
		openai.WithBaseURL(baseURL),
	}
	if p.APIKey != "" {
		opts = append(opts, openai.WithToken(p.APIKey))
	}
	return openai.New(opts...)
}

func createOllamaModel(p *core.ProviderConfig) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(p.Model),
	}
	if p.APIURL != "" {
		opts = append(opts, ollama.WithServerURL(p.APIURL))
	}
	return ollama.New(opts...)
}

func createGoogleModel(ctx context.Context, p *core.ProviderConfig) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithDefaultModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, googleai.WithAPIKey(p.APIKey))
	}
	if p.APIURL != "" {
		return nil, fmt.Errorf("googleai does not support custom API URL")
	}
	return googleai.New(ctx, opts...)
}

// MockModel is a mock implementation of llms.Model for testing
type MockModel struct {
	model string
}

// NewMockModel creates a new mock model
func NewMockModel(model string) *MockModel {
	return &MockModel{model: model}
}

// GenerateContent implements llms.Model with predictable responses
func (m *MockModel) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var prompt string
	for _, message := range messages {
		if message.Role == llms.ChatMessageTypeHuman || message.Role == llms.ChatMessageTypeSystem {
			for _, part := range message.Parts {
				if textPart, ok := part.(llms.TextContent); ok {
					prompt += textPart.Text + " "
				}
			}
		}
	}

	responseText := "Mock response: task completed successfully"
	if prompt != "" {
		responseText = fmt.Sprintf("Mock response for: %s", prompt)
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{Content: responseText},
		},
	}, nil
}

// Call implements the legacy Call interface
func (m *MockModel) Call(_ context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return fmt.Sprintf("Mock response for: %s", prompt), nil
}
