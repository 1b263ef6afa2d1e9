package llm

import (
	"context"
	"fmt"

	"github.com/appforge/appforge/engine/core"
	"github.com/tmc/langchaingo/llms"
)

// LangChainAdapter adapts langchaingo models to the Client interface.
type LangChainAdapter struct {
	model    llms.Model
	provider core.ProviderConfig
}

// NewLangChainAdapter creates a new LangChain adapter
func NewLangChainAdapter(ctx context.Context, config *core.ProviderConfig) (*LangChainAdapter, error) {
	model, err := createModel(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	return &LangChainAdapter{
		model:    model,
		provider: *config,
	}, nil
}

// GenerateContent implements Client
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *Request) (*Response, error) {
	if err := ValidateConversation(req.Messages); err != nil {
		return nil, err
	}
	messages := a.convertMessages(req)
	options := a.buildCallOptions(req)

	response, err := a.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, fmt.Errorf("langchain GenerateContent failed: %w", err)
	}

	return a.convertResponse(response)
}

// Close implements Client
func (a *LangChainAdapter) Close() error {
	return nil
}

// convertMessages converts our Message format to langchain MessageContent.
// Assistant tool calls and tool results are carried as structured parts so
// that multi-turn tool conversations survive the round trip.
func (a *LangChainAdapter) convertMessages(req *Request) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)

	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}

	for i := range req.Messages {
		msg := &req.Messages[i]
		msgType := a.mapMessageRole(msg.Role)

		switch {
		case len(msg.ToolCalls) > 0:
			parts := make([]llms.ContentPart, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, llms.TextContent{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			messages = append(messages, llms.MessageContent{Role: msgType, Parts: parts})
		case len(msg.ToolResults) > 0:
			parts := make([]llms.ContentPart, 0, len(msg.ToolResults))
			for _, tr := range msg.ToolResults {
				content := tr.Content
				if len(tr.JSONContent) > 0 {
					content = string(tr.JSONContent)
				}
				parts = append(parts, llms.ToolCallResponse{
					ToolCallID: tr.ID,
					Name:       tr.Name,
					Content:    content,
				})
			}
			messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeTool, Parts: parts})
		default:
			messages = append(messages, llms.TextParts(msgType, msg.Content))
		}
	}

	return messages
}

// mapMessageRole maps our role to langchain ChatMessageType
func (a *LangChainAdapter) mapMessageRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleUser:
		return llms.ChatMessageTypeHuman
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	case RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}

// buildCallOptions builds langchain call options from our request
func (a *LangChainAdapter) buildCallOptions(req *Request) []llms.CallOption {
	var options []llms.CallOption

	if req.Options.Temperature != nil {
		options = append(options, llms.WithTemperature(*req.Options.Temperature))
	}
	if req.Options.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(int(req.Options.MaxTokens)))
	}
	if len(req.Options.StopWords) > 0 {
		options = append(options, llms.WithStopWords(req.Options.StopWords))
	}

	if len(req.Tools) > 0 {
		tools := a.convertTools(req.Tools)
		options = append(options, llms.WithTools(tools))

		if req.Options.ToolChoice != "" {
			options = append(options, llms.WithToolChoice(req.Options.ToolChoice))
		}
	}

	// JSON mode and tool calling are mutually exclusive on most providers
	if req.Options.UseJSONMode && len(req.Tools) == 0 {
		options = append(options, llms.WithJSONMode())
	}

	return options
}

// convertTools converts our tool definitions to langchain format
func (a *LangChainAdapter) convertTools(tools []ToolDefinition) []llms.Tool {
	llmTools := make([]llms.Tool, 0, len(tools))

	for _, tool := range tools {
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return llmTools
}

// convertResponse converts langchain response to our format
func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	choice := resp.Choices[0]
	response := &Response{
		Content: choice.Content,
	}

	if len(choice.ToolCalls) > 0 {
		response.ToolCalls = make([]ToolCall, 0, len(choice.ToolCalls))
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall != nil {
				response.ToolCalls = append(response.ToolCalls, ToolCall{
					ID:        tc.ID,
					Name:      tc.FunctionCall.Name,
					Arguments: []byte(tc.FunctionCall.Arguments),
				})
			}
		}
	}

	return response, nil
}
