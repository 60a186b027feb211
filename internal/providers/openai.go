package providers

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/ponderlab/ponder/internal/llm"
)

// OpenAIClient implements llm.Client over the OpenAI-compatible chat API.
// Also serves providers with OpenAI-compatible endpoints via a custom base URL.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed client. baseURL may be empty for
// the default endpoint.
func NewOpenAIClient(apiKey, modelName, baseURL string) (*OpenAIClient, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}, nil
}

// SupportsFunctions implements llm.Client.
func (c *OpenAIClient) SupportsFunctions() bool { return true }

func (c *OpenAIClient) buildRequest(messages []llm.Message) openai.ChatCompletionRequest {
	openaiMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case llm.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		openaiMsgs = append(openaiMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: openaiMsgs,
	}
}

func usageFromResponse(resp openai.ChatCompletionResponse) llm.Usage {
	return llm.Usage{
		Prompt:     resp.Usage.PromptTokens,
		Completion: resp.Usage.CompletionTokens,
		Total:      resp.Usage.TotalTokens,
	}
}

// Complete implements llm.Client.
func (c *OpenAIClient) Complete(ctx context.Context, messages []llm.Message) (llm.Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(messages))
	if err != nil {
		return llm.Completion{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Completion{}, fmt.Errorf("empty response from provider")
	}
	return llm.Completion{
		Content: resp.Choices[0].Message.Content,
		Usage:   usageFromResponse(resp),
	}, nil
}

// CompleteWithFunctions implements llm.Client using the tools API.
func (c *OpenAIClient) CompleteWithFunctions(ctx context.Context, messages []llm.Message, functions []llm.FunctionSpec) (llm.FunctionCompletion, error) {
	req := c.buildRequest(messages)

	var tools []openai.Tool
	for _, fn := range functions {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(fn.JSONSchema), &schemaObj); err != nil {
			return llm.FunctionCompletion{}, fmt.Errorf("invalid function schema JSON for %s: %w", fn.Name, err)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  schemaObj,
			},
		})
	}
	if len(tools) > 0 {
		req.Tools = tools
		// Model decides when to call a tool.
		req.ToolChoice = "auto"
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return llm.FunctionCompletion{}, fmt.Errorf("openai function completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.FunctionCompletion{}, fmt.Errorf("empty response from provider")
	}

	choice := resp.Choices[0]
	out := llm.FunctionCompletion{
		AssistantContent: choice.Message.Content,
		Usage:            usageFromResponse(resp),
	}
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		out.HasFunctionCall = true
		out.FunctionName = tc.Function.Name
		out.ArgumentsJSON = tc.Function.Arguments
	}
	return out, nil
}
