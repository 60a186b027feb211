package providers

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/ponderlab/ponder/internal/llm"
)

// AnthropicClient implements llm.Client over the Anthropic SDK.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates an Anthropic-backed client.
func NewAnthropicClient(apiKey, modelName string) (*AnthropicClient, error) {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  modelName,
	}, nil
}

// SupportsFunctions implements llm.Client.
func (c *AnthropicClient) SupportsFunctions() bool { return true }

func (c *AnthropicClient) buildRequest(messages []llm.Message) anthropic.MessagesRequest {
	var systemParts []anthropic.MessageSystemPart
	var anthropicMsgs []anthropic.Message

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: msg.Content,
			})
		case llm.RoleUser:
			anthropicMsgs = append(anthropicMsgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		case llm.RoleAssistant:
			anthropicMsgs = append(anthropicMsgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		}
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		Messages:  anthropicMsgs,
		MaxTokens: 4096,
	}
	if len(systemParts) > 0 {
		req.MultiSystem = systemParts
	}
	return req
}

// Complete implements llm.Client.
func (c *AnthropicClient) Complete(ctx context.Context, messages []llm.Message) (llm.Completion, error) {
	resp, err := c.client.CreateMessages(ctx, c.buildRequest(messages))
	if err != nil {
		return llm.Completion{}, fmt.Errorf("anthropic completion: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}
	return llm.Completion{
		Content: text,
		Usage: llm.Usage{
			Prompt:     resp.Usage.InputTokens,
			Completion: resp.Usage.OutputTokens,
			Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// CompleteWithFunctions implements llm.Client using Anthropic tool use.
func (c *AnthropicClient) CompleteWithFunctions(ctx context.Context, messages []llm.Message, functions []llm.FunctionSpec) (llm.FunctionCompletion, error) {
	req := c.buildRequest(messages)

	for _, fn := range functions {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(fn.JSONSchema), &schemaObj); err != nil {
			return llm.FunctionCompletion{}, fmt.Errorf("invalid function schema JSON for %s: %w", fn.Name, err)
		}
		req.Tools = append(req.Tools, anthropic.ToolDefinition{
			Name:        fn.Name,
			Description: fn.Description,
			InputSchema: schemaObj,
		})
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return llm.FunctionCompletion{}, fmt.Errorf("anthropic function completion: %w", err)
	}

	out := llm.FunctionCompletion{
		Usage: llm.Usage{
			Prompt:     resp.Usage.InputTokens,
			Completion: resp.Usage.OutputTokens,
			Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				out.AssistantContent += *block.Text
			}
		case "tool_use":
			if block.MessageContentToolUse != nil && block.Name != "" && !out.HasFunctionCall {
				out.HasFunctionCall = true
				out.FunctionName = block.Name
				out.ArgumentsJSON = string(block.Input)
			}
		}
	}
	return out, nil
}
