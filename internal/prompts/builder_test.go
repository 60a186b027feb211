package prompts

import (
	"strings"
	"testing"

	"github.com/ponderlab/ponder/internal/llm"
	"github.com/ponderlab/ponder/internal/orchestrator"
	"github.com/ponderlab/ponder/internal/respond"
)

func TestBuildBasicShape(t *testing.T) {
	b := NewBuilder()
	msgs := b.Build(orchestrator.PromptInputs{
		Goal: "count to three",
		ToolSpecs: []llm.FunctionSpec{
			{Name: "calculator", Description: "do math", JSONSchema: `{"type":"object"}`},
		},
	})

	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want system + user", len(msgs))
	}
	system, user := msgs[0], msgs[1]
	if system.Role != llm.RoleSystem || user.Role != llm.RoleUser {
		t.Fatalf("roles = %s, %s", system.Role, user.Role)
	}
	for _, want := range []string{"tool_call", "finish", "calculator", "do math"} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if !strings.Contains(user.Content, "count to three") {
		t.Errorf("user prompt missing the goal: %q", user.Content)
	}
}

func TestBuildIncludesHistoryAndCorrective(t *testing.T) {
	b := NewBuilder()
	msgs := b.Build(orchestrator.PromptInputs{
		Goal: "goal",
		Turns: []orchestrator.AgentTurn{
			{
				Index: 0,
				Message: &respond.ModelMessage{
					Thoughts: "let me check",
					Action:   respond.ActionToolCall,
				},
				ToolResult: &orchestrator.ToolExecutionResult{
					Success: true,
					Tool:    "echo",
					Params:  map[string]any{"text": "hi"},
					Output:  `{"echo":"hi"}`,
				},
			},
			{Index: 1, Error: "malformed_response: bad json"},
		},
		Corrective: "Stop repeating yourself.",
		Reasoning:  "echo already confirmed the input",
	})

	user := msgs[1].Content
	for _, want := range []string{
		"let me check",
		`tool echo({"text":"hi"}) -> {"echo":"hi"}`,
		"error: malformed_response: bad json",
		"IMPORTANT: Stop repeating yourself.",
		"echo already confirmed the input",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q in:\n%s", want, user)
		}
	}
}

func TestBuildFailedToolResult(t *testing.T) {
	b := NewBuilder()
	msgs := b.Build(orchestrator.PromptInputs{
		Goal: "goal",
		Turns: []orchestrator.AgentTurn{
			{
				Index: 0,
				Message: &respond.ModelMessage{
					Thoughts: "trying",
					Action:   respond.ActionToolCall,
				},
				ToolResult: &orchestrator.ToolExecutionResult{
					Success: false,
					Tool:    "calculator",
					Error:   "division by zero",
				},
			},
		},
	})
	if !strings.Contains(msgs[1].Content, "failed: division by zero") {
		t.Errorf("failed tool call not surfaced:\n%s", msgs[1].Content)
	}
}
