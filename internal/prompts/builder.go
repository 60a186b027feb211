// Package prompts assembles the message sequences handed to the model. The
// orchestrator only knows the MessageBuilder boundary; everything about
// prompt wording lives here.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ponderlab/ponder/internal/llm"
	"github.com/ponderlab/ponder/internal/orchestrator"
)

const decisionProtocol = `You are an autonomous agent working toward a goal, one decision at a time.

On every turn respond with exactly one JSON object and nothing else:
{"thoughts": "<your reasoning>", "action": "<plan|tool_call|finish|retry>", "action_input": {...}}

Actions:
- plan: think ahead. action_input may carry {"summary": "<the plan>"}.
- tool_call: invoke a tool. action_input must carry {"tool": "<name>", "params": {...}}.
- finish: you are done. action_input must carry {"final": "<the answer>"}.
- retry: your previous output was unusable; try again.

Optional fields on the same object: "status_title", "status_details",
"next_step_hint", "progress_pct" (0-100).`

// Builder implements the orchestrator's MessageBuilder boundary with a
// JSON decision protocol prompt.
type Builder struct{}

// NewBuilder creates the default message builder.
func NewBuilder() *Builder { return &Builder{} }

// Build assembles a system prompt describing the protocol and tools plus a
// user prompt carrying the goal and the turn history.
func (b *Builder) Build(in orchestrator.PromptInputs) []llm.Message {
	var system strings.Builder
	system.WriteString(decisionProtocol)
	if len(in.ToolSpecs) > 0 {
		system.WriteString("\n\nAvailable tools:\n")
		for _, spec := range in.ToolSpecs {
			fmt.Fprintf(&system, "- %s: %s\n  schema: %s\n", spec.Name, spec.Description, spec.JSONSchema)
		}
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Goal: %s\n", in.Goal)
	if in.Reasoning != "" {
		fmt.Fprintf(&user, "\nDeliberation so far suggests: %s\n", in.Reasoning)
	}
	if len(in.Turns) > 0 {
		user.WriteString("\nHistory:\n")
		for _, turn := range in.Turns {
			writeTurn(&user, turn)
		}
	}
	if in.Corrective != "" {
		fmt.Fprintf(&user, "\nIMPORTANT: %s\n", in.Corrective)
	}
	user.WriteString("\nDecide your next action.")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system.String()},
		{Role: llm.RoleUser, Content: user.String()},
	}
}

func writeTurn(out *strings.Builder, turn orchestrator.AgentTurn) {
	if turn.Error != "" {
		fmt.Fprintf(out, "[turn %d] error: %s\n", turn.Index, turn.Error)
		return
	}
	if turn.Message != nil {
		fmt.Fprintf(out, "[turn %d] %s: %s\n", turn.Index, turn.Message.Action, turn.Message.Thoughts)
	}
	if turn.ToolResult != nil {
		params, _ := json.Marshal(turn.ToolResult.Params)
		if turn.ToolResult.Success {
			fmt.Fprintf(out, "[turn %d] tool %s(%s) -> %s\n", turn.Index, turn.ToolResult.Tool, params, turn.ToolResult.Output)
		} else {
			fmt.Fprintf(out, "[turn %d] tool %s(%s) failed: %s\n", turn.Index, turn.ToolResult.Tool, params, turn.ToolResult.Error)
		}
	}
}
