package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ponderlab/ponder/internal/llm"
	"github.com/ponderlab/ponder/internal/reasoning"
	"github.com/ponderlab/ponder/internal/respond"
)

// AgentState is the full history of one agent's decision loop. It is owned by
// exactly one orchestrator invocation per step and persisted between steps.
type AgentState struct {
	AgentID     string      `json:"agent_id"`
	Goal        string      `json:"goal"`
	Turns       []AgentTurn `json:"turns"`
	LastUpdated time.Time   `json:"last_updated"`
}

// NewAgentState creates an empty state for an agent working toward a goal.
func NewAgentState(agentID, goal string) *AgentState {
	return &AgentState{AgentID: agentID, Goal: goal, LastUpdated: time.Now().UTC()}
}

// Append adds a turn and bumps the update timestamp.
func (s *AgentState) Append(turn AgentTurn) {
	s.Turns = append(s.Turns, turn)
	s.LastUpdated = time.Now().UTC()
}

// NextIndex returns the index the next turn will get.
func (s *AgentState) NextIndex() int { return len(s.Turns) }

// TurnID derives a deterministic turn identifier from (agentID, index), so
// repeated steps over the same state are idempotent.
func TurnID(agentID string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", agentID, index)))
	return hex.EncodeToString(sum[:])[:12]
}

// AgentTurn is one orchestrator decision cycle. Message, ToolCall, ToolResult
// and the reasoning attachments are each optional; Error records a failure
// that was recovered at the turn level.
type AgentTurn struct {
	Index      int                   `json:"index"`
	TurnID     string                `json:"turn_id"`
	Message    *respond.ModelMessage `json:"message,omitempty"`
	Chain      *reasoning.Chain      `json:"chain,omitempty"`
	Tree       *reasoning.Tree       `json:"tree,omitempty"`
	ToolCall   *ToolCallRequest      `json:"tool_call,omitempty"`
	ToolResult *ToolExecutionResult  `json:"tool_result,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// ToolCallRequest is the model's request to invoke a tool.
type ToolCallRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
	TurnID string         `json:"turn_id"`
}

// ToolExecutionResult is the immutable record of one tool invocation (or a
// cached reuse of one). TurnID refers to the turn that actually executed the
// tool, which for a cache hit is an earlier turn.
type ToolExecutionResult struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Tool     string         `json:"tool"`
	Params   map[string]any `json:"params,omitempty"`
	TurnID   string         `json:"turn_id"`
	Duration time.Duration  `json:"duration"`
}

// StatusUpdate is one fire-and-forget progress broadcast.
type StatusUpdate struct {
	AgentID     string    `json:"agent_id"`
	TurnIndex   int       `json:"turn_index"`
	Title       string    `json:"status_title"`
	Details     string    `json:"status_details,omitempty"`
	NextStep    string    `json:"next_step_hint,omitempty"`
	ProgressPct *float64  `json:"progress_pct,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// StepOutcome reports what one orchestrator step did.
type StepOutcome struct {
	State    *AgentState
	Turn     *AgentTurn
	Continue bool
	Final    string // populated on finish
	Usage    llm.Usage
	HardStop bool // loop detector hard-stop fired this turn
}

// RunResult aggregates a run-to-completion loop.
type RunResult struct {
	Success bool          `json:"success"`
	Output  string        `json:"output,omitempty"`
	Err     string        `json:"error,omitempty"`
	Turns   int           `json:"turns"`
	Usage   llm.Usage     `json:"usage"`
	Elapsed time.Duration `json:"elapsed"`
}

// PromptInputs is what the external message builder gets to work with.
type PromptInputs struct {
	Goal       string
	Turns      []AgentTurn
	ToolSpecs  []llm.FunctionSpec
	Corrective string // loop-breaker instruction, empty most of the time
	Reasoning  string // conclusion from a reasoning engine, if one ran
}

// MessageBuilder assembles the prompt for one model call. Prompt text itself
// is outside the orchestrator's concern.
type MessageBuilder interface {
	Build(in PromptInputs) []llm.Message
}

// StateStore persists agent state between steps. Load returns (nil, nil) when
// no prior state exists.
type StateStore interface {
	Load(ctx context.Context, agentID string) (*AgentState, error)
	Save(ctx context.Context, agentID string, state *AgentState) error
}
