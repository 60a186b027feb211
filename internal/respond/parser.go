package respond

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Action enumerates the decisions a model may return for a turn. It is a
// closed set: every consumer switches exhaustively over these values.
type Action string

const (
	ActionPlan     Action = "plan"
	ActionToolCall Action = "tool_call"
	ActionFinish   Action = "finish"
	ActionRetry    Action = "retry"
)

// ParseAction matches s against the known actions, case-insensitively.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionPlan:
		return ActionPlan, true
	case ActionToolCall:
		return ActionToolCall, true
	case ActionFinish:
		return ActionFinish, true
	case ActionRetry:
		return ActionRetry, true
	}
	return "", false
}

// ActionInput carries the per-action payload of a model message. Which fields
// are populated depends on the action: Tool/Params for tool_call, Final for
// finish, Summary for plan.
type ActionInput struct {
	Tool    string         `json:"tool,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Summary string         `json:"summary,omitempty"`
	Final   string         `json:"final,omitempty"`
}

// StatusFields are the optional status-broadcast fields of a model message.
// They are advisory: invalid values are dropped during parsing, never raised.
type StatusFields struct {
	Title       string   `json:"status_title,omitempty"`
	Details     string   `json:"status_details,omitempty"`
	NextStep    string   `json:"next_step_hint,omitempty"`
	ProgressPct *float64 `json:"progress_pct,omitempty"`
}

// ModelMessage is the strict typed shape of one model decision.
type ModelMessage struct {
	Thoughts string
	Action   Action
	Input    ActionInput
	Status   *StatusFields
}

// MarshalJSON emits the wire shape the parser accepts, so that a serialized
// message round-trips through ParseStrict.
func (m ModelMessage) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"thoughts":     m.Thoughts,
		"action":       string(m.Action),
		"action_input": m.Input,
	}
	if m.Status != nil {
		if m.Status.Title != "" {
			out["status_title"] = m.Status.Title
		}
		if m.Status.Details != "" {
			out["status_details"] = m.Status.Details
		}
		if m.Status.NextStep != "" {
			out["next_step_hint"] = m.Status.NextStep
		}
		if m.Status.ProgressPct != nil {
			out["progress_pct"] = *m.Status.ProgressPct
		}
	}
	return json.Marshal(out)
}

// ValidationError reports a required constraint violated by a model response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid model response: field %q %s", e.Field, e.Reason)
}

// Limits caps the free-text fields of a parsed message. Zero values fall back
// to the defaults.
type Limits struct {
	ThoughtsMax      int
	SummaryMax       int
	FinalMax         int
	StatusTitleMax   int
	StatusDetailsMax int
	NextStepMax      int
}

// DefaultLimits returns the standard field caps.
func DefaultLimits() Limits {
	return Limits{
		ThoughtsMax:      4000,
		SummaryMax:       2000,
		FinalMax:         16000,
		StatusTitleMax:   120,
		StatusDetailsMax: 500,
		NextStepMax:      200,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.ThoughtsMax <= 0 {
		l.ThoughtsMax = d.ThoughtsMax
	}
	if l.SummaryMax <= 0 {
		l.SummaryMax = d.SummaryMax
	}
	if l.FinalMax <= 0 {
		l.FinalMax = d.FinalMax
	}
	if l.StatusTitleMax <= 0 {
		l.StatusTitleMax = d.StatusTitleMax
	}
	if l.StatusDetailsMax <= 0 {
		l.StatusDetailsMax = d.StatusDetailsMax
	}
	if l.NextStepMax <= 0 {
		l.NextStepMax = d.NextStepMax
	}
	return l
}

// Parser repairs and strictly validates raw model text.
type Parser struct {
	limits Limits
}

// NewParser creates a parser with the given field caps.
func NewParser(limits Limits) *Parser {
	return &Parser{limits: limits.withDefaults()}
}

type rawMessage struct {
	Thoughts      any            `json:"thoughts"`
	Action        any            `json:"action"`
	ActionInput   map[string]any `json:"action_input"`
	StatusTitle   any            `json:"status_title"`
	StatusDetails any            `json:"status_details"`
	NextStepHint  any            `json:"next_step_hint"`
	ProgressPct   any            `json:"progress_pct"`

	hasActionInput bool
}

// ParseStrict runs the repair pipeline and validates the action-specific
// shape. Violations of required constraints return a *ValidationError naming
// the offending field; optional fields degrade silently.
func (p *Parser) ParseStrict(raw string) (*ModelMessage, error) {
	repaired := Repair(raw)
	if repaired == "" {
		return nil, &ValidationError{Field: "response", Reason: "is empty"}
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(repaired), &probe); err != nil {
		return nil, fmt.Errorf("response is not a JSON object after repair: %w", err)
	}
	var rm rawMessage
	if err := json.Unmarshal([]byte(repaired), &rm); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	_, rm.hasActionInput = probe["action_input"]

	thoughts, ok := rm.Thoughts.(string)
	if !ok {
		return nil, &ValidationError{Field: "thoughts", Reason: "is required and must be a string"}
	}
	thoughts = strings.TrimSpace(thoughts)
	if thoughts == "" {
		return nil, &ValidationError{Field: "thoughts", Reason: "must be non-empty"}
	}
	thoughts = truncate(thoughts, p.limits.ThoughtsMax)

	actionStr, ok := rm.Action.(string)
	if !ok {
		return nil, &ValidationError{Field: "action", Reason: "is required and must be a string"}
	}
	action, ok := ParseAction(actionStr)
	if !ok {
		return nil, &ValidationError{Field: "action", Reason: fmt.Sprintf("%q is not one of plan, tool_call, finish, retry", actionStr)}
	}

	if !rm.hasActionInput {
		return nil, &ValidationError{Field: "action_input", Reason: "is required"}
	}

	input, err := p.parseActionInput(action, rm.ActionInput)
	if err != nil {
		return nil, err
	}

	msg := &ModelMessage{
		Thoughts: thoughts,
		Action:   action,
		Input:    input,
		Status:   p.parseStatus(rm),
	}
	return msg, nil
}

func (p *Parser) parseActionInput(action Action, in map[string]any) (ActionInput, error) {
	var out ActionInput
	if s, ok := in["summary"].(string); ok {
		out.Summary = truncate(s, p.limits.SummaryMax)
	}
	if params, ok := in["params"].(map[string]any); ok {
		out.Params = params
	}
	if s, ok := in["tool"].(string); ok {
		out.Tool = strings.TrimSpace(s)
	}
	if s, ok := in["final"].(string); ok {
		out.Final = truncate(s, p.limits.FinalMax)
	}

	switch action {
	case ActionToolCall:
		if out.Tool == "" {
			return ActionInput{}, &ValidationError{Field: "action_input.tool", Reason: "is required for tool_call"}
		}
		if out.Params == nil {
			out.Params = map[string]any{}
		}
	case ActionFinish:
		if out.Final == "" {
			return ActionInput{}, &ValidationError{Field: "action_input.final", Reason: "is required for finish"}
		}
	case ActionPlan, ActionRetry:
		// No required payload.
	}
	return out, nil
}

// parseStatus extracts the optional status-broadcast fields. Anything with
// the wrong type or out of range is dropped without error.
func (p *Parser) parseStatus(rm rawMessage) *StatusFields {
	var st StatusFields
	populated := false
	if s, ok := rm.StatusTitle.(string); ok && strings.TrimSpace(s) != "" {
		st.Title = truncate(strings.TrimSpace(s), p.limits.StatusTitleMax)
		populated = true
	}
	if s, ok := rm.StatusDetails.(string); ok && strings.TrimSpace(s) != "" {
		st.Details = truncate(strings.TrimSpace(s), p.limits.StatusDetailsMax)
		populated = true
	}
	if s, ok := rm.NextStepHint.(string); ok && strings.TrimSpace(s) != "" {
		st.NextStep = truncate(strings.TrimSpace(s), p.limits.NextStepMax)
		populated = true
	}
	if f, ok := rm.ProgressPct.(float64); ok && f >= 0 && f <= 100 {
		st.ProgressPct = &f
		populated = true
	}
	if !populated {
		return nil
	}
	return &st
}

// truncate cuts s to at most max bytes, backing up to a rune boundary so the
// result stays valid UTF-8.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
