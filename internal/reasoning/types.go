package reasoning

import (
	"context"
	"time"
)

// StepType identifies the phase a chain-of-thought step belongs to.
type StepType string

const (
	StepAnalysis   StepType = "analysis"
	StepPlanning   StepType = "planning"
	StepStrategy   StepType = "strategy"
	StepEvaluation StepType = "evaluation"
)

// Step is a single append-only entry in a reasoning chain. Numbers are
// assigned sequentially starting at 1.
type Step struct {
	Number     int      `json:"step_number"`
	Content    string   `json:"content"`
	Type       StepType `json:"step_type"`
	Confidence float64  `json:"confidence"`
}

// Chain records a linear multi-step deliberation toward a goal.
type Chain struct {
	Goal            string  `json:"goal"`
	Steps           []Step  `json:"steps"`
	IsComplete      bool    `json:"is_complete"`
	FinalConclusion string  `json:"final_conclusion,omitempty"`
	FinalConfidence float64 `json:"final_confidence,omitempty"`
}

// NewChain creates an empty chain for the given goal.
func NewChain(goal string) *Chain {
	return &Chain{Goal: goal}
}

// AddStep appends a step, assigning the next sequential number.
func (c *Chain) AddStep(content string, stepType StepType, confidence float64) Step {
	step := Step{
		Number:     len(c.Steps) + 1,
		Content:    content,
		Type:       stepType,
		Confidence: confidence,
	}
	c.Steps = append(c.Steps, step)
	return step
}

// Finalize marks the chain complete with its conclusion.
func (c *Chain) Finalize(conclusion string, confidence float64) {
	c.IsComplete = true
	c.FinalConclusion = conclusion
	c.FinalConfidence = confidence
}

// Result is the common outcome of any reasoning engine run. Engines never
// return a Go error across their public boundary: failures are reported as
// Success=false with Err set.
type Result struct {
	Success    bool           `json:"success"`
	Conclusion string         `json:"conclusion,omitempty"`
	Confidence float64        `json:"confidence"`
	Elapsed    time.Duration  `json:"elapsed"`
	Chain      *Chain         `json:"chain,omitempty"`
	Tree       *Tree          `json:"tree,omitempty"`
	Err        string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// withCallDeadline derives a per-call context so a hung provider cannot
// stall an engine past its configured deadline.
func withCallDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func failedResult(start time.Time, errMsg string) *Result {
	return &Result{
		Success:  false,
		Err:      errMsg,
		Elapsed:  time.Since(start),
		Metadata: map[string]any{},
	}
}
