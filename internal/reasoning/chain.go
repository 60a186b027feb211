package reasoning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ponderlab/ponder/internal/llm"
	"github.com/ponderlab/ponder/internal/respond"
)

// ChainConfig controls the chain-of-thought engine.
type ChainConfig struct {
	MaxSteps         int           // step ceiling across all phases
	ModelCallTimeout time.Duration // deadline for each phase's model call
}

// DefaultChainConfig returns the standard chain settings.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{MaxSteps: 8, ModelCallTimeout: 60 * time.Second}
}

// ChainEngine performs linear multi-phase deliberation: one model call per
// phase (analysis, planning, strategy, evaluation), each parsed into a step.
type ChainEngine struct {
	client llm.Client
	parser *respond.Parser
	cfg    ChainConfig
	logger *zap.Logger
}

// NewChainEngine creates a chain-of-thought engine.
func NewChainEngine(client llm.Client, parser *respond.Parser, cfg ChainConfig, logger *zap.Logger) *ChainEngine {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultChainConfig().MaxSteps
	}
	if cfg.ModelCallTimeout <= 0 {
		cfg.ModelCallTimeout = DefaultChainConfig().ModelCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainEngine{client: client, parser: parser, cfg: cfg, logger: logger}
}

var chainPhases = []StepType{StepAnalysis, StepPlanning, StepStrategy, StepEvaluation}

// Think runs the phase sequence for the goal and returns a result carrying
// the chain built so far. It never returns an error: every failure is folded
// into the result.
func (e *ChainEngine) Think(ctx context.Context, goal, contextInfo string) (result *Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("chain engine panic", zap.Any("panic", r))
			result = failedResult(start, fmt.Sprintf("chain engine panic: %v", r))
		}
	}()

	chain := NewChain(goal)
	var conclusion string
	var confidence float64

	for _, phase := range chainPhases {
		if len(chain.Steps) >= e.cfg.MaxSteps {
			break
		}

		callCtx, cancel := withCallDeadline(ctx, e.cfg.ModelCallTimeout)
		completion, err := e.client.Complete(callCtx, e.phaseMessages(phase, goal, contextInfo, chain))
		cancel()
		if err != nil {
			res := failedResult(start, fmt.Sprintf("phase %s: model call failed: %v", phase, err))
			res.Chain = chain
			return res
		}

		step, err := e.parser.ParseChainStep(completion.Content)
		if err != nil {
			res := failedResult(start, fmt.Sprintf("phase %s: malformed response: %v", phase, err))
			res.Chain = chain
			return res
		}

		chain.AddStep(step.Reasoning, phase, step.Confidence)
		confidence = step.Confidence
		if step.Conclusion != "" {
			conclusion = step.Conclusion
		}
		e.logger.Debug("chain step",
			zap.String("phase", string(phase)),
			zap.Float64("confidence", step.Confidence))

		if phase == StepEvaluation && conclusion != "" {
			break
		}
	}

	if conclusion == "" && len(chain.Steps) > 0 {
		conclusion = chain.Steps[len(chain.Steps)-1].Content
	}
	chain.Finalize(conclusion, confidence)

	return &Result{
		Success:    true,
		Conclusion: conclusion,
		Confidence: confidence,
		Elapsed:    time.Since(start),
		Chain:      chain,
		Metadata: map[string]any{
			"engine": "chain_of_thought",
			"steps":  len(chain.Steps),
		},
	}
}

func (e *ChainEngine) phaseMessages(phase StepType, goal, contextInfo string, chain *Chain) []llm.Message {
	var prior strings.Builder
	for _, s := range chain.Steps {
		fmt.Fprintf(&prior, "%d. [%s] %s\n", s.Number, s.Type, s.Content)
	}

	var instruction string
	switch phase {
	case StepAnalysis:
		instruction = "Analyze the goal. What is being asked, what is known, and what constraints apply?"
	case StepPlanning:
		instruction = "Lay out a concrete plan of attack based on your analysis."
	case StepStrategy:
		instruction = "Refine the plan into the single most promising strategy and its key risks."
	case StepEvaluation:
		instruction = "Evaluate the strategy and state your conclusion in the \"conclusion\" field."
	}

	system := `You are a careful reasoning assistant. Respond with a single JSON object:
{"reasoning": "<your reasoning for this phase>", "confidence": <0..1>, "insights": ["..."], "conclusion": "<only when concluding>"}`

	user := fmt.Sprintf("Goal: %s\n", goal)
	if contextInfo != "" {
		user += fmt.Sprintf("Context: %s\n", contextInfo)
	}
	if prior.Len() > 0 {
		user += fmt.Sprintf("Prior steps:\n%s", prior.String())
	}
	user += fmt.Sprintf("\nPhase: %s. %s", phase, instruction)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
}
