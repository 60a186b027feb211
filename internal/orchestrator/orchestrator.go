package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ponderlab/ponder/internal/llm"
	"github.com/ponderlab/ponder/internal/reasoning"
	"github.com/ponderlab/ponder/internal/respond"
	"github.com/ponderlab/ponder/internal/tools"
)

// Config carries the orchestrator knobs.
type Config struct {
	MaxTurns            int
	ModelCallTimeout    time.Duration
	ToolCallTimeout     time.Duration
	DefaultCacheTTL     time.Duration
	StatusUpdates       bool
	UseFunctionCalling  bool // drive function-capable clients through the native path
	LoopWindow          int
	LoopRepeatThreshold int
	HardStopRepeats     int // 0 keeps the loop breaker soft
}

// DefaultConfig returns working orchestrator settings.
func DefaultConfig() Config {
	return Config{
		MaxTurns:            20,
		ModelCallTimeout:    60 * time.Second,
		ToolCallTimeout:     30 * time.Second,
		DefaultCacheTTL:     5 * time.Minute,
		LoopWindow:          6,
		LoopRepeatThreshold: 3,
	}
}

// Orchestrator drives an agent's decision loop one turn at a time. Concurrent
// steps for the same agent are not serialized internally; callers must not
// overlap steps for one agent.
type Orchestrator struct {
	cfg      Config
	client   llm.Client
	parser   *respond.Parser
	builder  MessageBuilder
	store    StateStore
	registry tools.Registry
	cache    *IdempotencyCache
	loop     *LoopDetector
	reasoner *reasoning.Manager // optional
	status   *statusBroadcaster
	logger   *zap.Logger
}

// New creates an orchestrator over its collaborators. The idempotency cache
// is created per instance.
func New(cfg Config, client llm.Client, parser *respond.Parser, builder MessageBuilder, store StateStore, registry tools.Registry, logger *zap.Logger) *Orchestrator {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultConfig().MaxTurns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		client:   client,
		parser:   parser,
		builder:  builder,
		store:    store,
		registry: registry,
		cache:    NewIdempotencyCache(),
		loop:     NewLoopDetector(cfg.LoopWindow, cfg.LoopRepeatThreshold, cfg.HardStopRepeats),
		status:   newStatusBroadcaster(logger),
		logger:   logger,
	}
}

// WithReasoner attaches a reasoning manager consulted before each model call.
func (o *Orchestrator) WithReasoner(m *reasoning.Manager) *Orchestrator {
	o.reasoner = m
	return o
}

// Subscribe registers a status subscriber. Updates are emitted only when
// status broadcasting is enabled in the config.
func (o *Orchestrator) Subscribe(sub StatusSubscriber) {
	o.status.subscribe(sub)
}

// Cache exposes the instance's idempotency cache, mainly for tests.
func (o *Orchestrator) Cache() *IdempotencyCache { return o.cache }

// Step executes one decision turn for the agent: load state, build the
// prompt, call the model, parse, branch on the action, persist. Every error
// kind except caller cancellation is recovered into the turn; a returned
// error means the step could not make progress at all.
func (o *Orchestrator) Step(ctx context.Context, agentID, goal string) (*StepOutcome, error) {
	state, err := o.store.Load(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("load state for %s: %w", agentID, err)
	}
	if state == nil {
		state = NewAgentState(agentID, goal)
	}

	index := state.NextIndex()
	turn := AgentTurn{Index: index, TurnID: TurnID(agentID, index)}
	outcome := &StepOutcome{State: state, Continue: true}

	verdict := o.loop.Inspect(state.Turns)
	corrective := o.loop.Corrective(verdict)
	if corrective != "" {
		o.logger.Warn("loop detected",
			zap.String("agent_id", agentID),
			zap.Int("repeats", verdict.Count))
	}

	reasoningHint := ""
	if o.reasoner != nil {
		res := o.reasoner.Reason(ctx, goal, corrective)
		turn.Chain = res.Chain
		turn.Tree = res.Tree
		if res.Success {
			reasoningHint = res.Conclusion
		} else {
			o.logger.Warn("reasoning failed", zap.String("error", res.Err))
		}
	}

	msg, usage, err := o.callModel(ctx, state, goal, corrective, reasoningHint)
	outcome.Usage = usage
	if err != nil {
		kind := KindOf(err)
		if kind == KindCancelled {
			return nil, err
		}
		// Transport, deadline and malformed-response failures are recorded
		// on the turn; the run loop moves on to the next turn.
		turn.Error = err.Error()
		o.finishTurn(ctx, state, &turn, outcome)
		return outcome, nil
	}

	turn.Message = msg
	o.broadcastStatus(state, index, msg)

	switch msg.Action {
	case respond.ActionPlan, respond.ActionRetry:
		// Nothing to execute; the appended turn feeds the next prompt.
	case respond.ActionFinish:
		outcome.Continue = false
		outcome.Final = msg.Input.Final
	case respond.ActionToolCall:
		o.executeToolCall(ctx, &turn, msg)
	}

	o.finishTurn(ctx, state, &turn, outcome)

	// A finished turn wins over an inherited loop history: only check for a
	// hard stop when the run would otherwise continue.
	if outcome.Continue {
		if v := o.loop.Inspect(state.Turns); v.HardStop {
			outcome.Continue = false
			outcome.HardStop = true
		}
	}
	return outcome, nil
}

// callModel performs the model call under its own deadline and parses the
// response into a strict ModelMessage, via the native function-calling path
// when the client supports it.
func (o *Orchestrator) callModel(ctx context.Context, state *AgentState, goal, corrective, reasoningHint string) (*respond.ModelMessage, llm.Usage, error) {
	specs := o.registry.Specs()
	msgs := o.builder.Build(PromptInputs{
		Goal:       goal,
		Turns:      state.Turns,
		ToolSpecs:  specs,
		Corrective: corrective,
		Reasoning:  reasoningHint,
	})

	callCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.ModelCallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.ModelCallTimeout)
		defer cancel()
	}

	if o.cfg.UseFunctionCalling && o.client.SupportsFunctions() {
		fc, err := o.client.CompleteWithFunctions(callCtx, msgs, specs)
		if err != nil {
			return nil, llm.Usage{}, WrapError(classifyCallError(ctx, err), err)
		}
		if fc.HasFunctionCall {
			msg, err := functionCallMessage(fc)
			if err != nil {
				return nil, fc.Usage, WrapError(KindMalformedResponse, err)
			}
			return msg, fc.Usage, nil
		}
		msg, err := o.parser.ParseStrict(fc.AssistantContent)
		if err != nil {
			return nil, fc.Usage, WrapError(KindMalformedResponse, err)
		}
		return msg, fc.Usage, nil
	}

	completion, err := o.client.Complete(callCtx, msgs)
	if err != nil {
		return nil, llm.Usage{}, WrapError(classifyCallError(ctx, err), err)
	}
	msg, err := o.parser.ParseStrict(completion.Content)
	if err != nil {
		return nil, completion.Usage, WrapError(KindMalformedResponse, err)
	}
	return msg, completion.Usage, nil
}

// functionCallMessage synthesizes a ModelMessage from a native function call,
// bypassing text repair.
func functionCallMessage(fc llm.FunctionCompletion) (*respond.ModelMessage, error) {
	params := map[string]any{}
	if fc.ArgumentsJSON != "" {
		if err := json.Unmarshal([]byte(fc.ArgumentsJSON), &params); err != nil {
			return nil, fmt.Errorf("function call arguments: %w", err)
		}
	}
	thoughts := fc.AssistantContent
	if thoughts == "" {
		thoughts = fmt.Sprintf("Calling %s.", fc.FunctionName)
	}
	return &respond.ModelMessage{
		Thoughts: thoughts,
		Action:   respond.ActionToolCall,
		Input: respond.ActionInput{
			Tool:   fc.FunctionName,
			Params: params,
		},
	}, nil
}

// executeToolCall resolves, validates, dedups and invokes the requested tool,
// recording the result on the turn. Failures become failed results, not
// errors.
func (o *Orchestrator) executeToolCall(ctx context.Context, turn *AgentTurn, msg *respond.ModelMessage) {
	request := &ToolCallRequest{
		Tool:   msg.Input.Tool,
		Params: msg.Input.Params,
		TurnID: turn.TurnID,
	}
	turn.ToolCall = request

	tool, ok := o.registry[request.Tool]
	if !ok {
		turn.ToolResult = &ToolExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("tool not found: %s (available tools: %v)", request.Tool, o.registry.Names()),
			Tool:    request.Tool,
			Params:  request.Params,
			TurnID:  turn.TurnID,
		}
		return
	}

	if err := tool.ValidateParams(request.Params); err != nil {
		turn.ToolResult = &ToolExecutionResult{
			Success: false,
			Error:   WrapError(KindToolValidation, err).Error(),
			Tool:    request.Tool,
			Params:  request.Params,
			TurnID:  turn.TurnID,
		}
		return
	}

	key := Fingerprint(request.Tool, request.Params)
	if tool.AllowDedupe() {
		if entry, ok := o.cache.Get(key); ok {
			o.logger.Debug("idempotency cache hit",
				zap.String("tool", request.Tool),
				zap.String("turn_id", entry.TurnID))
			cached := entry.Result
			turn.ToolResult = &cached
			return
		}
	}

	result := o.invoke(ctx, tool, request)
	turn.ToolResult = result

	if tool.AllowDedupe() {
		ttl := o.cfg.DefaultCacheTTL
		if tool.DedupeTTL > 0 {
			ttl = tool.DedupeTTL
		}
		o.cache.Put(key, turn.TurnID, *result, ttl)
	}
}

// invoke runs the tool under its deadline and captures success, output and
// duration.
func (o *Orchestrator) invoke(ctx context.Context, tool tools.Tool, request *ToolCallRequest) *ToolExecutionResult {
	timeout := o.cfg.ToolCallTimeout
	if tool.Timeout > 0 {
		timeout = tool.Timeout
	}
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := tool.Fn(callCtx, request.Params)
	duration := time.Since(start)

	result := &ToolExecutionResult{
		Tool:     request.Tool,
		Params:   request.Params,
		TurnID:   request.TurnID,
		Duration: duration,
	}
	if err != nil {
		result.Success = false
		switch {
		case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			result.Error = WrapError(KindDeadlineExceeded, err).Error()
		case classifyCallError(ctx, err) == KindCancelled:
			result.Error = WrapError(KindCancelled, err).Error()
		default:
			result.Error = err.Error()
		}
		return result
	}
	result.Success = true
	result.Output = output
	return result
}

func (o *Orchestrator) finishTurn(ctx context.Context, state *AgentState, turn *AgentTurn, outcome *StepOutcome) {
	state.Append(*turn)
	outcome.Turn = &state.Turns[len(state.Turns)-1]
	if err := o.store.Save(ctx, state.AgentID, state); err != nil {
		// State loss is recoverable on the next load; log rather than fail
		// the turn that already happened.
		o.logger.Error("save state failed",
			zap.String("agent_id", state.AgentID),
			zap.Error(err))
	}
}

func (o *Orchestrator) broadcastStatus(state *AgentState, index int, msg *respond.ModelMessage) {
	if !o.cfg.StatusUpdates || msg.Status == nil {
		return
	}
	o.status.emit(StatusUpdate{
		AgentID:     state.AgentID,
		TurnIndex:   index,
		Title:       msg.Status.Title,
		Details:     msg.Status.Details,
		NextStep:    msg.Status.NextStep,
		ProgressPct: msg.Status.ProgressPct,
		Timestamp:   time.Now().UTC(),
	})
}

// Run executes steps until the model finishes or the turn ceiling is hit.
// Turn-ceiling exhaustion is the only fatal condition; it is reported on the
// result rather than panicking out of the loop.
func (o *Orchestrator) Run(ctx context.Context, agentID, goal string) *RunResult {
	start := time.Now()
	result := &RunResult{}

	for i := 0; i < o.cfg.MaxTurns; i++ {
		outcome, err := o.Step(ctx, agentID, goal)
		if err != nil {
			result.Err = err.Error()
			result.Elapsed = time.Since(start)
			return result
		}
		result.Turns++
		result.Usage.Add(outcome.Usage)

		if outcome.HardStop {
			result.Err = (&MaxTurnsError{AgentID: agentID, Turns: result.Turns, LoopDetected: true}).Error()
			result.Elapsed = time.Since(start)
			return result
		}
		if !outcome.Continue {
			result.Success = true
			result.Output = outcome.Final
			result.Elapsed = time.Since(start)
			return result
		}
	}

	verdict := LoopVerdict{}
	if st, err := o.store.Load(ctx, agentID); err == nil && st != nil {
		verdict = o.loop.Inspect(st.Turns)
	}
	result.Err = (&MaxTurnsError{
		AgentID:      agentID,
		Turns:        result.Turns,
		LoopDetected: verdict.Repeating,
	}).Error()
	result.Elapsed = time.Since(start)
	return result
}
