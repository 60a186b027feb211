package orchestrator

import (
	"strings"
	"testing"
)

func toolTurn(index int, tool string, params map[string]any, success bool) AgentTurn {
	return AgentTurn{
		Index:  index,
		TurnID: TurnID("agent", index),
		ToolCall: &ToolCallRequest{
			Tool:   tool,
			Params: params,
			TurnID: TurnID("agent", index),
		},
		ToolResult: &ToolExecutionResult{
			Success: success,
			Tool:    tool,
			Params:  params,
			TurnID:  TurnID("agent", index),
		},
	}
}

func TestLoopDetectorNoHistory(t *testing.T) {
	d := NewLoopDetector(6, 3, 0)
	v := d.Inspect(nil)
	if v.Repeating || v.HardStop || v.Count != 0 {
		t.Fatalf("empty history verdict = %+v", v)
	}
}

func TestLoopDetectorCountsRepeats(t *testing.T) {
	d := NewLoopDetector(6, 3, 0)
	params := map[string]any{"q": "same"}

	var turns []AgentTurn
	for i := 0; i < 2; i++ {
		turns = append(turns, toolTurn(i, "search", params, true))
	}
	v := d.Inspect(turns)
	if v.Count != 2 || v.Repeating {
		t.Fatalf("2 repeats: verdict = %+v", v)
	}

	turns = append(turns, toolTurn(2, "search", params, true))
	v = d.Inspect(turns)
	if v.Count != 3 || !v.Repeating {
		t.Fatalf("3 repeats: verdict = %+v", v)
	}
	if v.HardStop {
		t.Fatal("hard stop disabled but fired")
	}
}

func TestLoopDetectorOutcomeBreaksSignature(t *testing.T) {
	d := NewLoopDetector(6, 3, 0)
	params := map[string]any{"q": "same"}

	// Same call, but the newest attempt has a different outcome.
	turns := []AgentTurn{
		toolTurn(0, "search", params, true),
		toolTurn(1, "search", params, true),
		toolTurn(2, "search", params, false),
	}
	v := d.Inspect(turns)
	if v.Count != 1 || v.Repeating {
		t.Fatalf("outcome change should reset the count: %+v", v)
	}
}

func TestLoopDetectorWindowLimitsLookback(t *testing.T) {
	d := NewLoopDetector(2, 2, 0)
	params := map[string]any{"q": "same"}

	turns := []AgentTurn{
		toolTurn(0, "search", params, true),
		toolTurn(1, "other", map[string]any{"x": float64(1)}, true),
		toolTurn(2, "search", params, true),
	}
	// Window of 2 sees only turns 2 and 1.
	v := d.Inspect(turns)
	if v.Count != 1 || v.Repeating {
		t.Fatalf("window should hide turn 0: %+v", v)
	}
}

func TestLoopDetectorSkipsNonToolTurns(t *testing.T) {
	d := NewLoopDetector(6, 2, 0)
	params := map[string]any{"q": "same"}

	turns := []AgentTurn{
		toolTurn(0, "search", params, true),
		{Index: 1, TurnID: TurnID("agent", 1)}, // plan turn, no tool call
		toolTurn(2, "search", params, true),
	}
	v := d.Inspect(turns)
	if v.Count != 2 || !v.Repeating {
		t.Fatalf("plan turns must not break the signature window: %+v", v)
	}
}

func TestLoopDetectorHardStop(t *testing.T) {
	d := NewLoopDetector(6, 3, 4)
	params := map[string]any{"q": "same"}

	var turns []AgentTurn
	for i := 0; i < 4; i++ {
		turns = append(turns, toolTurn(i, "search", params, true))
	}
	v := d.Inspect(turns)
	if !v.Repeating || !v.HardStop {
		t.Fatalf("4 repeats with hard stop 4: verdict = %+v", v)
	}
}

func TestLoopDetectorStateless(t *testing.T) {
	d := NewLoopDetector(6, 3, 0)
	params := map[string]any{"q": "same"}
	turns := []AgentTurn{
		toolTurn(0, "search", params, true),
		toolTurn(1, "search", params, true),
		toolTurn(2, "search", params, true),
	}
	first := d.Inspect(turns)
	second := d.Inspect(turns)
	if first != second {
		t.Fatalf("verdicts differ across identical inspections: %+v vs %+v", first, second)
	}
}

func TestLoopDetectorCorrective(t *testing.T) {
	d := NewLoopDetector(6, 3, 0)
	if msg := d.Corrective(LoopVerdict{Count: 2}); msg != "" {
		t.Fatalf("corrective for non-repeating verdict: %q", msg)
	}
	msg := d.Corrective(LoopVerdict{Count: 3, Repeating: true})
	if !strings.Contains(msg, "3 times") {
		t.Fatalf("corrective should cite the repeat count: %q", msg)
	}
}
