package orchestrator

import (
	"fmt"
)

// LoopVerdict is the loop detector's reading of the recent turn history.
type LoopVerdict struct {
	Count     int  // occurrences of the newest signature within the window
	Repeating bool // count reached the repeat threshold
	HardStop  bool // count reached the configured hard-stop threshold
}

// LoopDetector watches for non-converging loops: the same (tool, parameter
// fingerprint, outcome) triple recurring across recent turns. Detection is
// soft by default, meaning the run continues (optionally with a corrective
// instruction) until the turn ceiling, unless a hard-stop threshold is
// configured (HardStop > 0).
type LoopDetector struct {
	Window    int // how many recent tool turns to consider
	Threshold int // repeats within the window that count as looping
	HardStop  int // repeats that abort the run early; 0 disables hard stops
}

// NewLoopDetector creates a detector; zero values get working defaults.
func NewLoopDetector(window, threshold, hardStop int) *LoopDetector {
	if window <= 0 {
		window = 6
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &LoopDetector{Window: window, Threshold: threshold, HardStop: hardStop}
}

// signature folds one executed tool turn into a comparable triple.
func turnSignature(turn AgentTurn) (string, bool) {
	if turn.ToolCall == nil || turn.ToolResult == nil {
		return "", false
	}
	outcome := "error"
	if turn.ToolResult.Success {
		outcome = "ok"
	}
	fp := Fingerprint(turn.ToolCall.Tool, turn.ToolCall.Params)
	return fmt.Sprintf("%s|%s|%s", turn.ToolCall.Tool, fp, outcome), true
}

// Inspect derives the verdict from the turn history. It is stateless: the
// rolling window is recomputed from the persisted turns, so repeated steps
// over the same state reach the same verdict.
func (d *LoopDetector) Inspect(turns []AgentTurn) LoopVerdict {
	var window []string
	for i := len(turns) - 1; i >= 0 && len(window) < d.Window; i-- {
		if sig, ok := turnSignature(turns[i]); ok {
			window = append(window, sig)
		}
	}
	if len(window) == 0 {
		return LoopVerdict{}
	}

	newest := window[0]
	count := 0
	for _, sig := range window {
		if sig == newest {
			count++
		}
	}
	return LoopVerdict{
		Count:     count,
		Repeating: count >= d.Threshold,
		HardStop:  d.HardStop > 0 && count >= d.HardStop,
	}
}

// Corrective returns the instruction injected into the next prompt when the
// detector sees a repeat.
func (d *LoopDetector) Corrective(v LoopVerdict) string {
	if !v.Repeating {
		return ""
	}
	return fmt.Sprintf("You have issued the same tool call with identical parameters %d times with the same outcome. Do not repeat it again: change the parameters, pick a different tool, or finish with your best answer.", v.Count)
}
