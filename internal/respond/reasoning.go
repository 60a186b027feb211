package respond

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ChainStepResponse is the parsed shape of one chain-of-thought phase reply.
type ChainStepResponse struct {
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
	Insights   []string `json:"insights,omitempty"`
	Conclusion string   `json:"conclusion,omitempty"`
}

// ParseChainStep repairs and decodes a chain-of-thought phase response.
// Reasoning is required; a missing confidence defaults to 0.5 and any value
// is clamped into [0,1].
func (p *Parser) ParseChainStep(raw string) (*ChainStepResponse, error) {
	repaired := Repair(raw)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(repaired), &probe); err != nil {
		return nil, fmt.Errorf("chain step is not a JSON object after repair: %w", err)
	}
	var out ChainStepResponse
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("decode chain step: %w", err)
	}
	out.Reasoning = strings.TrimSpace(out.Reasoning)
	if out.Reasoning == "" {
		return nil, &ValidationError{Field: "reasoning", Reason: "is required and must be non-empty"}
	}
	if _, ok := probe["confidence"]; !ok {
		out.Confidence = 0.5
	}
	out.Confidence = ClampScore(out.Confidence)
	return &out, nil
}

// ThoughtCandidate is one proposed child thought in a tree expansion reply.
type ThoughtCandidate struct {
	Thought string `json:"thought"`
	Type    string `json:"type,omitempty"`
}

// ParseThoughtCandidates repairs and decodes a tree-expansion response.
// Accepted shapes: {"thoughts":[{"thought":...},...]} or a bare array of
// candidate objects. Empty-thought candidates are filtered out.
func (p *Parser) ParseThoughtCandidates(raw string) ([]ThoughtCandidate, error) {
	repaired := Repair(raw)

	var wrapped struct {
		Thoughts []ThoughtCandidate `json:"thoughts"`
	}
	var candidates []ThoughtCandidate
	if err := json.Unmarshal([]byte(repaired), &wrapped); err == nil && len(wrapped.Thoughts) > 0 {
		candidates = wrapped.Thoughts
	} else if err := json.Unmarshal([]byte(repaired), &candidates); err != nil {
		return nil, fmt.Errorf("decode thought candidates: %w", err)
	}

	out := candidates[:0]
	for _, c := range candidates {
		c.Thought = strings.TrimSpace(c.Thought)
		if c.Thought != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, &ValidationError{Field: "thoughts", Reason: "contains no usable candidates"}
	}
	return out, nil
}

// ParseNodeScore repairs and decodes a node-evaluation response. Accepted
// shapes: {"score":0.8,...} or a bare number. The score is clamped to [0,1].
func (p *Parser) ParseNodeScore(raw string) (float64, error) {
	repaired := Repair(raw)

	var wrapped struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(repaired), &wrapped); err == nil && wrapped.Score != nil {
		return ClampScore(*wrapped.Score), nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(repaired), 64); err == nil {
		return ClampScore(f), nil
	}
	return 0, fmt.Errorf("decode node score: no numeric score in %q", truncate(repaired, 80))
}

// ClampScore forces a score or confidence value into [0,1].
func ClampScore(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
