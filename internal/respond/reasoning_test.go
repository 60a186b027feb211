package respond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChainStep(t *testing.T) {
	p := NewParser(Limits{})

	step, err := p.ParseChainStep(`{"reasoning": "the problem splits in two", "confidence": 0.8, "insights": ["a", "b"]}`)
	require.NoError(t, err)
	assert.Equal(t, "the problem splits in two", step.Reasoning)
	assert.Equal(t, 0.8, step.Confidence)
	assert.Equal(t, []string{"a", "b"}, step.Insights)
}

func TestParseChainStepDefaultsAndClamps(t *testing.T) {
	p := NewParser(Limits{})

	step, err := p.ParseChainStep(`{"reasoning": "no confidence given"}`)
	require.NoError(t, err)
	assert.Equal(t, 0.5, step.Confidence)

	step, err = p.ParseChainStep(`{"reasoning": "overconfident", "confidence": 1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, step.Confidence)

	_, err = p.ParseChainStep(`{"confidence": 0.9}`)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reasoning", verr.Field)
}

func TestParseThoughtCandidates(t *testing.T) {
	p := NewParser(Limits{})

	tests := []struct {
		name string
		in   string
		want int
	}{
		{"wrapped object", `{"thoughts": [{"thought": "a"}, {"thought": "b", "type": "hypothesis"}]}`, 2},
		{"bare array", `[{"thought": "x"}]`, 1},
		{"empty thoughts filtered", `{"thoughts": [{"thought": "  "}, {"thought": "keep"}]}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParseThoughtCandidates(tt.in)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	_, err := p.ParseThoughtCandidates(`{"thoughts": [{"thought": ""}]}`)
	assert.Error(t, err)
}

func TestParseNodeScore(t *testing.T) {
	p := NewParser(Limits{})

	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"wrapped score", `{"score": 0.8, "justification": "strong"}`, 0.8},
		{"bare number", `0.35`, 0.35},
		{"clamped high", `{"score": 3}`, 1},
		{"clamped low", `-0.2`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParseNodeScore(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := p.ParseNodeScore(`{"verdict": "good"}`)
	assert.Error(t, err)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-1))
	assert.Equal(t, 1.0, ClampScore(2))
	assert.Equal(t, 0.4, ClampScore(0.4))
}
