package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isExpandPrompt(system string) bool {
	return strings.Contains(system, "explore a reasoning tree")
}

func isScorePrompt(system string) bool {
	return strings.Contains(system, "evaluate one reasoning step")
}

// scoringClient expands every node into fixed candidates and hands out
// scores from a queue, repeating the last one when it runs dry.
func scoringClient(thoughts []string, scores []float64) *fakeClient {
	scoreIdx := 0
	return &fakeClient{respond: func(system, user string) (string, error) {
		if isExpandPrompt(system) {
			parts := make([]string, len(thoughts))
			for i, th := range thoughts {
				parts[i] = fmt.Sprintf(`{"thought": %q}`, th)
			}
			return fmt.Sprintf(`{"thoughts": [%s]}`, strings.Join(parts, ",")), nil
		}
		score := scores[len(scores)-1]
		if scoreIdx < len(scores) {
			score = scores[scoreIdx]
			scoreIdx++
		}
		return fmt.Sprintf(`{"score": %g}`, score), nil
	}}
}

func TestTreeEngineExploreBestFirst(t *testing.T) {
	client := scoringClient([]string{"sort the input", "hash the input"}, []float64{0.8, 0.3})
	engine := NewTreeEngine(client, newParser(), TreeConfig{MaxDepth: 1, MaxNodes: 10}, nil)

	result := engine.Explore(context.Background(), "dedupe a list", "", BestFirst)

	require.True(t, result.Success, "err: %s", result.Err)
	assert.Equal(t, "sort the input", result.Conclusion)
	assert.Equal(t, 0.8, result.Confidence)

	tree := result.Tree
	require.NotNil(t, tree)
	assert.True(t, tree.IsComplete)
	assert.Len(t, tree.Nodes, 3)
	require.Len(t, tree.BestPath, 2)
	assert.Equal(t, tree.RootID, tree.BestPath[0])
	assert.Equal(t, 2, result.Metadata["nodes_explored"])
	assert.Equal(t, "best_first", result.Metadata["strategy"])
}

func TestTreeEngineNodeCapStopsExploration(t *testing.T) {
	client := scoringClient([]string{"a", "b", "c"}, []float64{0.5})
	engine := NewTreeEngine(client, newParser(), TreeConfig{MaxDepth: 3, MaxNodes: 2}, nil)

	result := engine.Explore(context.Background(), "goal", "", BestFirst)

	require.True(t, result.Success)
	assert.Len(t, result.Tree.Nodes, 2)
}

func TestTreeEngineUnparseableExpansionFallsBackToRoot(t *testing.T) {
	client := &fakeClient{respond: func(system, user string) (string, error) {
		return "I cannot answer in JSON, sorry.", nil
	}}
	engine := NewTreeEngine(client, newParser(), TreeConfig{MaxDepth: 2, MaxNodes: 10}, nil)

	result := engine.Explore(context.Background(), "goal", "", BestFirst)

	require.True(t, result.Success)
	assert.Len(t, result.Tree.Nodes, 1)
	assert.Equal(t, "Goal: goal", result.Conclusion)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestTreeEngineOwnsCallDeadline(t *testing.T) {
	engine := NewTreeEngine(blockingClient{}, newParser(), TreeConfig{
		MaxDepth:         2,
		MaxNodes:         10,
		ModelCallTimeout: 25 * time.Millisecond,
	}, nil)

	// The caller's context never expires; the hung expansion must be cut off
	// by the engine's own deadline and exploration falls back to the root.
	start := time.Now()
	result := engine.Explore(context.Background(), "goal", "", BestFirst)

	require.True(t, result.Success)
	assert.Len(t, result.Tree.Nodes, 1)
	assert.Equal(t, "Goal: goal", result.Conclusion)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTreeEngineScoringFailureDegradesToNeutral(t *testing.T) {
	client := &fakeClient{respond: func(system, user string) (string, error) {
		if isExpandPrompt(system) {
			return `{"thoughts": [{"thought": "only option"}]}`, nil
		}
		return "", errors.New("timeout")
	}}
	engine := NewTreeEngine(client, newParser(), TreeConfig{MaxDepth: 1, MaxNodes: 10}, nil)

	result := engine.Explore(context.Background(), "goal", "", BestFirst)

	require.True(t, result.Success)
	assert.Equal(t, "only option", result.Conclusion)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestTreeEngineUnknownStrategy(t *testing.T) {
	engine := NewTreeEngine(&fakeClient{}, newParser(), TreeConfig{}, nil)
	result := engine.Explore(context.Background(), "goal", "", Strategy("zigzag"))
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "unknown exploration strategy")
}

func TestTreeEngineBeamSearchPrunes(t *testing.T) {
	client := scoringClient([]string{"weak", "strong", "middling"}, []float64{0.2, 0.9, 0.4})
	engine := NewTreeEngine(client, newParser(), TreeConfig{
		MaxDepth:     1,
		MaxNodes:     10,
		BranchFactor: 3,
		BeamWidth:    1,
	}, nil)

	result := engine.Explore(context.Background(), "goal", "", BeamSearch)

	require.True(t, result.Success)
	assert.Equal(t, "strong", result.Conclusion)

	pruned := 0
	for _, node := range result.Tree.Nodes {
		if node.State == NodePruned {
			pruned++
		}
	}
	assert.Equal(t, 2, pruned, "beam width 1 keeps one survivor per depth")
}

func TestTreeEngineDepthFirstReachesMaxDepth(t *testing.T) {
	client := scoringClient([]string{"next"}, []float64{0.5})
	engine := NewTreeEngine(client, newParser(), TreeConfig{MaxDepth: 3, MaxNodes: 20, BranchFactor: 1}, nil)

	result := engine.Explore(context.Background(), "goal", "", DepthFirst)

	require.True(t, result.Success)
	maxDepth := 0
	for _, node := range result.Tree.Nodes {
		if node.Depth > maxDepth {
			maxDepth = node.Depth
		}
	}
	assert.Equal(t, 3, maxDepth)
}

func TestTreeEngineMonteCarloCompletes(t *testing.T) {
	client := scoringClient([]string{"a", "b"}, []float64{0.6, 0.4})
	engine := NewTreeEngine(client, newParser(), TreeConfig{MaxDepth: 2, MaxNodes: 8}, nil)

	result := engine.Explore(context.Background(), "goal", "", MonteCarlo)

	require.True(t, result.Success)
	assert.True(t, result.Tree.IsComplete)
	assert.GreaterOrEqual(t, len(result.Tree.Nodes), 3)
}

func TestTreeEngineContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := scoringClient([]string{"a"}, []float64{0.5})
	engine := NewTreeEngine(client, newParser(), TreeConfig{MaxDepth: 3, MaxNodes: 10}, nil)

	result := engine.Explore(ctx, "goal", "", BestFirst)

	// A cancelled exploration still reports the best node found so far.
	require.True(t, result.Success)
	assert.Len(t, result.Tree.Nodes, 1)
}
