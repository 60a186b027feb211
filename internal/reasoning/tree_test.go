package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeThoughtType(t *testing.T) {
	assert.Equal(t, ThoughtAnalysis, NormalizeThoughtType("analysis"))
	assert.Equal(t, ThoughtConclusion, NormalizeThoughtType("conclusion"))
	assert.Equal(t, ThoughtHypothesis, NormalizeThoughtType("something else"))
	assert.Equal(t, ThoughtHypothesis, NormalizeThoughtType(""))
}

func TestTreeSingleRoot(t *testing.T) {
	tree := NewTree("goal", 3, 10, BestFirst)
	root, err := tree.CreateRoot("start", ThoughtAnalysis)
	require.NoError(t, err)
	assert.Equal(t, 0, root.Depth)
	assert.Equal(t, root.ID, tree.RootID)

	_, err = tree.CreateRoot("again", ThoughtAnalysis)
	assert.ErrorIs(t, err, ErrRootExists)
	assert.Len(t, tree.Nodes, 1)
}

func TestTreeDepthLimitRefusal(t *testing.T) {
	tree := NewTree("goal", 1, 10, BestFirst)
	root, err := tree.CreateRoot("start", ThoughtAnalysis)
	require.NoError(t, err)
	child, err := tree.AddChild(root.ID, "level one", ThoughtHypothesis)
	require.NoError(t, err)

	_, err = tree.AddChild(child.ID, "too deep", ThoughtHypothesis)
	require.Error(t, err)
	assert.True(t, IsCapacityError(err))
	assert.Len(t, tree.Nodes, 2, "refused mutation must leave the tree unchanged")
	assert.Empty(t, child.ChildIDs)
}

func TestTreeNodeLimitRefusal(t *testing.T) {
	tree := NewTree("goal", 5, 2, BestFirst)
	root, err := tree.CreateRoot("start", ThoughtAnalysis)
	require.NoError(t, err)
	_, err = tree.AddChild(root.ID, "one", ThoughtHypothesis)
	require.NoError(t, err)

	_, err = tree.AddChild(root.ID, "two", ThoughtHypothesis)
	require.Error(t, err)
	assert.True(t, IsCapacityError(err))
	assert.Len(t, tree.Nodes, 2)
}

func TestTreeUnknownParent(t *testing.T) {
	tree := NewTree("goal", 3, 10, BestFirst)
	_, err := tree.AddChild("missing", "orphan", ThoughtHypothesis)
	assert.Error(t, err)
	assert.False(t, IsCapacityError(err))
}

func TestTreeEvaluateNodeClamps(t *testing.T) {
	tree := NewTree("goal", 3, 10, BestFirst)
	root, _ := tree.CreateRoot("start", ThoughtAnalysis)

	require.NoError(t, tree.EvaluateNode(root.ID, 1.8))
	assert.Equal(t, 1.0, root.ScoreOrZero())
	assert.Equal(t, NodeEvaluated, root.State)
	assert.NotNil(t, root.EvaluatedAt)

	require.NoError(t, tree.EvaluateNode(root.ID, -0.4))
	assert.Equal(t, 0.0, root.ScoreOrZero())

	assert.Error(t, tree.EvaluateNode("missing", 0.5))
}

func TestTreePruneTransitive(t *testing.T) {
	tree := NewTree("goal", 5, 10, BestFirst)
	root, _ := tree.CreateRoot("start", ThoughtAnalysis)
	a, _ := tree.AddChild(root.ID, "a", ThoughtHypothesis)
	b, _ := tree.AddChild(a.ID, "b", ThoughtRefinement)
	c, _ := tree.AddChild(b.ID, "c", ThoughtConclusion)
	sibling, _ := tree.AddChild(root.ID, "sibling", ThoughtHypothesis)

	require.NoError(t, tree.PruneNode(a.ID))
	assert.Equal(t, NodePruned, a.State)
	assert.Equal(t, NodePruned, b.State)
	assert.Equal(t, NodePruned, c.State)
	assert.Equal(t, NodePending, sibling.State)
	assert.Equal(t, NodePending, root.State)
}

func TestTreePathToNode(t *testing.T) {
	tree := NewTree("goal", 5, 10, BestFirst)
	root, _ := tree.CreateRoot("start", ThoughtAnalysis)
	a, _ := tree.AddChild(root.ID, "a", ThoughtHypothesis)
	b, _ := tree.AddChild(a.ID, "b", ThoughtRefinement)

	path := tree.PathToNode(b.ID)
	require.Len(t, path, 3)
	assert.Equal(t, root.ID, path[0].ID)
	assert.Equal(t, a.ID, path[1].ID)
	assert.Equal(t, b.ID, path[2].ID)

	assert.Empty(t, tree.PathToNode("missing"))
}

func TestTreeLeavesSkipPrunedAndExpanded(t *testing.T) {
	tree := NewTree("goal", 5, 10, BestFirst)
	root, _ := tree.CreateRoot("start", ThoughtAnalysis)
	a, _ := tree.AddChild(root.ID, "a", ThoughtHypothesis)
	b, _ := tree.AddChild(root.ID, "b", ThoughtHypothesis)
	require.NoError(t, tree.PruneNode(b.ID))

	leaves := tree.Leaves()
	require.Len(t, leaves, 1)
	assert.Equal(t, a.ID, leaves[0].ID)
}

func TestTreeComplete(t *testing.T) {
	tree := NewTree("goal", 5, 10, BestFirst)
	root, _ := tree.CreateRoot("start", ThoughtAnalysis)
	a, _ := tree.AddChild(root.ID, "a", ThoughtHypothesis)

	tree.Complete([]string{root.ID, a.ID, "missing"})
	assert.True(t, tree.IsComplete)
	assert.Equal(t, []string{root.ID, a.ID}, tree.BestPath)
	assert.Equal(t, NodeBestPath, root.State)
	assert.Equal(t, NodeBestPath, a.State)
}

func TestTreeEvaluateThenPrune(t *testing.T) {
	tree := NewTree("pick an approach", 3, 10, BestFirst)
	root, err := tree.CreateRoot("Goal: pick an approach", ThoughtAnalysis)
	require.NoError(t, err)

	strong, _ := tree.AddChild(root.ID, "promising direction", ThoughtHypothesis)
	weak, _ := tree.AddChild(root.ID, "dead end", ThoughtHypothesis)
	require.NoError(t, tree.EvaluateNode(strong.ID, 0.8))
	require.NoError(t, tree.EvaluateNode(weak.ID, 0.3))

	require.NoError(t, tree.PruneNode(weak.ID))

	leaves := tree.Leaves()
	require.Len(t, leaves, 1)
	assert.Equal(t, strong.ID, leaves[0].ID)
	assert.Equal(t, 0.8, leaves[0].ScoreOrZero())

	tree.Complete([]string{root.ID, strong.ID})
	assert.True(t, tree.IsComplete)
	assert.Equal(t, NodeBestPath, strong.State)
	assert.Equal(t, NodePruned, weak.State, "completion must not resurrect pruned nodes")
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"best_first", "breadth_first", "depth_first", "beam_search", "monte_carlo"} {
		got, err := ParseStrategy(name)
		require.NoError(t, err, name)
		assert.Equal(t, Strategy(name), got)
	}
	_, err := ParseStrategy("random_walk")
	assert.Error(t, err)
}
