package reasoning

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ponderlab/ponder/internal/llm"
	"github.com/ponderlab/ponder/internal/respond"
)

// Strategy selects the tree exploration algorithm.
type Strategy string

const (
	BestFirst    Strategy = "best_first"
	BreadthFirst Strategy = "breadth_first"
	DepthFirst   Strategy = "depth_first"
	BeamSearch   Strategy = "beam_search"
	MonteCarlo   Strategy = "monte_carlo"
)

// ParseStrategy matches s against the known strategies.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case BestFirst:
		return BestFirst, nil
	case BreadthFirst:
		return BreadthFirst, nil
	case DepthFirst:
		return DepthFirst, nil
	case BeamSearch:
		return BeamSearch, nil
	case MonteCarlo:
		return MonteCarlo, nil
	}
	return "", fmt.Errorf("unknown exploration strategy: %q", s)
}

// TreeConfig controls the tree-of-thoughts engine.
type TreeConfig struct {
	MaxDepth         int
	MaxNodes         int
	BranchFactor     int // children requested per expansion
	BeamWidth        int // survivors per depth under beam search
	Strategy         Strategy
	ModelCallTimeout time.Duration // deadline for each expansion and scoring call
}

// DefaultTreeConfig returns the standard tree settings.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		MaxDepth:         3,
		MaxNodes:         15,
		BranchFactor:     3,
		BeamWidth:        2,
		Strategy:         BestFirst,
		ModelCallTimeout: 60 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = d.MaxNodes
	}
	if c.BranchFactor <= 0 {
		c.BranchFactor = d.BranchFactor
	}
	if c.BeamWidth <= 0 {
		c.BeamWidth = d.BeamWidth
	}
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.ModelCallTimeout <= 0 {
		c.ModelCallTimeout = d.ModelCallTimeout
	}
	return c
}

// TreeEngine explores a reasoning tree, requesting candidate thoughts and
// node scores from the model. A single engine run owns its tree: mutation is
// strictly sequential.
type TreeEngine struct {
	client llm.Client
	parser *respond.Parser
	cfg    TreeConfig
	logger *zap.Logger
	rng    *rand.Rand
}

// NewTreeEngine creates a tree-of-thoughts engine.
func NewTreeEngine(client llm.Client, parser *respond.Parser, cfg TreeConfig, logger *zap.Logger) *TreeEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeEngine{
		client: client,
		parser: parser,
		cfg:    cfg.withDefaults(),
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Explore expands a fresh tree for the goal using the given strategy (empty
// uses the configured one) and returns a result carrying the tree. It never
// returns an error: every failure is folded into the result.
func (e *TreeEngine) Explore(ctx context.Context, goal, contextInfo string, strategy Strategy) (result *Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tree engine panic", zap.Any("panic", r))
			result = failedResult(start, fmt.Sprintf("tree engine panic: %v", r))
		}
	}()

	if strategy == "" {
		strategy = e.cfg.Strategy
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return failedResult(start, err.Error())
	}

	tree := NewTree(goal, e.cfg.MaxDepth, e.cfg.MaxNodes, strategy)
	root, err := tree.CreateRoot("Goal: "+goal, ThoughtAnalysis)
	if err != nil {
		return failedResult(start, err.Error())
	}
	if err := tree.EvaluateNode(root.ID, 0.5); err != nil {
		return failedResult(start, err.Error())
	}

	explored := 0
	failed := map[string]bool{} // nodes whose expansion could not be parsed

	for {
		if ctx.Err() != nil {
			break
		}
		frontier := e.frontier(tree, failed)
		if len(frontier) == 0 {
			break
		}
		node := e.pick(frontier, strategy)

		candidates, err := e.expand(ctx, tree, node)
		if err != nil {
			e.logger.Warn("expansion failed",
				zap.String("node", node.ID),
				zap.Error(err))
			failed[node.ID] = true
			continue
		}

		capacityReached := false
		for _, cand := range candidates {
			child, err := tree.AddChild(node.ID, cand.Thought, NormalizeThoughtType(cand.Type))
			if err != nil {
				if IsCapacityError(err) {
					capacityReached = true
					break
				}
				failed[node.ID] = true
				break
			}
			score := e.score(ctx, tree, child)
			if err := tree.EvaluateNode(child.ID, score); err != nil {
				failed[child.ID] = true
				continue
			}
			explored++
		}

		if strategy == BeamSearch && len(node.ChildIDs) > 0 {
			e.pruneBeyondBeam(tree, node.Depth+1)
		}
		if capacityReached {
			break
		}
	}

	best := e.bestLeaf(tree)
	path := tree.PathToNode(best.ID)
	ids := make([]string, len(path))
	for i, n := range path {
		ids[i] = n.ID
	}
	tree.Complete(ids)

	return &Result{
		Success:    true,
		Conclusion: best.Thought,
		Confidence: best.ScoreOrZero(),
		Elapsed:    time.Since(start),
		Tree:       tree,
		Metadata: map[string]any{
			"engine":         "tree_of_thoughts",
			"strategy":       string(strategy),
			"nodes_explored": explored,
			"node_count":     len(tree.Nodes),
		},
	}
}

// frontier returns expandable leaves: unpruned, below max depth, with no
// children and no prior expansion failure.
func (e *TreeEngine) frontier(tree *Tree, failed map[string]bool) []*Node {
	var out []*Node
	for _, node := range tree.Leaves() {
		if node.Depth >= tree.MaxDepth || failed[node.ID] {
			continue
		}
		out = append(out, node)
	}
	return out
}

// pick selects the next node to expand according to the strategy. The
// frontier is in creation order.
func (e *TreeEngine) pick(frontier []*Node, strategy Strategy) *Node {
	switch strategy {
	case DepthFirst:
		return frontier[len(frontier)-1]
	case BreadthFirst, BeamSearch:
		best := frontier[0]
		for _, n := range frontier[1:] {
			if n.Depth < best.Depth {
				best = n
			}
		}
		return best
	case MonteCarlo:
		total := 0.0
		for _, n := range frontier {
			total += n.ScoreOrZero() + 0.01
		}
		target := e.rng.Float64() * total
		acc := 0.0
		for _, n := range frontier {
			acc += n.ScoreOrZero() + 0.01
			if target <= acc {
				return n
			}
		}
		return frontier[len(frontier)-1]
	default: // BestFirst
		best := frontier[0]
		for _, n := range frontier[1:] {
			if n.ScoreOrZero() > best.ScoreOrZero() {
				best = n
			}
		}
		return best
	}
}

// pruneBeyondBeam keeps the top BeamWidth scored nodes at the given depth and
// prunes the remainder (with their descendants).
func (e *TreeEngine) pruneBeyondBeam(tree *Tree, depth int) {
	nodes := tree.NodesAtDepth(depth)
	if len(nodes) <= e.cfg.BeamWidth {
		return
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].ScoreOrZero() > nodes[j].ScoreOrZero()
	})
	for _, n := range nodes[e.cfg.BeamWidth:] {
		// Best effort: ids come straight from the arena.
		_ = tree.PruneNode(n.ID)
	}
}

func (e *TreeEngine) expand(ctx context.Context, tree *Tree, node *Node) ([]respond.ThoughtCandidate, error) {
	callCtx, cancel := withCallDeadline(ctx, e.cfg.ModelCallTimeout)
	defer cancel()
	completion, err := e.client.Complete(callCtx, e.expandMessages(tree, node))
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	candidates, err := e.parser.ParseThoughtCandidates(completion.Content)
	if err != nil {
		return nil, err
	}
	if len(candidates) > e.cfg.BranchFactor {
		candidates = candidates[:e.cfg.BranchFactor]
	}
	return candidates, nil
}

// score asks the model to evaluate a node; a malformed reply degrades to a
// neutral 0.5 rather than failing the exploration.
func (e *TreeEngine) score(ctx context.Context, tree *Tree, node *Node) float64 {
	callCtx, cancel := withCallDeadline(ctx, e.cfg.ModelCallTimeout)
	defer cancel()
	completion, err := e.client.Complete(callCtx, e.scoreMessages(tree, node))
	if err != nil {
		e.logger.Warn("scoring call failed", zap.String("node", node.ID), zap.Error(err))
		return 0.5
	}
	score, err := e.parser.ParseNodeScore(completion.Content)
	if err != nil {
		e.logger.Warn("malformed score", zap.String("node", node.ID), zap.Error(err))
		return 0.5
	}
	return score
}

// bestLeaf returns the highest-scored unpruned node, preferring deeper nodes
// on ties. Falls back to the root.
func (e *TreeEngine) bestLeaf(tree *Tree) *Node {
	best := tree.Nodes[tree.RootID]
	for _, node := range tree.Nodes {
		if node.State == NodePruned || node.ID == tree.RootID {
			continue
		}
		if node.ScoreOrZero() > best.ScoreOrZero() ||
			(node.ScoreOrZero() == best.ScoreOrZero() && node.Depth > best.Depth) {
			best = node
		}
	}
	return best
}

func (e *TreeEngine) expandMessages(tree *Tree, node *Node) []llm.Message {
	var pathText strings.Builder
	for _, n := range tree.PathToNode(node.ID) {
		fmt.Fprintf(&pathText, "- [%s] %s\n", n.Type, n.Thought)
	}
	system := fmt.Sprintf(`You explore a reasoning tree. Propose up to %d distinct next thoughts continuing the current path. Respond with a single JSON object:
{"thoughts": [{"thought": "<text>", "type": "analysis|hypothesis|refinement|conclusion"}]}`, e.cfg.BranchFactor)
	user := fmt.Sprintf("Goal: %s\nCurrent path:\n%s", tree.Goal, pathText.String())
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
}

func (e *TreeEngine) scoreMessages(tree *Tree, node *Node) []llm.Message {
	system := `You evaluate one reasoning step. Respond with a single JSON object:
{"score": <0..1>, "reasoning": "<one sentence>"} where 1 means highly promising.`
	user := fmt.Sprintf("Goal: %s\nThought to evaluate: %s", tree.Goal, node.Thought)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
}
