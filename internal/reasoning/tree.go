package reasoning

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ponderlab/ponder/internal/respond"
)

// ThoughtType categorizes what role a node plays in the deliberation.
type ThoughtType string

const (
	ThoughtAnalysis   ThoughtType = "analysis"
	ThoughtHypothesis ThoughtType = "hypothesis"
	ThoughtRefinement ThoughtType = "refinement"
	ThoughtConclusion ThoughtType = "conclusion"
)

// NormalizeThoughtType maps free-form model output onto the closed set,
// defaulting to hypothesis.
func NormalizeThoughtType(s string) ThoughtType {
	switch ThoughtType(s) {
	case ThoughtAnalysis, ThoughtHypothesis, ThoughtRefinement, ThoughtConclusion:
		return ThoughtType(s)
	}
	return ThoughtHypothesis
}

// NodeState tracks a thought node through its lifecycle.
type NodeState string

const (
	NodePending   NodeState = "pending"
	NodeEvaluated NodeState = "evaluated"
	NodePruned    NodeState = "pruned"
	NodeBestPath  NodeState = "best_path"
)

// Node is one vertex of a reasoning tree. Children are referenced by id only;
// the owning tree's arena is the single source of truth for adjacency.
type Node struct {
	ID          string      `json:"node_id"`
	ParentID    string      `json:"parent_id,omitempty"`
	ChildIDs    []string    `json:"child_ids,omitempty"`
	Depth       int         `json:"depth"`
	Thought     string      `json:"thought"`
	Type        ThoughtType `json:"thought_type"`
	Score       *float64    `json:"score,omitempty"`
	State       NodeState   `json:"state"`
	EvaluatedAt *time.Time  `json:"evaluated_at,omitempty"`
}

// ScoreOrZero returns the node score, treating unset as 0.
func (n *Node) ScoreOrZero() float64 {
	if n.Score == nil {
		return 0
	}
	return *n.Score
}

// ErrRootExists is returned by CreateRoot when a root was already created.
var ErrRootExists = errors.New("reasoning tree already has a root")

// CapacityError reports a refused mutation that would exceed a tree limit.
type CapacityError struct {
	Kind  string // "depth" or "nodes"
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("reasoning tree %s limit reached (%d)", e.Kind, e.Limit)
}

// IsCapacityError reports whether err is a tree capacity/depth refusal.
func IsCapacityError(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// Tree is an arena of thought nodes explored toward a goal. It is mutated
// sequentially by a single explorer; it is not safe for concurrent mutation.
type Tree struct {
	Goal       string           `json:"goal"`
	RootID     string           `json:"root_id,omitempty"`
	MaxDepth   int              `json:"max_depth"`
	MaxNodes   int              `json:"max_nodes"`
	Strategy   Strategy         `json:"exploration_strategy"`
	Nodes      map[string]*Node `json:"nodes"`
	IsComplete bool             `json:"is_complete"`
	BestPath   []string         `json:"best_path,omitempty"`

	order []string // creation order, for depth-first selection
}

// NewTree creates an empty tree with the given limits.
func NewTree(goal string, maxDepth, maxNodes int, strategy Strategy) *Tree {
	return &Tree{
		Goal:     goal,
		MaxDepth: maxDepth,
		MaxNodes: maxNodes,
		Strategy: strategy,
		Nodes:    make(map[string]*Node),
	}
}

// CreateRoot creates the root node at depth 0. A tree has exactly one root.
func (t *Tree) CreateRoot(thought string, thoughtType ThoughtType) (*Node, error) {
	if t.RootID != "" {
		return nil, ErrRootExists
	}
	if t.MaxNodes > 0 && len(t.Nodes) >= t.MaxNodes {
		return nil, &CapacityError{Kind: "nodes", Limit: t.MaxNodes}
	}
	node := &Node{
		ID:      uuid.NewString(),
		Depth:   0,
		Thought: thought,
		Type:    thoughtType,
		State:   NodePending,
	}
	t.Nodes[node.ID] = node
	t.order = append(t.order, node.ID)
	t.RootID = node.ID
	return node, nil
}

// AddChild appends a child under parentID. It refuses mutation when the
// parent is unknown, the child would exceed MaxDepth, or the tree is at
// MaxNodes; a refusal leaves the node count unchanged.
func (t *Tree) AddChild(parentID, thought string, thoughtType ThoughtType) (*Node, error) {
	parent, ok := t.Nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("unknown parent node: %s", parentID)
	}
	if t.MaxDepth > 0 && parent.Depth+1 > t.MaxDepth {
		return nil, &CapacityError{Kind: "depth", Limit: t.MaxDepth}
	}
	if t.MaxNodes > 0 && len(t.Nodes) >= t.MaxNodes {
		return nil, &CapacityError{Kind: "nodes", Limit: t.MaxNodes}
	}
	node := &Node{
		ID:       uuid.NewString(),
		ParentID: parentID,
		Depth:    parent.Depth + 1,
		Thought:  thought,
		Type:     thoughtType,
		State:    NodePending,
	}
	t.Nodes[node.ID] = node
	t.order = append(t.order, node.ID)
	parent.ChildIDs = append(parent.ChildIDs, node.ID)
	return node, nil
}

// EvaluateNode records a score for a node, clamped into [0,1], and stamps
// the evaluation time.
func (t *Tree) EvaluateNode(id string, score float64) error {
	node, ok := t.Nodes[id]
	if !ok {
		return fmt.Errorf("unknown node: %s", id)
	}
	clamped := respond.ClampScore(score)
	now := time.Now()
	node.Score = &clamped
	node.State = NodeEvaluated
	node.EvaluatedAt = &now
	return nil
}

// PruneNode marks the node and every transitive descendant as pruned.
func (t *Tree) PruneNode(id string) error {
	node, ok := t.Nodes[id]
	if !ok {
		return fmt.Errorf("unknown node: %s", id)
	}
	node.State = NodePruned
	for _, desc := range t.Descendants(id) {
		desc.State = NodePruned
	}
	return nil
}

// Descendants returns every transitive descendant of id in breadth-first
// order. An unknown id yields an empty result.
func (t *Tree) Descendants(id string) []*Node {
	start, ok := t.Nodes[id]
	if !ok {
		return nil
	}
	var out []*Node
	queue := append([]string(nil), start.ChildIDs...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		node, ok := t.Nodes[cur]
		if !ok {
			continue
		}
		out = append(out, node)
		queue = append(queue, node.ChildIDs...)
	}
	return out
}

// PathToNode returns the nodes from the root down to id, inclusive. An
// unknown id yields an empty result.
func (t *Tree) PathToNode(id string) []*Node {
	node, ok := t.Nodes[id]
	if !ok {
		return nil
	}
	var reversed []*Node
	for node != nil {
		reversed = append(reversed, node)
		if node.ParentID == "" {
			break
		}
		node = t.Nodes[node.ParentID]
	}
	out := make([]*Node, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		out = append(out, reversed[i])
	}
	return out
}

// Complete marks every node on the supplied path as part of the best path,
// ignoring unknown ids, and sets IsComplete. Completion is irreversible.
func (t *Tree) Complete(path []string) {
	for _, id := range path {
		if node, ok := t.Nodes[id]; ok {
			node.State = NodeBestPath
			t.BestPath = append(t.BestPath, id)
		}
	}
	t.IsComplete = true
}

// Leaves returns unpruned nodes without children that can still be expanded.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	for _, id := range t.order {
		node := t.Nodes[id]
		if node.State == NodePruned || len(node.ChildIDs) > 0 {
			continue
		}
		out = append(out, node)
	}
	return out
}

// NodesAtDepth returns unpruned nodes at the given depth in creation order.
func (t *Tree) NodesAtDepth(depth int) []*Node {
	var out []*Node
	for _, id := range t.order {
		node := t.Nodes[id]
		if node.Depth == depth && node.State != NodePruned {
			out = append(out, node)
		}
	}
	return out
}
