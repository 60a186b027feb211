package reasoning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Mode selects which engine the manager dispatches to.
type Mode string

const (
	ModeChain  Mode = "chain"
	ModeTree   Mode = "tree"
	ModeHybrid Mode = "hybrid"
)

// ManagerConfig controls dispatch and result validation.
type ManagerConfig struct {
	Mode          Mode
	MinConfidence float64 // minimum acceptable confidence when Validate is set
	Validate      bool
}

// Manager dispatches reasoning requests to the configured engine, or runs
// both concurrently in hybrid mode. The two engines share no mutable state:
// each run owns its chain or tree, and only the final results are combined.
type Manager struct {
	chain  *ChainEngine
	tree   *TreeEngine
	cfg    ManagerConfig
	logger *zap.Logger
}

// NewManager creates a reasoning manager over the two engines.
func NewManager(chain *ChainEngine, tree *TreeEngine, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.Mode == "" {
		cfg.Mode = ModeChain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{chain: chain, tree: tree, cfg: cfg, logger: logger}
}

// Reason runs the configured mode and returns its result. Like the engines,
// it never returns a Go error.
func (m *Manager) Reason(ctx context.Context, goal, contextInfo string) *Result {
	start := time.Now()

	var result *Result
	switch m.cfg.Mode {
	case ModeChain:
		result = m.chain.Think(ctx, goal, contextInfo)
	case ModeTree:
		result = m.tree.Explore(ctx, goal, contextInfo, "")
	case ModeHybrid:
		result = m.hybrid(ctx, goal, contextInfo)
	default:
		return failedResult(start, fmt.Sprintf("unknown reasoning mode: %q", m.cfg.Mode))
	}

	if m.cfg.Validate && result.Success && result.Confidence < m.cfg.MinConfidence {
		m.logger.Warn("reasoning confidence below threshold",
			zap.Float64("confidence", result.Confidence),
			zap.Float64("min", m.cfg.MinConfidence))
		result.Success = false
		result.Err = fmt.Sprintf("confidence %.2f below minimum %.2f", result.Confidence, m.cfg.MinConfidence)
	}
	return result
}

// hybrid runs both engines concurrently against independent structures and
// synthesizes a combined conclusion from whichever succeeded with more
// confidence.
func (m *Manager) hybrid(ctx context.Context, goal, contextInfo string) *Result {
	start := time.Now()

	var wg sync.WaitGroup
	var chainRes, treeRes *Result
	wg.Add(2)
	go func() {
		defer wg.Done()
		chainRes = m.chain.Think(ctx, goal, contextInfo)
	}()
	go func() {
		defer wg.Done()
		treeRes = m.tree.Explore(ctx, goal, contextInfo, "")
	}()
	wg.Wait()

	winner := chainRes
	if !chainRes.Success || (treeRes.Success && treeRes.Confidence > chainRes.Confidence) {
		winner = treeRes
	}
	if !winner.Success {
		res := failedResult(start, fmt.Sprintf("both engines failed: chain: %s; tree: %s", chainRes.Err, treeRes.Err))
		res.Chain = chainRes.Chain
		res.Tree = treeRes.Tree
		return res
	}

	return &Result{
		Success:    true,
		Conclusion: winner.Conclusion,
		Confidence: winner.Confidence,
		Elapsed:    time.Since(start),
		Chain:      chainRes.Chain,
		Tree:       treeRes.Tree,
		Metadata: map[string]any{
			"mode":             "hybrid",
			"chain_success":    chainRes.Success,
			"chain_confidence": chainRes.Confidence,
			"tree_success":     treeRes.Success,
			"tree_confidence":  treeRes.Confidence,
		},
	}
}
