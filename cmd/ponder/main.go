package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ponderlab/ponder/internal/config"
	"github.com/ponderlab/ponder/internal/llm"
	"github.com/ponderlab/ponder/internal/orchestrator"
	"github.com/ponderlab/ponder/internal/prompts"
	"github.com/ponderlab/ponder/internal/providers"
	"github.com/ponderlab/ponder/internal/reasoning"
	"github.com/ponderlab/ponder/internal/respond"
	"github.com/ponderlab/ponder/internal/store"
	"github.com/ponderlab/ponder/internal/tools"
)

func main() {
	// Load .env if present so provider keys can live next to the binary.
	_ = godotenv.Load()

	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("ponder: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ponder", flag.ExitOnError)
	agentID := fs.String("agent", "default", "Agent identifier; state persists per agent")
	storeKind := fs.String("store", "file", "State backend: memory, file, or sqlite")
	stateDir := fs.String("state-dir", "", "Directory for persisted state (default: user config dir)")
	reasoningMode := fs.String("reasoning", "", "Reasoning mode: chain, tree, or hybrid (default: none)")
	strategy := fs.String("strategy", "", "Tree exploration strategy: best_first, breadth_first, depth_first, beam_search, monte_carlo")
	maxTurns := fs.Int("max-turns", 0, "Turn ceiling for the run (0 uses the configured default)")
	showStatus := fs.Bool("status", false, "Print status updates as the agent works")
	verbose := fs.Bool("v", false, "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	goal := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if goal == "" {
		return fmt.Errorf("no goal given; usage: ponder [flags] <goal text>")
	}

	mgr, err := config.NewManager()
	if err != nil {
		return err
	}
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	if *reasoningMode != "" {
		cfg.ReasoningMode = *reasoningMode
	}
	if *strategy != "" {
		cfg.ExplorationStrategy = *strategy
	}
	if *maxTurns > 0 {
		cfg.MaxTurns = *maxTurns
	}
	if *showStatus {
		cfg.StatusUpdates = true
	}

	logger, err := buildLogger(*verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.LLMProvider != "" {
		os.Setenv("LLM_PROVIDER", cfg.LLMProvider)
	}
	client, modelName, err := providers.NewClientFromEnv()
	if err != nil {
		return err
	}
	logger.Info("provider ready", zap.String("model", modelName))

	parser := respond.NewParser(respond.Limits{
		ThoughtsMax: cfg.ThoughtsMaxLen,
		SummaryMax:  cfg.SummaryMaxLen,
		FinalMax:    cfg.FinalMaxLen,
	})

	stateStore, closeStore, err := buildStore(*storeKind, *stateDir, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	orch := orchestrator.New(orchestrator.Config{
		MaxTurns:            cfg.MaxTurns,
		ModelCallTimeout:    cfg.ModelCallTimeout.Std(),
		ToolCallTimeout:     cfg.ToolCallTimeout.Std(),
		DefaultCacheTTL:     cfg.DefaultCacheTTL.Std(),
		StatusUpdates:       cfg.StatusUpdates,
		UseFunctionCalling:  cfg.UseFunctionCalling,
		LoopWindow:          cfg.LoopWindow,
		LoopRepeatThreshold: cfg.LoopRepeatThreshold,
		HardStopRepeats:     cfg.HardStopRepeats,
	}, client, parser, prompts.NewBuilder(), stateStore, tools.BuiltinRegistry(), logger)

	if cfg.ReasoningMode != "" {
		reasoner, err := buildReasoner(cfg, client, parser, logger)
		if err != nil {
			return err
		}
		orch.WithReasoner(reasoner)
	}

	if cfg.StatusUpdates {
		orch.Subscribe(func(u orchestrator.StatusUpdate) {
			line := fmt.Sprintf("[turn %d] %s", u.TurnIndex, u.Title)
			if u.ProgressPct != nil {
				line += fmt.Sprintf(" (%.0f%%)", *u.ProgressPct)
			}
			fmt.Fprintln(os.Stderr, line)
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	result := orch.Run(ctx, *agentID, goal)
	if !result.Success {
		fmt.Fprintf(os.Stderr, "failed after %d turn(s): %s\n", result.Turns, result.Err)
		os.Exit(1)
	}
	fmt.Println(result.Output)
	logger.Info("run complete",
		zap.Int("turns", result.Turns),
		zap.Int("tokens", result.Usage.Total),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func buildStore(kind, dir string, logger *zap.Logger) (orchestrator.StateStore, func(), error) {
	noop := func() {}
	if kind == "memory" {
		return store.NewMemoryStore(), noop, nil
	}
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, noop, fmt.Errorf("failed to get user config dir: %w", err)
		}
		dir = filepath.Join(base, "ponder", "state")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, noop, fmt.Errorf("failed to create state dir: %w", err)
	}
	switch kind {
	case "file":
		return store.NewFileStore(dir, logger), noop, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(context.Background(), filepath.Join(dir, "ponder.db"), logger)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend: %q", kind)
	}
}

func buildReasoner(cfg config.Config, client llm.Client, parser *respond.Parser, logger *zap.Logger) (*reasoning.Manager, error) {
	mode := reasoning.Mode(cfg.ReasoningMode)
	switch mode {
	case reasoning.ModeChain, reasoning.ModeTree, reasoning.ModeHybrid:
	default:
		return nil, fmt.Errorf("unknown reasoning mode: %q", cfg.ReasoningMode)
	}

	treeCfg := reasoning.TreeConfig{
		MaxDepth:         cfg.MaxTreeDepth,
		MaxNodes:         cfg.MaxTreeNodes,
		ModelCallTimeout: cfg.ModelCallTimeout.Std(),
	}
	if cfg.ExplorationStrategy != "" {
		strat, err := reasoning.ParseStrategy(cfg.ExplorationStrategy)
		if err != nil {
			return nil, err
		}
		treeCfg.Strategy = strat
	}

	chain := reasoning.NewChainEngine(client, parser, reasoning.ChainConfig{
		MaxSteps:         cfg.MaxReasoningSteps,
		ModelCallTimeout: cfg.ModelCallTimeout.Std(),
	}, logger)
	tree := reasoning.NewTreeEngine(client, parser, treeCfg, logger)
	return reasoning.NewManager(chain, tree, reasoning.ManagerConfig{
		Mode:          mode,
		MinConfidence: cfg.MinReasoningConfidence,
		Validate:      cfg.ValidateReasoning,
	}, logger), nil
}
