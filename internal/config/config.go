package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds every knob the core consumes. Durations are serialized as
// time.ParseDuration strings.
type Config struct {
	// Provider selection.
	LLMProvider string `json:"llm_provider,omitempty"` // openai, anthropic, kimi
	APIKey      string `json:"api_key,omitempty"`
	Model       string `json:"model,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`

	// Orchestrator.
	MaxTurns            int      `json:"max_turns"`
	ModelCallTimeout    Duration `json:"model_call_timeout"`
	ToolCallTimeout     Duration `json:"tool_call_timeout"`
	DefaultCacheTTL     Duration `json:"default_cache_ttl"`
	StatusUpdates       bool     `json:"status_updates"`
	UseFunctionCalling  bool     `json:"use_function_calling"`
	LoopWindow          int      `json:"loop_window"`
	LoopRepeatThreshold int      `json:"loop_repeat_threshold"`
	HardStopRepeats     int      `json:"hard_stop_repeats"`

	// Parser field caps.
	ThoughtsMaxLen int `json:"thoughts_max_len"`
	SummaryMaxLen  int `json:"summary_max_len"`
	FinalMaxLen    int `json:"final_max_len"`

	// Reasoning.
	ReasoningMode          string  `json:"reasoning_mode,omitempty"` // "", chain, tree, hybrid
	MaxReasoningSteps      int     `json:"max_reasoning_steps"`
	MaxTreeDepth           int     `json:"max_tree_depth"`
	MaxTreeNodes           int     `json:"max_tree_nodes"`
	ExplorationStrategy    string  `json:"exploration_strategy,omitempty"`
	MinReasoningConfidence float64 `json:"min_reasoning_confidence"`
	ValidateReasoning      bool    `json:"validate_reasoning"`
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		MaxTurns:            20,
		ModelCallTimeout:    Duration(60 * time.Second),
		ToolCallTimeout:     Duration(30 * time.Second),
		DefaultCacheTTL:     Duration(5 * time.Minute),
		LoopWindow:          6,
		LoopRepeatThreshold: 3,
		ThoughtsMaxLen:      4000,
		SummaryMaxLen:       2000,
		FinalMaxLen:         16000,
		MaxReasoningSteps:   8,
		MaxTreeDepth:        3,
		MaxTreeNodes:        15,
	}
}

// Duration is a time.Duration that serializes as its string form.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler, accepting either a duration
// string or nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := json.Unmarshal(data, &ns); err != nil {
		return fmt.Errorf("invalid duration: %s", data)
	}
	*d = Duration(ns)
	return nil
}

// Std returns the standard-library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Manager handles loading and saving the configuration file.
type Manager struct {
	configDir string
}

// NewManager creates a configuration manager rooted in the user config dir.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return &Manager{configDir: filepath.Join(configDir, "ponder")}, nil
}

// Path returns the absolute path to the config.json file.
func (m *Manager) Path() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the configuration from disk. A missing file yields defaults.
func (m *Manager) Load() (Config, error) {
	cfg := Default()
	path := m.Path()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config json: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to disk, creating the directory if needed.
func (m *Manager) Save(cfg Config) error {
	if err := os.MkdirAll(m.configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.Path(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto the config. Unset variables
// leave the config untouched.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLMProvider = v
	}
	if v := os.Getenv("PONDER_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("PONDER_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxTurns = n
		}
	}
	if v := os.Getenv("PONDER_REASONING_MODE"); v != "" {
		c.ReasoningMode = v
	}
	if v := os.Getenv("PONDER_EXPLORATION_STRATEGY"); v != "" {
		c.ExplorationStrategy = v
	}
	if v := os.Getenv("PONDER_STATUS_UPDATES"); v != "" {
		c.StatusUpdates = v == "1" || v == "true"
	}
}
