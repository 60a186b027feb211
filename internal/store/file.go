package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ponderlab/ponder/internal/orchestrator"
)

// FileStore persists one record per agent as two lines: a header carrying
// the agent id and last-updated timestamp, then the full serialized state.
// An unreadable or corrupt file is treated as no prior state and logged,
// never surfaced as an error.
type FileStore struct {
	basePath string
	logger   *zap.Logger
}

// NewFileStore creates a file-backed store rooted at basePath.
func NewFileStore(basePath string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{basePath: basePath, logger: logger}
}

func (s *FileStore) path(agentID string) string {
	// Agent ids may contain path-hostile characters; flatten them.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, agentID)
	return filepath.Join(s.basePath, safe+".state")
}

// Load implements orchestrator.StateStore.
func (s *FileStore) Load(ctx context.Context, agentID string) (*orchestrator.AgentState, error) {
	data, err := os.ReadFile(s.path(agentID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("state file unreadable, treating as no prior state",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return nil, nil
	}

	lines := strings.SplitN(string(data), "\n", 2)
	if len(lines) < 2 {
		s.logger.Error("state file corrupt: missing state line",
			zap.String("agent_id", agentID))
		return nil, nil
	}

	var state orchestrator.AgentState
	if err := json.Unmarshal([]byte(lines[1]), &state); err != nil {
		s.logger.Error("state file corrupt, treating as no prior state",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return nil, nil
	}
	return &state, nil
}

// Save implements orchestrator.StateStore.
func (s *FileStore) Save(ctx context.Context, agentID string, state *orchestrator.AgentState) error {
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	header := fmt.Sprintf("%s\t%s", agentID, state.LastUpdated.Format(time.RFC3339Nano))
	record := header + "\n" + string(body) + "\n"
	if err := os.WriteFile(s.path(agentID), []byte(record), 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
