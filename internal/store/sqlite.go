package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ponderlab/ponder/internal/orchestrator"
)

// SQLiteStore persists one row per agent in a local SQLite database. WAL
// mode allows concurrent readers alongside the single writer.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath and
// initializes the schema.
func NewSQLiteStore(ctx context.Context, dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite doesn't support multiple writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS agent_states (
	agent_id     TEXT PRIMARY KEY,
	last_updated TEXT NOT NULL,
	state_json   TEXT NOT NULL
);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Load implements orchestrator.StateStore. A corrupt row is treated as no
// prior state and logged.
func (s *SQLiteStore) Load(ctx context.Context, agentID string) (*orchestrator.AgentState, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM agent_states WHERE agent_id = ?`, agentID,
	).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}

	var state orchestrator.AgentState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		s.logger.Error("stored state corrupt, treating as no prior state",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return nil, nil
	}
	return &state, nil
}

// Save implements orchestrator.StateStore.
func (s *SQLiteStore) Save(ctx context.Context, agentID string, state *orchestrator.AgentState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO agent_states (agent_id, last_updated, state_json)
VALUES (?, ?, ?)
ON CONFLICT(agent_id) DO UPDATE SET
	last_updated = excluded.last_updated,
	state_json   = excluded.state_json`,
		agentID, state.LastUpdated.Format(time.RFC3339Nano), string(body))
	if err != nil {
		return fmt.Errorf("failed to upsert state: %w", err)
	}
	return nil
}
