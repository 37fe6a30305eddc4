package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentRun is one append-only audit record for an agent or orchestrator
// execution. Never mutated after insertion.
type AgentRun struct {
	ID           string
	AgentName    string
	TopicID      string
	VideoID      string
	Status       string
	Input        map[string]any
	Output       map[string]any
	Duration     time.Duration
	ErrorMessage string
	CreatedAt    time.Time
}

// RecordAgentRun appends an audit record. Callers treat failures as
// non-fatal observability loss, not workflow errors.
func (s *Store) RecordAgentRun(ctx context.Context, run AgentRun) error {
	if run.AgentName == "" {
		return errors.New("agent name is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	inputJSON, err := marshalJSONMap(run.Input)
	if err != nil {
		return fmt.Errorf("marshal run input: %w", err)
	}
	outputJSON, err := marshalJSONMap(run.Output)
	if err != nil {
		return fmt.Errorf("marshal run output: %w", err)
	}

	_, err = s.execWithRetry(ctx,
		`INSERT INTO agent_runs
             (id, agent_name, topic_id, video_id, status, input_json, output_json, duration_ms, error_message, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.AgentName,
		nullableString(run.TopicID),
		nullableString(run.VideoID),
		run.Status,
		inputJSON,
		outputJSON,
		run.Duration.Milliseconds(),
		nullableString(run.ErrorMessage),
		timestamp(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert agent run: %w", err)
	}
	return nil
}

// AgentRunCount returns how many audit rows exist for an agent name. Used
// by operational tooling and tests; the orchestrator itself never reads
// runs back.
func (s *Store) AgentRunCount(ctx context.Context, agentName string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM agent_runs WHERE agent_name = ?", agentName,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count agent runs: %w", err)
	}
	return count, nil
}

// LastAgentRun returns the most recent audit row for an agent name, or nil.
func (s *Store) LastAgentRun(ctx context.Context, agentName string) (*AgentRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_name, COALESCE(topic_id, ''), COALESCE(video_id, ''), status,
                COALESCE(input_json, ''), COALESCE(output_json, ''), duration_ms,
                COALESCE(error_message, ''), created_at
         FROM agent_runs WHERE agent_name = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		agentName)

	var (
		run        AgentRun
		inputRaw   string
		outputRaw  string
		durationMs int64
		createdRaw string
	)
	err := row.Scan(&run.ID, &run.AgentName, &run.TopicID, &run.VideoID, &run.Status,
		&inputRaw, &outputRaw, &durationMs, &run.ErrorMessage, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last agent run: %w", err)
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	if inputRaw != "" {
		_ = json.Unmarshal([]byte(inputRaw), &run.Input)
	}
	if outputRaw != "" {
		_ = json.Unmarshal([]byte(outputRaw), &run.Output)
	}
	return &run, nil
}

func marshalJSONMap(value map[string]any) (any, error) {
	if len(value) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
