package agents

import (
	"context"
	"log/slog"
	"time"

	"apogee/internal/config"
	"apogee/internal/logging"
	"apogee/internal/services/llm"
	"apogee/internal/store"
)

// Job names as they appear on the queue.
const (
	JobMineTopics    = "mine_topics"
	JobResearchTopic = "research_topic"
	JobWriteScript   = "write_script"
	JobCheckScript   = "check_script"
)

// QueueName is the single queue all content jobs run on.
const QueueName = "agents"

// Agents bundles the content workers and their shared collaborators.
type Agents struct {
	store     *store.Store
	completer llm.Completer
	logger    *slog.Logger

	similarityThreshold float64
	recentTitleLimit    int
}

// New constructs the agent set. The completer is the only external
// dependency; tests substitute a canned one.
func New(st *store.Store, completer llm.Completer, cfg *config.Config, logger *slog.Logger) *Agents {
	if logger == nil {
		logger = logging.NewNop()
	}
	threshold := cfg.Pipeline.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.75
	}
	return &Agents{
		store:               st,
		completer:           completer,
		logger:              logger.With(logging.String(logging.FieldComponent, "agents")),
		similarityThreshold: threshold,
		recentTitleLimit:    50,
	}
}

func (a *Agents) recordRun(ctx context.Context, run store.AgentRun) {
	// Audit loss is logged, never propagated.
	if err := a.store.RecordAgentRun(context.WithoutCancel(ctx), run); err != nil {
		a.logger.Error("record agent run failed",
			logging.String("agent", run.AgentName),
			logging.Error(err),
		)
	}
}

func durationSince(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
