package pipeline

import (
	"context"
	"log/slog"
	"time"

	"apogee/internal/logging"
	"apogee/internal/store"
)

const orchestratorAgentName = "orchestrator"

// RunRecorder writes the single audit row every batch produces. Exactly
// one row lands per batch, whether it succeeded or failed.
type RunRecorder struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRunRecorder constructs the recorder.
func NewRunRecorder(st *store.Store, logger *slog.Logger) *RunRecorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RunRecorder{
		store:  st,
		logger: logger.With(logging.String(logging.FieldComponent, "run-recorder")),
	}
}

// RecordSuccess appends the audit row for a completed batch.
func (r *RunRecorder) RecordSuccess(ctx context.Context, channelID string, topicsProcessed, videosApproved, videosFailed int, duration time.Duration) error {
	return r.store.RecordAgentRun(ctx, store.AgentRun{
		AgentName: orchestratorAgentName,
		Status:    "success",
		Input: map[string]any{
			"channel_id":       channelID,
			"topics_processed": topicsProcessed,
		},
		Output: map[string]any{
			"videos_approved": videosApproved,
			"videos_failed":   videosFailed,
		},
		Duration: duration,
	})
}

// RecordFailure appends the audit row for a batch that aborted. Recording
// is best effort here: a failed write is logged, not propagated, so the
// original batch error stays the one the caller sees.
func (r *RunRecorder) RecordFailure(ctx context.Context, channelID string, batchErr error, duration time.Duration) {
	err := r.store.RecordAgentRun(context.WithoutCancel(ctx), store.AgentRun{
		AgentName: orchestratorAgentName,
		Status:    "failed",
		Input: map[string]any{
			"channel_id":       channelID,
			"topics_processed": 0,
		},
		Output: map[string]any{
			"videos_approved": 0,
			"videos_failed":   0,
		},
		Duration:     duration,
		ErrorMessage: batchErr.Error(),
	})
	if err != nil {
		r.logger.Error("record batch failure", logging.Error(err))
	}
}
