package pipeline

import (
	"context"
	"log/slog"
	"time"

	"apogee/internal/logging"
	"apogee/internal/store"
)

// ApprovalGate blocks a batch until a human approves at least one of the
// candidate topics, or the configured timeout elapses.
type ApprovalGate struct {
	store        *store.Store
	logger       *slog.Logger
	timeout      time.Duration
	pollInterval time.Duration
}

// NewApprovalGate constructs the gate with its wait bounds.
func NewApprovalGate(st *store.Store, logger *slog.Logger, timeout, pollInterval time.Duration) *ApprovalGate {
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = 48 * time.Hour
	}
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &ApprovalGate{
		store:        st,
		logger:       logger.With(logging.String(logging.FieldComponent, "approval-gate")),
		timeout:      timeout,
		pollInterval: pollInterval,
	}
}

// WaitForApprovals polls until any candidate topic is approved and returns
// the approved subset. An empty result on timeout is not an error; the
// batch simply has nothing to produce. Only the supplied candidates count,
// approvals of topics from other batches never leak in.
func (g *ApprovalGate) WaitForApprovals(ctx context.Context, channelID string, candidateIDs []string) ([]string, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	deadline := time.Now().Add(g.timeout)
	g.logger.Info("waiting for manual approval",
		logging.Int("candidates", len(candidateIDs)),
		logging.Duration("timeout", g.timeout),
		logging.Duration("poll_interval", g.pollInterval),
	)

	for {
		approved, err := g.store.ApprovedTopicIDs(ctx, channelID, candidateIDs)
		if err != nil {
			return nil, err
		}
		if len(approved) > 0 {
			g.logger.Info("topics approved", logging.Int("approved", len(approved)))
			return approved, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			g.logger.Warn("approval timeout reached", logging.Duration("timeout", g.timeout))
			return nil, nil
		}
		g.logger.Debug("no approvals yet", logging.Duration("remaining", remaining))

		wait := g.pollInterval
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
