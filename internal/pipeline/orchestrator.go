package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"apogee/internal/agents"
	"apogee/internal/config"
	"apogee/internal/jobqueue"
	"apogee/internal/logging"
	"apogee/internal/media"
	"apogee/internal/notifications"
	"apogee/internal/services"
	"apogee/internal/services/llm"
	"apogee/internal/store"
)

// Orchestrator drives one full batch: mine, gate, process, record.
type Orchestrator struct {
	store     *store.Store
	queue     jobqueue.Client
	gate      *ApprovalGate
	processor *TopicProcessor
	recorder  *RunRecorder
	notifier  notifications.Service
	logger    *slog.Logger

	pollInterval time.Duration
	mineTimeout  time.Duration
	gateTimeout  time.Duration
}

// New wires an orchestrator from the runtime configuration.
func New(st *store.Store, queue jobqueue.Client, notifier notifications.Service, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	gateTimeout := time.Duration(cfg.Approval.TimeoutHours) * time.Hour
	return &Orchestrator{
		store: st,
		queue: queue,
		gate: NewApprovalGate(st, logger, gateTimeout,
			secondsOr(cfg.Approval.PollIntervalSeconds, time.Minute)),
		processor:    NewTopicProcessor(st, queue, notifier, cfg, logger),
		recorder:     NewRunRecorder(st, logger),
		notifier:     notifier,
		logger:       logger.With(logging.String(logging.FieldComponent, "orchestrator")),
		pollInterval: secondsOr(cfg.Queue.PollIntervalSeconds, time.Second),
		mineTimeout:  secondsOr(cfg.Queue.MineTimeoutSeconds, 300*time.Second),
		gateTimeout:  gateTimeout,
	}
}

// RunBatch executes the pipeline once for a channel and returns the specs
// of every video that cleared review. Per-topic failures are contained;
// only batch-level failures (mining, queue loss) return an error. Exactly
// one orchestrator audit row is written either way.
func (o *Orchestrator) RunBatch(ctx context.Context, channelID string) ([]*media.VideoSpec, error) {
	start := time.Now()
	batchID := uuid.NewString()
	ctx = services.WithBatchID(ctx, channelID+"/"+batchID)
	logger := o.logger.With(logging.String(logging.FieldBatchID, batchID))
	logger.Info("batch started", logging.String("channel_id", channelID))

	specs, err := o.runBatch(ctx, logger, channelID, start)
	if err != nil {
		logger.Error("batch failed", logging.Error(err))
		o.recorder.RecordFailure(ctx, channelID, err, durationSince(start))
		if notifyErr := o.notifier.NotifyError(context.WithoutCancel(ctx), err, "batch run"); notifyErr != nil {
			logger.Warn("error notification failed", logging.Error(notifyErr))
		}
		return nil, err
	}
	return specs, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, logger *slog.Logger, channelID string, start time.Time) ([]*media.VideoSpec, error) {
	mineHandle, err := o.queue.Enqueue(ctx, agents.QueueName, agents.JobMineTopics,
		agents.MineTopicsPayload{ChannelID: channelID}, o.mineTimeout)
	if err != nil {
		return nil, err
	}
	raw, err := o.queue.Await(ctx, mineHandle, o.pollInterval)
	if err != nil {
		return nil, err
	}
	var mined agents.MineTopicsResult
	if err := llm.DecodeJSON(string(raw), &mined); err != nil {
		return nil, err
	}
	candidateIDs := make([]string, 0, len(mined.Topics))
	for _, topic := range mined.Topics {
		candidateIDs = append(candidateIDs, topic.TopicID)
	}
	logger.Info("topics mined", logging.Int("candidates", len(candidateIDs)))

	if len(candidateIDs) > 0 {
		if err := o.notifier.NotifyApprovalPending(ctx, len(candidateIDs), o.gateTimeout); err != nil {
			logger.Warn("approval notification failed", logging.Error(err))
		}
	}

	approvedIDs, err := o.gate.WaitForApprovals(ctx, channelID, candidateIDs)
	if err != nil {
		return nil, err
	}
	if len(approvedIDs) == 0 {
		logger.Warn("no topics approved, batch has nothing to produce")
		if err := o.recorder.RecordSuccess(ctx, channelID, len(candidateIDs), 0, 0, durationSince(start)); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var (
		specs  []*media.VideoSpec
		failed int
	)
	for _, topicID := range approvedIDs {
		spec, err := o.processor.Process(ctx, topicID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !services.IsItemScoped(err) {
				return nil, err
			}
			// Topic failures stay contained; the rest of the batch
			// continues.
			logger.Error("topic processing failed",
				logging.String(logging.FieldTopicID, topicID),
				logging.Error(err),
			)
			failed++
			continue
		}
		if spec == nil {
			failed++
			continue
		}
		specs = append(specs, spec)
	}

	duration := durationSince(start)
	logger.Info("batch finished",
		logging.Int("approved", len(specs)),
		logging.Int("failed", failed),
		logging.Duration("duration", duration),
	)
	if err := o.recorder.RecordSuccess(ctx, channelID, len(approvedIDs), len(specs), failed, duration); err != nil {
		return nil, err
	}
	if err := o.notifier.NotifyBatchCompleted(ctx, len(specs), failed, duration); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
	return specs, nil
}

func durationSince(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
