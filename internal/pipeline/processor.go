package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

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

// TopicProcessor runs the research, scripting, and review chain for one
// approved topic.
type TopicProcessor struct {
	store    *store.Store
	queue    jobqueue.Client
	notifier notifications.Service
	logger   *slog.Logger

	maxAttempts     int
	pollInterval    time.Duration
	researchTimeout time.Duration
	scriptTimeout   time.Duration
	reviewTimeout   time.Duration
}

// NewTopicProcessor constructs a processor from the runtime configuration.
func NewTopicProcessor(st *store.Store, queue jobqueue.Client, notifier notifications.Service, cfg *config.Config, logger *slog.Logger) *TopicProcessor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	maxAttempts := cfg.Pipeline.MaxScriptAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &TopicProcessor{
		store:           st,
		queue:           queue,
		notifier:        notifier,
		logger:          logger.With(logging.String(logging.FieldComponent, "topic-processor")),
		maxAttempts:     maxAttempts,
		pollInterval:    secondsOr(cfg.Queue.PollIntervalSeconds, time.Second),
		researchTimeout: secondsOr(cfg.Queue.ResearchTimeoutSeconds, 120*time.Second),
		scriptTimeout:   secondsOr(cfg.Queue.ScriptTimeoutSeconds, 180*time.Second),
		reviewTimeout:   secondsOr(cfg.Queue.ReviewTimeoutSeconds, 60*time.Second),
	}
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Process runs research once, then the bounded write/review loop. It
// returns the assembled spec on approval, or nil when the reviewer
// exhausted every attempt and the video was marked failed. Research
// failure is fatal for the topic; there is no retry around it.
func (p *TopicProcessor) Process(ctx context.Context, topicID string) (*media.VideoSpec, error) {
	ctx = services.WithTopicID(ctx, topicID)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("starting research")

	researchHandle, err := p.queue.Enqueue(ctx, agents.QueueName, agents.JobResearchTopic,
		agents.ResearchTopicPayload{TopicID: topicID}, p.researchTimeout)
	if err != nil {
		return nil, err
	}
	if _, err := p.queue.Await(ctx, researchHandle, p.pollInterval); err != nil {
		return nil, err
	}

	video, err := p.store.LatestVideoForTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrInvariant, "pipeline", "process topic",
			fmt.Sprintf("no video for topic %s after research", topicID), nil)
	}
	ctx = services.WithVideoID(ctx, video.ID)
	logger = logging.WithContext(ctx, p.logger)

	var lastIssues []string
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		logger.Info("drafting script",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", p.maxAttempts),
		)
		scriptHandle, err := p.queue.Enqueue(ctx, agents.QueueName, agents.JobWriteScript,
			agents.WriteScriptPayload{VideoID: video.ID, Attempt: attempt, Issues: lastIssues},
			p.scriptTimeout)
		if err != nil {
			return nil, err
		}
		if _, err := p.queue.Await(ctx, scriptHandle, p.pollInterval); err != nil {
			return nil, err
		}

		reviewHandle, err := p.queue.Enqueue(ctx, agents.QueueName, agents.JobCheckScript,
			agents.CheckScriptPayload{VideoID: video.ID}, p.reviewTimeout)
		if err != nil {
			return nil, err
		}
		raw, err := p.queue.Await(ctx, reviewHandle, p.pollInterval)
		if err != nil {
			return nil, err
		}
		var review media.ReviewResult
		if err := llm.DecodeJSON(string(raw), &review); err != nil {
			return nil, services.Wrap(services.ErrInvariant, "pipeline", "process topic", "decode review result", err)
		}

		if review.Approved {
			logger.Info("review approved", logging.Float64("risk_score", review.RiskScore))
			break
		}

		logger.Warn("review rejected",
			logging.Float64("risk_score", review.RiskScore),
			logging.Any("issues", review.Issues),
		)
		if attempt == p.maxAttempts {
			reason := fmt.Sprintf("fact_checker: max %d attempts exhausted", p.maxAttempts)
			if err := p.store.MarkVideoFailed(ctx, video.ID, reason); err != nil {
				return nil, err
			}
			logger.Error("video marked failed", logging.String("reason", reason))
			if err := p.notifier.NotifyVideoFailed(ctx, video.Title, reason); err != nil {
				logger.Warn("failure notification not delivered", logging.Error(err))
			}
			return nil, nil
		}
		lastIssues = review.Issues
	}

	spec, err := p.store.BuildVideoSpec(ctx, video.ID)
	if err != nil {
		return nil, err
	}
	logger.Info("video spec assembled")
	return spec, nil
}
