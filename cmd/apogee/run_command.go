package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"apogee/internal/agents"
	"apogee/internal/jobqueue"
	"apogee/internal/logging"
	"apogee/internal/notifications"
	"apogee/internal/pipeline"
	"apogee/internal/scheduler"
	"apogee/internal/services/llm"
	"apogee/internal/store"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline, once or on the configured schedule",
		Long: `Run executes the full content pipeline for the configured channel:
topic mining, the manual approval gate, and the research, scripting,
and review chain for each approved topic.

Without --once the pipeline runs on the cron schedule from the
configuration and blocks until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("another apogee instance is already running")
			}
			defer func() { _ = lock.Unlock() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			broker, err := jobqueue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job broker: %w", err)
			}
			defer broker.Close()

			channelID, err := st.FirstChannelID(ctx)
			if err != nil {
				if errors.Is(err, store.ErrNoChannel) {
					return errors.New("no channel configured; run `apogee channel init` first")
				}
				return err
			}

			runner := jobqueue.NewRunner(broker, logger,
				pollInterval(cfg.Queue.PollIntervalSeconds), cfg.Queue.Workers)
			agentSet := agents.New(st, llm.NewClient(cfg.LLM), cfg, logger)
			agentSet.Register(runner)
			runner.Start(ctx)
			defer runner.Stop()

			notifier := notifications.NewService(cfg)
			orch := pipeline.New(st, broker, notifier, cfg, logger)

			runBatch := func(ctx context.Context) error {
				specs, err := orch.RunBatch(ctx, channelID)
				if err != nil {
					return err
				}
				logger.Info("pipeline run complete", logging.Int("videos_approved", len(specs)))
				return nil
			}

			if once {
				logger.Info("running pipeline once")
				return runBatch(ctx)
			}

			sched, err := scheduler.New(cfg.Pipeline.Schedule, runBatch, logger)
			if err != nil {
				return fmt.Errorf("parse schedule %q: %w", cfg.Pipeline.Schedule, err)
			}
			err = sched.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Execute the pipeline immediately and exit")
	return cmd
}
