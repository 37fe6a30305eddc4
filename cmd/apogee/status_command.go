package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"apogee/internal/jobqueue"
	"apogee/internal/media"
	"apogee/internal/scheduler"
	"apogee/internal/store"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()

			channelID, err := st.FirstChannelID(cmd.Context())
			if errors.Is(err, store.ErrNoChannel) {
				fmt.Fprintln(out, "No channel configured. Run `apogee channel init` first.")
				return nil
			}
			if err != nil {
				return err
			}
			channel, err := st.ChannelByID(cmd.Context(), channelID)
			if err != nil {
				return err
			}
			if channel != nil {
				fmt.Fprintf(out, "Channel: %s (%s)\n", channel.Name, channel.Niche)
			}

			topics, err := st.ListTopics(cmd.Context(), channelID)
			if err != nil {
				return err
			}
			topicCounts := map[media.TopicStatus]int{}
			for _, topic := range topics {
				topicCounts[topic.Status]++
			}
			fmt.Fprintf(out, "Topics:  %d total, %d pending, %d approved, %d rejected\n",
				len(topics),
				topicCounts[media.TopicPending],
				topicCounts[media.TopicApproved],
				topicCounts[media.TopicRejected],
			)

			videos, err := st.ListVideos(cmd.Context(), channelID)
			if err != nil {
				return err
			}
			videoCounts := map[media.VideoStatus]int{}
			for _, video := range videos {
				videoCounts[video.Status]++
			}
			fmt.Fprintf(out, "Videos:  %d total, %d draft, %d scripted, %d failed\n",
				len(videos),
				videoCounts[media.VideoDraft],
				videoCounts[media.VideoScripted],
				videoCounts[media.VideoFailed],
			)

			broker, err := jobqueue.Open(cfg)
			if err != nil {
				return err
			}
			defer broker.Close()
			stats, err := broker.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Jobs:    %d queued, %d running, %d finished, %d failed\n",
				stats[jobqueue.StatusQueued],
				stats[jobqueue.StatusRunning],
				stats[jobqueue.StatusFinished],
				stats[jobqueue.StatusFailed],
			)

			lastRun, err := st.LastAgentRun(cmd.Context(), "orchestrator")
			if err != nil {
				return err
			}
			if lastRun != nil {
				fmt.Fprintf(out, "Last batch: %s at %s\n", lastRun.Status, formatTimestamp(lastRun.CreatedAt))
			} else {
				fmt.Fprintln(out, "Last batch: never run")
			}

			next, err := scheduler.NextRun(cfg.Pipeline.Schedule, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Next scheduled run: %s\n", formatTimestamp(next))
			fmt.Fprintf(out, "Notifications configured: %s\n", yesNo(cfg.Notifications.NtfyTopic != ""))
			return nil
		},
	}
}
