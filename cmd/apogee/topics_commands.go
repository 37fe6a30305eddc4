package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"apogee/internal/media"
	"apogee/internal/store"
)

func newTopicsCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Inspect and gate mined topics",
	}
	cmd.AddCommand(newTopicsListCommand(cmdCtx))
	cmd.AddCommand(newTopicsApproveCommand(cmdCtx))
	cmd.AddCommand(newTopicsRejectCommand(cmdCtx))
	return cmd
}

func newTopicsListCommand(cmdCtx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List topics, optionally filtered by status",
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

			channelID, err := st.FirstChannelID(cmd.Context())
			if err != nil {
				return err
			}

			var statuses []media.TopicStatus
			if statusFlag != "" {
				status, err := media.ParseTopicStatus(statusFlag)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			topics, err := st.ListTopics(cmd.Context(), channelID, statuses...)
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No topics found.")
				return nil
			}

			rows := make([][]string, 0, len(topics))
			for _, topic := range topics {
				rows = append(rows, []string{
					shortID(topic.ID),
					truncate(topic.Title, 60),
					string(topic.Status),
					fmt.Sprintf("%.2f", topic.SimilarityScore),
					formatTimestamp(topic.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Similarity", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (pending, approved, rejected, published)")
	return cmd
}

func newTopicsApproveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <topic-id>...",
		Short: "Approve pending topics for production",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setTopicStatuses(cmdCtx, cmd, args, media.TopicApproved)
		},
	}
}

func newTopicsRejectCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <topic-id>...",
		Short: "Reject pending topics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setTopicStatuses(cmdCtx, cmd, args, media.TopicRejected)
		},
	}
}

func setTopicStatuses(cmdCtx *commandContext, cmd *cobra.Command, ids []string, to media.TopicStatus) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, id := range ids {
		if err := st.SetTopicStatus(cmd.Context(), id, to); err != nil {
			return fmt.Errorf("topic %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Topic %s -> %s\n", shortID(id), to)
	}
	return nil
}
