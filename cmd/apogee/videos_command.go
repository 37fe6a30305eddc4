package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"apogee/internal/media"
	"apogee/internal/store"
)

func newVideosCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Inspect pipeline videos",
	}
	cmd.AddCommand(newVideosListCommand(cmdCtx))
	cmd.AddCommand(newVideosShowCommand(cmdCtx))
	return cmd
}

func newVideosListCommand(cmdCtx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos, optionally filtered by status",
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

			var statuses []media.VideoStatus
			if statusFlag != "" {
				status, err := media.ParseVideoStatus(statusFlag)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			videos, err := st.ListVideos(cmd.Context(), channelID, statuses...)
			if err != nil {
				return err
			}
			if len(videos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No videos found.")
				return nil
			}

			rows := make([][]string, 0, len(videos))
			for _, video := range videos {
				detail := ""
				if video.ErrorMessage != "" {
					detail = truncate(video.ErrorMessage, 50)
				}
				rows = append(rows, []string{
					shortID(video.ID),
					truncate(video.Title, 50),
					string(video.Status),
					detail,
					formatTimestamp(video.UpdatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Error", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (draft, scripted, rendered, published, failed)")
	return cmd
}

func newVideosShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <video-id>",
		Short: "Print the assembled production spec for a video",
		Args:  cobra.ExactArgs(1),
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

			spec, err := st.BuildVideoSpec(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(spec, "", "  ")
			if err != nil {
				return fmt.Errorf("encode video spec: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}
