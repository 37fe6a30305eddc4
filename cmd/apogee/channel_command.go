package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"apogee/internal/store"
)

func newChannelCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage the channel profile",
	}
	cmd.AddCommand(newChannelInitCommand(cmdCtx))
	cmd.AddCommand(newChannelShowCommand(cmdCtx))
	return cmd
}

func newChannelInitCommand(cmdCtx *commandContext) *cobra.Command {
	var name string
	var niche string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the channel profile if it does not exist",
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

			channel, err := st.EnsureChannel(cmd.Context(), name, niche)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %s (%s) ready: %s\n", channel.Name, channel.Niche, channel.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Channel name")
	cmd.Flags().StringVar(&niche, "niche", "", "Content niche, used to steer topic mining")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("niche")
	return cmd
}

func newChannelShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the configured channel",
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
			if errors.Is(err, store.ErrNoChannel) {
				fmt.Fprintln(cmd.OutOrStdout(), "No channel configured. Run `apogee channel init` first.")
				return nil
			}
			if err != nil {
				return err
			}
			channel, err := st.ChannelByID(cmd.Context(), channelID)
			if err != nil {
				return err
			}
			if channel == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No channel configured.")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:      %s\n", channel.ID)
			fmt.Fprintf(out, "Name:    %s\n", channel.Name)
			fmt.Fprintf(out, "Niche:   %s\n", channel.Niche)
			fmt.Fprintf(out, "Created: %s\n", formatTimestamp(channel.CreatedAt))
			return nil
		},
	}
}
