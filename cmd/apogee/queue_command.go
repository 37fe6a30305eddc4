package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"apogee/internal/jobqueue"
)

func newQueueCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show job broker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			broker, err := jobqueue.Open(cfg)
			if err != nil {
				return err
			}
			defer broker.Close()

			stats, err := broker.Stats(cmd.Context())
			if err != nil {
				return err
			}

			statuses := jobqueue.AllStatuses()
			total := 0
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				count := stats[status]
				total += count
				rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
			}
			rows = append(rows, []string{"total", fmt.Sprintf("%d", total)})

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Status", "Jobs"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}
