package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"alert-router/internal/models"
)

func newQueueDepthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue-depth [medium...]",
		Short: "Print the number of pending messages per queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			q, err := e.connectQueue(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer q.Close()

			media := models.Media
			if len(args) > 0 {
				media = nil
				for _, a := range args {
					media = append(media, models.Medium(a))
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MEDIUM\tQUEUE\tPENDING")
			for _, medium := range media {
				name := e.cfg.QueueFor(medium)
				n, err := q.Depth(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\n", medium, name, n)
			}
			return tw.Flush()
		},
	}
}
