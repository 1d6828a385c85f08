package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"alert-router/internal/db"
	"alert-router/internal/models"
)

func newMaintenanceCmd() *cobra.Command {
	var (
		start    string
		duration time.Duration
		summary  string
	)
	cmd := &cobra.Command{
		Use:   "maintenance <entity:check>",
		Short: "Schedule a maintenance window for a check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.Close()
			if missing := e.cfg.Missing("DB_DSN"); len(missing) > 0 {
				return fmt.Errorf("missing required configurations: %v", missing)
			}

			from := time.Now()
			if start != "" {
				if from, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
			}
			window := models.Maintenance{Start: from, End: from.Add(duration), Summary: summary}

			conn, err := db.New(cmd.Context(), e.cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := conn.AddScheduledMaintenance(cmd.Context(), args[0], window); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled maintenance for %s from %s to %s\n",
				args[0], window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Window start (RFC3339); defaults to now")
	cmd.Flags().DurationVar(&duration, "duration", time.Hour, "Window length")
	cmd.Flags().StringVar(&summary, "summary", "", "Reason shown to operators")
	return cmd
}
