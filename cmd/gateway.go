package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"alert-router/internal/gateway"
	"alert-router/internal/metrics"
	"alert-router/internal/models"
)

func newGatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway <medium>",
		Short: "Run the delivery loop for one medium until interrupted",
		Long: `gateway drains the medium's queue and delivers each message once.
The web medium needs browser sessions held by the main service and is not
available here.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			medium := models.Medium(args[0])
			registry, err := gateway.TransportsFromConfig(e.cfg, nil, e.base)
			if err != nil {
				return err
			}
			transport, err := registry.Get(medium)
			if err != nil {
				return err
			}

			q, err := e.connectQueue(ctx, metrics.New())
			if err != nil {
				return err
			}
			defer q.Close()

			w := gateway.NewWorker(e.cfg.QueueFor(medium), q, transport, e.base, nil)
			err = w.Run(ctx)
			delivered, failed := w.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "%s gateway stopped: %d delivered, %d failed\n", medium, delivered, failed)
			return err
		},
	}
}
