// Command alertctl runs single gateways and inspects or feeds the
// notification queues.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"alert-router/internal/config"
	"alert-router/internal/logging"
	"alert-router/internal/metrics"
	"alert-router/internal/queue"
)

var (
	version = "dev"
	envFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "alertctl",
		Short:         "Operate the alert router's gateways and queues",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file to load before reading the environment")

	rootCmd.AddCommand(
		newGatewayCmd(),
		newPushCmd(),
		newQueueDepthCmd(),
		newEventCmd(),
		newMaintenanceCmd(),
	)
	return rootCmd
}

// env bundles what every subcommand needs.
type env struct {
	cfg    config.Config
	logger *logging.Logger
	base   *logrus.Entry
}

func loadEnv() (*env, error) {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, base: logrus.NewEntry(logger.Logger)}, nil
}

func (e *env) connectQueue(ctx context.Context, m *metrics.Metrics) (*queue.Queue, error) {
	q, err := queue.Connect(ctx, queue.Options{
		Addr:     e.cfg.Redis.Addr,
		Password: e.cfg.Redis.Password,
		DB:       e.cfg.Redis.DB,
	}, e.base, m)
	if err != nil {
		return nil, err
	}
	q.SetWaitTimeout(e.cfg.Gateway.WaitTimeout)
	return q, nil
}

func (e *env) Close() {
	_ = e.logger.Close()
}
