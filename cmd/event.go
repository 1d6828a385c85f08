package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"alert-router/internal/kafka"
	"alert-router/internal/models"
)

func newEventCmd() *cobra.Command {
	var (
		checkID  string
		state    string
		kind     string
		summary  string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Publish a check event to the Kafka ingest topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.Close()
			if missing := e.cfg.Missing("KAFKA_BROKERS", "KAFKA_TOPIC"); len(missing) > 0 {
				return fmt.Errorf("missing required configurations: %v", missing)
			}

			entity, check := models.SplitCheckID(checkID)
			ev, err := models.EventPayload{
				Entity:   entity,
				Check:    check,
				Type:     kind,
				State:    state,
				Summary:  summary,
				Time:     time.Now().Unix(),
				Duration: int64(duration / time.Second),
			}.Event()
			if err != nil {
				return err
			}

			producer, err := kafka.NewProducer(kafka.Config{Brokers: e.cfg.Kafka.Brokers, Topic: e.cfg.Kafka.Topic})
			if err != nil {
				return err
			}
			defer producer.Close()
			if err := producer.PublishEvent(cmd.Context(), ev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s %s to %s\n", ev.CheckID(), ev.State, e.cfg.Kafka.Topic)
			return nil
		},
	}
	cmd.Flags().StringVar(&checkID, "check", "", "entity:check the event is about")
	cmd.Flags().StringVar(&state, "state", "", "ok, warning, critical, unknown, acknowledgement or test")
	cmd.Flags().StringVar(&kind, "type", models.EventTypeService, "service or action")
	cmd.Flags().StringVar(&summary, "summary", "", "Summary text")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Acknowledgement length")
	_ = cmd.MarkFlagRequired("check")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}
