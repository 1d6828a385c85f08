package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"alert-router/internal/metrics"
	"alert-router/internal/models"
)

func newPushCmd() *cobra.Command {
	var (
		medium    string
		address   string
		contactID string
		eventID   string
		summary   string
	)
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Enqueue a test notification for one address",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			q, err := e.connectQueue(cmd.Context(), metrics.New())
			if err != nil {
				return err
			}
			defer q.Close()

			target := models.Target{
				Contact: &models.Contact{ID: contactID},
				Medium:  models.Medium(medium),
				Address: address,
			}
			entity, check := models.SplitCheckID(eventID)
			event := &models.Event{
				Entity:  entity,
				Check:   check,
				Type:    models.EventTypeAction,
				State:   models.StateTest,
				Summary: summary,
				Time:    time.Now(),
			}
			msg := models.NewMessage(target, event, models.NotificationTest)
			queueName := e.cfg.QueueFor(target.Medium)
			if err := q.Publish(cmd.Context(), queueName, msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s\n", msg.ID, queueName)
			return nil
		},
	}
	cmd.Flags().StringVar(&medium, "medium", string(models.MediumSMS), "Medium to deliver on")
	cmd.Flags().StringVar(&address, "address", "", "Destination address (phone number, email, chat id)")
	cmd.Flags().StringVar(&contactID, "contact-id", "alertctl", "Contact id; the web medium routes on it")
	cmd.Flags().StringVar(&eventID, "check", "alertctl:test", "entity:check the notification is about")
	cmd.Flags().StringVar(&summary, "summary", "Test notification", "Summary text")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}
