package cmd

import (
	"context"
	"fmt"

	"github.com/frahmantamala/moviemix/internal/core/events"
	"github.com/frahmantamala/moviemix/pkg/logger"
	"github.com/frahmantamala/moviemix/pkg/messaging"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish test lifecycle events to the event bus and, with --broker, to the message broker`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(cmd.Context(), args[0])
	},
}

var (
	eventOrderID string
	eventData    string
	toBroker     bool
)

func publishTestEvent(ctx context.Context, eventType string) error {
	log := logger.LoggerWrapper()
	bus := events.NewEventBus(log)

	bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		log.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	if toBroker {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		publisher, err := messaging.NewRabbitPublisher(cfg.Messaging.URL, cfg.Messaging.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()

		forwarder := messaging.NewForwarder(publisher, log)
		bus.Subscribe(eventType, forwarder.Handle)
	}

	event := events.NewEvent(eventType, map[string]interface{}{
		"order_id": eventOrderID,
		"message":  eventData,
		"source":   "cli-command",
	})

	log.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())
	if err := bus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventOrderID, "order-id", "order_test", "order id carried by the event")
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")
	publishEventCmd.Flags().BoolVar(&toBroker, "broker", false, "also forward the event to the configured message broker")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
