package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowdash/pkg/channels/gochannel"
	"github.com/dukex/flowdash/pkg/channels/kafka"
	"github.com/dukex/flowdash/pkg/eventbus"
)

// NewEventBus creates the event bus named by provider. Kafka brokers are read from KAFKA_BROKERS.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	adapter := watermill.NewSlogLogger(logger)

	switch provider {
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(adapter)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")

		pub, sub, err := kafka.CreateChannel(adapter, brokers, "flowdash")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
