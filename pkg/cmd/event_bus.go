package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/hesab/pkg/channels/gochannel"
	"github.com/dukex/hesab/pkg/channels/kafka"
	"github.com/dukex/hesab/pkg/eventbus"
)

const consumerGroup = "cg-hesab"

// NewEventBus creates the bus that carries execution events and billing
// notifications. gochannel keeps them in process.
func NewEventBus(provider string, brokers []string, logger *slog.Logger) (eventbus.EventBus, error) {
	wlogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "gochannel":
		pub, sub := gochannel.New(wlogger)

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.New(wlogger, kafka.Config{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			OTELEnabled:   true,
		})
		if err != nil {
			return nil, err
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
