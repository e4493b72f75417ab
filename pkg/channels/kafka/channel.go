// Package kafka publishes execution events and billing notifications to Kafka
// so services outside hesab can consume them.
package kafka

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/hesab/pkg/events"
)

var ErrNoBrokers = errors.New("no kafka brokers configured")

// Config selects the cluster and the consumer group of this process.
type Config struct {
	Brokers       []string
	ConsumerGroup string
	// ReadFromOldest makes a new consumer group start at the beginning of a
	// topic instead of its end.
	ReadFromOldest bool
	OTELEnabled    bool
}

// New connects a publisher and a subscriber. Messages are partitioned by
// their event key, so every event of one execution lands on one partition
// and keeps its order.
func New(logger watermill.LoggerAdapter, cfg Config) (*kafka.Publisher, *kafka.Subscriber, error) {
	brokers := nonEmpty(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, nil, ErrNoBrokers
	}

	marshaler := kafka.NewWithPartitioningMarshaler(partitionKey)

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           marshaler,
			OverwriteSaramaConfig: subscriberConfig(cfg),
			ConsumerGroup:         cfg.ConsumerGroup,
			OTELEnabled:           cfg.OTELEnabled,
		},
		logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             marshaler,
			OverwriteSaramaConfig: publisherConfig(),
			OTELEnabled:           cfg.OTELEnabled,
		},
		logger,
	)
	if err != nil {
		_ = subscriber.Close()

		return nil, nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return publisher, subscriber, nil
}

func partitionKey(_ string, msg *message.Message) (string, error) {
	if key := msg.Metadata.Get(events.EventMetadataKey); key != "" {
		return key, nil
	}

	return msg.UUID, nil
}

func subscriberConfig(cfg Config) *sarama.Config {
	c := kafka.DefaultSaramaSubscriberConfig()
	if cfg.ReadFromOldest {
		c.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		c.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	return c
}

// publisherConfig waits for all in-sync replicas: a lost billing notification
// is a lost receipt.
func publisherConfig() *sarama.Config {
	c := kafka.DefaultSaramaSyncPublisherConfig()
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Idempotent = true
	c.Net.MaxOpenRequests = 1

	return c
}

func nonEmpty(brokers []string) []string {
	out := make([]string, 0, len(brokers))

	for _, b := range brokers {
		if b != "" {
			out = append(out, b)
		}
	}

	return out
}
