package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// kafkaPublisher delivers events to a Kafka topic. Events are keyed by event
// name so consumers of a given kind see them in order.
type kafkaPublisher struct {
	writer *kafkago.Writer
	logger zerolog.Logger
}

// NewKafkaPublisher creates a Publisher writing to the given brokers/topic.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) Publisher {
	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafkago.LeastBytes{},
	}

	return &kafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "kafka-publisher").Logger(),
	}
}

// Publish marshals the event and writes it to the topic.
func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Name),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to write event to kafka: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
