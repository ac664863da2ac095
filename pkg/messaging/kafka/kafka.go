package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/jwalitptl/clinic-scheduling/pkg/circuitbreaker"
	"github.com/jwalitptl/clinic-scheduling/pkg/messaging"
)

// EventTypeHeader carries messaging.Message.Type.
const EventTypeHeader = "event_type"

type Config struct {
	Brokers      []string
	BatchTimeout time.Duration
	RequiredAcks int
}

type KafkaBroker struct {
	writer *kafka.Writer
	cb     *circuitbreaker.CircuitBreaker
	logger *zerolog.Logger
}

func NewKafkaBroker(config Config, logger *zerolog.Logger) (messaging.Broker, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	// Topic is set per message. Hash keeps one appointment on one partition.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: config.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
	}

	return &KafkaBroker{
		writer: writer,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:                "kafka-broker",
			MaxRequests:         1,
			Interval:            10 * time.Second,
			Timeout:             5 * time.Second,
			ConsecutiveFailures: 5,
			OnStateChange: func(name, from, to string) {
				logger.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("Circuit breaker state changed")
			},
		}),
		logger: logger,
	}, nil
}

// ToKafkaMessage converts an outbox message into a kafka record.
func ToKafkaMessage(msg messaging.Message) kafka.Message {
	return kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(msg.Type)},
		},
	}
}

func (b *KafkaBroker) Publish(ctx context.Context, msg messaging.Message) error {
	return b.cb.Execute(func() error {
		if err := b.writer.WriteMessages(ctx, ToKafkaMessage(msg)); err != nil {
			return fmt.Errorf("failed to produce message: %w", err)
		}
		return nil
	})
}

func (b *KafkaBroker) Close() error {
	return b.writer.Close()
}
