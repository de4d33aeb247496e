package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter builds the producer used by the relay in production.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		// WriteMessages is synchronous; the default 1s linger would cap the
		// relay at one event per second.
		BatchTimeout: 5 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
}

// DiscardProducer accepts and drops every message. Used when no broker is
// configured so the outbox still drains.
type DiscardProducer struct{}

func (DiscardProducer) WriteMessages(_ context.Context, _ ...kafka.Message) error { return nil }
