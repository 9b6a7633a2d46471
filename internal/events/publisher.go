package events

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the outbox publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// NewMessage keys the message by aggregate id so events of one order stay ordered.
func NewMessage(aggregateID, eventType string, payload []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(aggregateID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(eventType)},
		},
	}
}
