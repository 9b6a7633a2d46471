// Package events carries order events between the orders outbox and the
// services that react to them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const headerEventType = "event_type"

// ErrUnknownEvent is returned for messages without a usable event_type header.
var ErrUnknownEvent = errors.New("unknown event type")

// Handler reacts to one decoded order event. Handlers must be idempotent:
// the same event can be delivered more than once.
type Handler func(ctx context.Context, eventType string, event domain.OrderEvent) error

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	name    string
	reader  MessageReader
	handler Handler
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewKafkaReader joins the consumer group named groupID on topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumer(name string, reader MessageReader, handler Handler, log *zap.Logger, m *metrics.Metrics) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		name:    name,
		reader:  reader,
		handler: handler,
		log:     log.Named("consumer").With(zap.String("consumer", name)),
		metrics: m,
	}
}

// Run reads until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("consumer started")
	for {
		if ctx.Err() != nil {
			c.log.Info("consumer stopped")
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.Error("error reading message", zap.Error(err))
		return
	}

	err = c.Handle(ctx, m)
	c.metrics.EventConsumed(c.name, err)
	if err != nil {
		c.log.Error("error handling message",
			zap.String("key", string(m.Key)),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
	}
}

// Handle decodes a single message and passes it to the handler.
func (c *Consumer) Handle(ctx context.Context, m kafka.Message) error {
	eventType := EventType(m)
	if eventType == "" {
		return ErrUnknownEvent
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("parse %s payload: %w", eventType, err)
	}
	if event.OrderID == "" {
		return fmt.Errorf("parse %s payload: missing order_id", eventType)
	}

	return c.handler(ctx, eventType, event)
}

// EventType returns the event_type header, or "" when absent.
func EventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == headerEventType {
			return string(h.Value)
		}
	}
	return ""
}
