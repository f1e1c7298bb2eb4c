package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asquebay/mini-storefront/internal/model"

	"github.com/segmentio/kafka-go"
)

// MessageWriter — часть *kafka.Writer, которая нужна продюсеру
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventProducer публикует события корзины в топик
type EventProducer struct {
	writer MessageWriter
}

// NewEventProducer создаёт продюсера поверх kafka.Writer
func NewEventProducer(brokers []string, topic string) *EventProducer {
	return NewEventProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	})
}

// NewEventProducerWithWriter позволяет подставить свой writer (в тестах)
func NewEventProducerWithWriter(w MessageWriter) *EventProducer {
	return &EventProducer{writer: w}
}

// Publish сериализует событие и отправляет его; ключ сообщения — тип события
func (p *EventProducer) Publish(ctx context.Context, event model.CartEvent) error {
	const op = "transport.kafka.EventProducer.Publish"

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: value,
		Time:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close дожидается отправки буфера и закрывает writer
func (p *EventProducer) Close() error {
	return p.writer.Close()
}
